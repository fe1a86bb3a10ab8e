package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"pixelbatch/batch"
	"pixelbatch/config"
	"pixelbatch/converter"
	"pixelbatch/delivery"
	"pixelbatch/intake"
	"pixelbatch/models"
	"pixelbatch/validation"
	"pixelbatch/watcher"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		inputPath        = flag.String("input", "", "input image file or directory")
		outputDir        = flag.String("output", "", "output directory")
		format           = flag.String("format", "", "target format: jpeg, png or webp")
		quality          = flag.Int("quality", 0, "lossy encode quality (1-100)")
		maxWidth         = flag.Int("max-width", 0, "maximum output width, 0 disables the cap")
		maxHeight        = flag.Int("max-height", 0, "maximum output height, 0 disables the cap")
		preserveMetadata = flag.Bool("preserve-metadata", false, "carry source EXIF into JPEG outputs")
		zipOutput        = flag.Bool("zip", false, "bundle results into a single zip archive")
		watchMode        = flag.Bool("watch", false, "watch the input directory and convert new files")
		configPath       = flag.String("config", "", "path to YAML config file")
		progressJSON     = flag.Bool("progress-json", false, "stream NDJSON progress events to stdout")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}

	// Explicitly set flags win over config file and environment.
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["output"] {
		cfg.OutputDir = *outputDir
	}
	if set["format"] {
		cfg.Format = *format
	}
	if set["quality"] {
		cfg.Quality = *quality
	}
	if set["max-width"] {
		cfg.MaxWidth = *maxWidth
	}
	if set["max-height"] {
		cfg.MaxHeight = *maxHeight
	}
	if set["preserve-metadata"] {
		cfg.PreserveMetadata = *preserveMetadata
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "an -input file or directory is required")
		return 1
	}
	if *watchMode && *zipOutput {
		fmt.Fprintln(os.Stderr, "-zip is not supported together with -watch")
		return 1
	}

	var logger *zap.Logger
	if cfg.Env == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	settings, err := cfg.Settings()
	if err != nil {
		logger.Error("Invalid conversion settings", zap.Error(err))
		return 1
	}

	in := intake.New(cfg.MaxFileSize, logger)
	defer in.Clear()

	runner := batch.NewRunner(converter.NewConverter(logger), logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *watchMode {
		return watchLoop(ctx, cfg, settings, in, runner, *inputPath, *progressJSON, logger)
	}

	return runOnce(ctx, cfg, settings, in, runner, *inputPath, *zipOutput, *progressJSON, logger)
}

func runOnce(ctx context.Context, cfg *config.Config, settings models.ConversionSettings, in *intake.Intake, runner *batch.Runner, inputPath string, zipOutput, progressJSON bool, logger *zap.Logger) int {
	paths, err := collectInputs(inputPath)
	if err != nil {
		logger.Error("Failed to collect inputs", zap.Error(err))
		return 1
	}
	if len(paths) == 0 {
		logger.Error("No image files found", zap.String("input", inputPath))
		return 1
	}

	raw := make([]models.RawFile, 0, len(paths))
	for _, path := range paths {
		rawFile, err := readRawFile(path)
		if err != nil {
			logger.Error("Failed to read input", zap.String("path", path), zap.Error(err))
			return 1
		}
		raw = append(raw, rawFile)
	}

	files, rejections := in.Submit(raw)
	if len(files) == 0 {
		logger.Error("All files rejected", zap.Int("rejected", len(rejections)))
		return 1
	}

	events, err := runner.Run(ctx, files, settings)
	if err != nil {
		logger.Error("Failed to start batch run", zap.Error(err))
		return 1
	}
	consumeEvents(events, progressJSON, logger)

	sink, err := newSink(cfg, zipOutput)
	if err != nil {
		logger.Error("Failed to create result sink", zap.Error(err))
		return 1
	}
	delivered := deliverCompleted(files, sink, logger)
	if err := sink.Close(); err != nil {
		logger.Error("Failed to finalize result sink", zap.Error(err))
		return 1
	}

	summary := batch.Summarize(files)
	printSummary(summary, logger)
	logger.Info("Batch finished",
		zap.Int("delivered", delivered),
		zap.Int("rejected", len(rejections)),
	)

	if len(rejections) > 0 || summary.Failed > 0 {
		return 1
	}
	return 0
}

func watchLoop(ctx context.Context, cfg *config.Config, settings models.ConversionSettings, in *intake.Intake, runner *batch.Runner, inputDir string, progressJSON bool, logger *zap.Logger) int {
	info, err := os.Stat(inputDir)
	if err != nil {
		logger.Error("Failed to stat watch directory", zap.Error(err))
		return 1
	}
	if !info.IsDir() {
		logger.Error("Watch mode needs a directory", zap.String("input", inputDir))
		return 1
	}

	sink, err := delivery.NewDirSink(cfg.OutputDir)
	if err != nil {
		logger.Error("Failed to create result sink", zap.Error(err))
		return 1
	}
	defer sink.Close()

	w, err := watcher.New(inputDir, validation.AllowedExtensions(), time.Duration(cfg.DebounceMS)*time.Millisecond, logger)
	if err != nil {
		logger.Error("Failed to create watcher", zap.Error(err))
		return 1
	}
	defer w.Stop()
	w.Start()

	logger.Info("Watching for new images", zap.String("dir", inputDir))

	for {
		select {
		case <-ctx.Done():
			logger.Info("Watch mode stopping")
			return 0
		case ev := <-w.Events():
			convertOne(ctx, settings, in, runner, sink, ev.Path, progressJSON, logger)
		}
	}
}

// convertOne runs a single-file batch for a watched path and removes the
// file from the intake afterwards, so long-running watches never
// accumulate preview handles.
func convertOne(ctx context.Context, settings models.ConversionSettings, in *intake.Intake, runner *batch.Runner, sink delivery.Sink, path string, progressJSON bool, logger *zap.Logger) {
	rawFile, err := readRawFile(path)
	if err != nil {
		logger.Error("Failed to read watched file", zap.String("path", path), zap.Error(err))
		return
	}

	files, rejections := in.Submit([]models.RawFile{rawFile})
	for _, rej := range rejections {
		logger.Warn("Watched file rejected",
			zap.String("filename", rej.Filename),
			zap.String("reason", rej.Reason),
		)
	}
	if len(files) == 0 {
		return
	}
	defer func() {
		for _, f := range files {
			in.Remove(f.ID)
		}
	}()

	events, err := runner.Run(ctx, files, settings)
	if err != nil {
		logger.Error("Failed to start run for watched file", zap.Error(err))
		return
	}
	consumeEvents(events, progressJSON, logger)
	deliverCompleted(files, sink, logger)
}

func consumeEvents(events <-chan models.ProgressEvent, progressJSON bool, logger *zap.Logger) {
	enc := json.NewEncoder(os.Stdout)
	for ev := range events {
		if progressJSON {
			enc.Encode(ev)
			continue
		}
		logger.Info("Progress",
			zap.String("kind", string(ev.Kind)),
			zap.String("file", ev.FileName),
			zap.String("status", string(ev.Status)),
			zap.Int("completed", ev.CompletedFiles),
			zap.Int("total", ev.TotalFiles),
			zap.Int("overall", ev.OverallProgress),
		)
	}
}

func deliverCompleted(files []*models.TrackedFile, sink delivery.Sink, logger *zap.Logger) int {
	delivered := 0
	for _, f := range files {
		if f.Status != models.StatusComplete {
			continue
		}
		if err := sink.Deliver(f.Output.Name, f.Output.Data); err != nil {
			logger.Error("Failed to deliver result",
				zap.String("output_name", f.Output.Name),
				zap.Error(err),
			)
			continue
		}
		delivered++
	}
	return delivered
}

func newSink(cfg *config.Config, zipOutput bool) (delivery.Sink, error) {
	if zipOutput {
		return delivery.NewZipSink(filepath.Join(cfg.OutputDir, "converted.zip"))
	}
	return delivery.NewDirSink(cfg.OutputDir)
}

func printSummary(summary models.RunSummary, logger *zap.Logger) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		logger.Error("Failed to print summary", zap.Error(err))
	}
}

func collectInputs(input string) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{input}, nil
	}

	allowed := make(map[string]bool)
	for _, ext := range validation.AllowedExtensions() {
		allowed[ext] = true
	}

	var paths []string
	err = filepath.WalkDir(input, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "._") {
			return nil
		}
		if allowed[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

func readRawFile(path string) (models.RawFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.RawFile{}, err
	}
	mimeType := ""
	if fileType, ok := validation.TypeFromExtension(path); ok {
		mimeType = validation.MimeType(fileType)
	}
	return models.RawFile{
		Name:     filepath.Base(path),
		MimeType: mimeType,
		Data:     data,
	}, nil
}
