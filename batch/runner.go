package batch

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pixelbatch/models"
)

var (
	ErrNoFiles   = errors.New("no files to convert")
	ErrRunActive = errors.New("a batch run is already active")
)

// Converter transforms one tracked file under a settings snapshot.
type Converter interface {
	Convert(file *models.TrackedFile, settings models.ConversionSettings) (*models.EncodedImage, error)
}

// Runner sequences conversions over a batch, strictly one file at a time
// in submission order. Sequential execution bounds peak memory to one
// pixel surface per active run; the single-slot gate rejects overlapping
// runs.
type Runner struct {
	conv   Converter
	logger *zap.Logger
	gate   chan struct{}
}

func NewRunner(conv Converter, logger *zap.Logger) *Runner {
	return &Runner{
		conv:   conv,
		logger: logger,
		gate:   make(chan struct{}, 1),
	}
}

// Run starts one batch run over the given files and returns its event
// channel. The channel is buffered for the whole run and closed after the
// last event. All status and progress mutation happens on the run
// goroutine.
//
// Starting a run is the one point where terminal states are left: every
// file is reset to pending with progress 0 before the first conversion.
func (r *Runner) Run(ctx context.Context, files []*models.TrackedFile, settings models.ConversionSettings) (<-chan models.ProgressEvent, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	select {
	case r.gate <- struct{}{}:
	default:
		return nil, ErrRunActive
	}

	runID := uuid.New().String()
	events := make(chan models.ProgressEvent, len(files)+3)

	r.logger.Info("Batch run starting",
		zap.String("run_id", runID),
		zap.Int("total_files", len(files)),
		zap.String("format", string(settings.Format)),
		zap.Int("quality", settings.Quality),
	)

	go r.process(ctx, runID, files, settings, events)

	return events, nil
}

func (r *Runner) process(ctx context.Context, runID string, files []*models.TrackedFile, settings models.ConversionSettings, events chan<- models.ProgressEvent) {
	defer func() { <-r.gate }()
	defer close(events)

	for _, file := range files {
		file.Status = models.StatusPending
		file.Progress = 0
		file.Output = nil
		file.ErrorReason = ""
	}

	total := len(files)
	events <- models.ProgressEvent{
		Kind:       models.EventStarted,
		RunID:      runID,
		TotalFiles: total,
	}

	finished := 0
	for _, file := range files {
		// Cancellation is cooperative, checked between files only; an
		// in-flight conversion always runs to completion.
		select {
		case <-ctx.Done():
			r.logger.Info("Batch run canceled",
				zap.String("run_id", runID),
				zap.Int("completed_files", finished),
			)
			events <- models.ProgressEvent{
				Kind:            models.EventCanceled,
				RunID:           runID,
				CompletedFiles:  finished,
				TotalFiles:      total,
				OverallProgress: overallProgress(finished, total),
			}
			return
		default:
		}

		file.Status = models.StatusProcessing

		output, err := r.convert(file, settings)
		finished++
		if err != nil {
			file.Status = models.StatusError
			file.ErrorReason = err.Error()
			file.Progress = 100
			r.logger.Warn("File conversion failed",
				zap.String("run_id", runID),
				zap.String("file_id", file.ID),
				zap.String("filename", file.Name),
				zap.Error(err),
			)
		} else {
			file.Status = models.StatusComplete
			file.Output = output
			file.Progress = 100
			r.logger.Info("File converted",
				zap.String("run_id", runID),
				zap.String("file_id", file.ID),
				zap.String("output_name", output.Name),
				zap.Int("width", output.Width),
				zap.Int("height", output.Height),
			)
		}

		events <- models.ProgressEvent{
			Kind:            models.EventFile,
			RunID:           runID,
			FileID:          file.ID,
			FileName:        file.Name,
			Status:          file.Status,
			Error:           file.ErrorReason,
			CompletedFiles:  finished,
			TotalFiles:      total,
			OverallProgress: overallProgress(finished, total),
		}

		// A panic inside a conversion is the unrecoverable case
		// (resource exhaustion): the run stops and still-pending files
		// stay pending, never silently marked error.
		if err != nil && file.Status == models.StatusError && isAbort(err) {
			events <- models.ProgressEvent{
				Kind:            models.EventAborted,
				RunID:           runID,
				FileID:          file.ID,
				FileName:        file.Name,
				Status:          file.Status,
				Error:           file.ErrorReason,
				CompletedFiles:  finished,
				TotalFiles:      total,
				OverallProgress: overallProgress(finished, total),
			}
			return
		}
	}
}

// convert recovers a panicking conversion into an abort error so the run
// can stop cleanly.
func (r *Runner) convert(file *models.TrackedFile, settings models.ConversionSettings) (output *models.EncodedImage, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Panic recovered during conversion",
				zap.String("file_id", file.ID),
				zap.Any("error", rec),
			)
			output = nil
			err = &abortError{reason: fmt.Sprintf("conversion panicked: %v", rec)}
		}
	}()
	return r.conv.Convert(file, settings)
}

type abortError struct {
	reason string
}

func (e *abortError) Error() string { return e.reason }

func isAbort(err error) bool {
	var abort *abortError
	return errors.As(err, &abort)
}

// overallProgress is round(100 * finished / total); with per-file
// progress pinned to 100 on any terminal outcome, this equals the mean
// of per-file progress.
func overallProgress(finished, total int) int {
	return int(math.Round(100 * float64(finished) / float64(total)))
}

// Summarize reports every file's outcome after a run.
func Summarize(files []*models.TrackedFile) models.RunSummary {
	summary := models.RunSummary{
		Total:   len(files),
		Results: make([]models.FileResult, 0, len(files)),
	}
	for _, file := range files {
		result := models.FileResult{
			ID:     file.ID,
			Name:   file.Name,
			Status: file.Status,
			Error:  file.ErrorReason,
		}
		switch file.Status {
		case models.StatusComplete:
			summary.Succeeded++
			result.OutputName = file.Output.Name
		case models.StatusError:
			summary.Failed++
		}
		summary.Results = append(summary.Results, result)
	}
	return summary
}
