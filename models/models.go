package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type FileStatus string

const (
	StatusPending    FileStatus = "pending"
	StatusProcessing FileStatus = "processing"
	StatusComplete   FileStatus = "complete"
	StatusError      FileStatus = "error"
)

type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
)

// ParseFormat normalizes a user-supplied format name. "jpg" is accepted
// as an alias for jpeg.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "webp":
		return FormatWebP, nil
	default:
		return "", fmt.Errorf("unknown output format: %q", s)
	}
}

func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return "jpg"
	case FormatPNG:
		return "png"
	case FormatWebP:
		return "webp"
	default:
		return string(f)
	}
}

// Lossless reports whether the quality setting has no effect for this format.
func (f Format) Lossless() bool {
	return f == FormatPNG
}

// RawFile is the intake input boundary: a candidate file as submitted by
// the caller. MimeType is the caller's claim and may be empty; the intake
// sniffs the real type from the bytes.
type RawFile struct {
	Name     string
	MimeType string
	Data     []byte
}

// Rejection reports a file that never entered the tracked set.
type Rejection struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// EncodedImage is the product of one successful conversion.
type EncodedImage struct {
	Data   []byte
	Name   string
	Width  int
	Height int
	Format Format
}

// TrackedFile represents one submitted image across its lifecycle. All
// status and progress mutation happens on the run goroutine; readers
// between files see eventually-consistent snapshots.
type TrackedFile struct {
	ID       string
	Name     string
	Size     int64
	MimeType string

	// Preview owns the raw source bytes and is the only decode path.
	// It is released exactly once, on removal, clear or teardown.
	Preview *PreviewHandle

	Status      FileStatus
	Progress    int
	Output      *EncodedImage
	ErrorReason string
	CreatedAt   time.Time
}

// ConversionSettings is a per-run value snapshot. It is passed by value so
// mutation of a caller's working copy cannot alter an in-flight run.
type ConversionSettings struct {
	Format  Format
	Quality int

	// MaxWidth and MaxHeight bound the output dimensions; a zero value
	// disables the cap on that axis. Images are never upscaled.
	MaxWidth  int
	MaxHeight int

	// PreserveMetadata carries the source EXIF block into JPEG outputs
	// (with orientation normalized). No effect for other formats.
	PreserveMetadata bool
}

func (s ConversionSettings) Validate() error {
	switch s.Format {
	case FormatJPEG, FormatPNG, FormatWebP:
	default:
		return fmt.Errorf("unknown output format: %q", s.Format)
	}
	if s.Quality < 1 || s.Quality > 100 {
		return fmt.Errorf("quality must be in [1,100], got %d", s.Quality)
	}
	if s.MaxWidth < 0 || s.MaxHeight < 0 {
		return errors.New("max dimensions must not be negative")
	}
	return nil
}

type EventKind string

const (
	EventStarted  EventKind = "started"
	EventFile     EventKind = "file"
	EventCanceled EventKind = "canceled"
	EventAborted  EventKind = "aborted"
)

// ProgressEvent is emitted on the run's channel after the run starts and
// after each file reaches a terminal state.
type ProgressEvent struct {
	Kind            EventKind  `json:"kind"`
	RunID           string     `json:"run_id"`
	FileID          string     `json:"file_id,omitempty"`
	FileName        string     `json:"file_name,omitempty"`
	Status          FileStatus `json:"status,omitempty"`
	Error           string     `json:"error,omitempty"`
	CompletedFiles  int        `json:"completed_files"`
	TotalFiles      int        `json:"total_files"`
	OverallProgress int        `json:"overall_progress"`
}

// FileResult is one file's outcome in a run summary.
type FileResult struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Status     FileStatus `json:"status"`
	OutputName string     `json:"output_name,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// RunSummary reports every file's outcome distinctly; a mixed batch is
// never collapsed to a single verdict.
type RunSummary struct {
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Results   []FileResult `json:"results"`
}
