package intake

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pixelbatch/models"
	"pixelbatch/validation"
)

// Intake owns the tracked-file table and every preview handle's lifecycle.
// Removal from the table and the handle release happen under the same
// mutex, so a handle is released exactly once and can never leak.
type Intake struct {
	mu          sync.Mutex
	files       map[string]*models.TrackedFile
	order       []string
	maxFileSize int64
	logger      *zap.Logger
}

func New(maxFileSize int64, logger *zap.Logger) *Intake {
	return &Intake{
		files:       make(map[string]*models.TrackedFile),
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

// Submit validates each candidate and tracks the accepted ones in
// submission order. Rejected files are reported as (filename, reason)
// pairs and never enter the tracked set; a rejection is a local
// validation failure, not a pipeline error.
func (in *Intake) Submit(raw []models.RawFile) ([]*models.TrackedFile, []models.Rejection) {
	accepted := make([]*models.TrackedFile, 0, len(raw))
	var rejections []models.Rejection

	for _, candidate := range raw {
		fileType, err := in.vet(candidate)
		if err != nil {
			in.logger.Warn("File rejected",
				zap.String("filename", candidate.Name),
				zap.Error(err),
			)
			rejections = append(rejections, models.Rejection{
				Filename: candidate.Name,
				Reason:   err.Error(),
			})
			continue
		}

		file := &models.TrackedFile{
			ID:        uuid.New().String(),
			Name:      candidate.Name,
			Size:      int64(len(candidate.Data)),
			MimeType:  validation.MimeType(fileType),
			Preview:   models.NewPreviewHandle(candidate.Data),
			Status:    models.StatusPending,
			Progress:  0,
			CreatedAt: time.Now(),
		}

		in.mu.Lock()
		in.files[file.ID] = file
		in.order = append(in.order, file.ID)
		in.mu.Unlock()

		in.logger.Info("File tracked",
			zap.String("file_id", file.ID),
			zap.String("filename", file.Name),
			zap.Int64("size", file.Size),
			zap.String("mime_type", file.MimeType),
		)
		accepted = append(accepted, file)
	}

	return accepted, rejections
}

func (in *Intake) vet(raw models.RawFile) (validation.FileType, error) {
	if len(raw.Data) == 0 {
		return "", validation.ErrEmptyFile
	}
	if in.maxFileSize > 0 && int64(len(raw.Data)) > in.maxFileSize {
		return "", fmt.Errorf("%w: %d bytes over %d byte limit",
			validation.ErrFileTooLarge, len(raw.Data), in.maxFileSize)
	}

	fileType, err := validation.DetectFileType(raw.Data)
	if err != nil {
		return "", err
	}
	if !validation.IsAllowedImageType(fileType) {
		return "", validation.ErrInvalidFileType
	}

	if claimed, ok := validation.TypeFromMime(raw.MimeType); ok && claimed != fileType {
		return "", fmt.Errorf("%w: content is %s, declared %s",
			validation.ErrTypeMismatch, fileType, claimed)
	}
	if claimed, ok := validation.TypeFromExtension(raw.Name); ok && claimed != fileType {
		return "", fmt.Errorf("%w: content is %s, extension says %s",
			validation.ErrTypeMismatch, fileType, claimed)
	}

	return fileType, nil
}

// Remove drops one tracked file and releases its preview handle. Unknown
// ids are a silent no-op: UI removal races are expected.
func (in *Intake) Remove(id string) {
	in.mu.Lock()
	defer in.mu.Unlock()

	file, ok := in.files[id]
	if !ok {
		return
	}
	delete(in.files, id)
	for i, fid := range in.order {
		if fid == id {
			in.order = append(in.order[:i], in.order[i+1:]...)
			break
		}
	}
	file.Preview.Release()

	in.logger.Info("File removed", zap.String("file_id", id))
}

// Clear removes every tracked file and releases every handle. Call it
// before discarding the intake.
func (in *Intake) Clear() {
	in.mu.Lock()
	defer in.mu.Unlock()

	for id, file := range in.files {
		file.Preview.Release()
		delete(in.files, id)
	}
	in.order = in.order[:0]
}

// Files returns a snapshot of the tracked files in submission order.
func (in *Intake) Files() []*models.TrackedFile {
	in.mu.Lock()
	defer in.mu.Unlock()

	out := make([]*models.TrackedFile, 0, len(in.order))
	for _, id := range in.order {
		out = append(out, in.files[id])
	}
	return out
}

func (in *Intake) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.files)
}
