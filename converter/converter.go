package converter

import (
	"bytes"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	// WebP sources decode through the stdlib image registry.
	_ "golang.org/x/image/webp"

	"pixelbatch/models"
)

// Decode guard limits, checked against the image header before any pixel
// allocation.
const (
	maxAxisPixels  = 32768
	maxTotalPixels = 64 << 20
)

// Converter is the single-image algorithmic core: decode, fit, resize,
// re-encode. It holds no per-file state; the transient pixel surfaces are
// function-local and reclaimed on every exit path.
type Converter struct {
	logger *zap.Logger
}

func NewConverter(logger *zap.Logger) *Converter {
	return &Converter{logger: logger}
}

// Convert transforms one tracked file under the given settings and
// returns the encoded output. Failures are per-file: a decode or encode
// error must not abort sibling files in a batch.
func (c *Converter) Convert(file *models.TrackedFile, settings models.ConversionSettings) (*models.EncodedImage, error) {
	data, err := file.Preview.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width > maxAxisPixels || cfg.Height > maxAxisPixels || cfg.Width*cfg.Height > maxTotalPixels {
		return nil, fmt.Errorf("%w: image dimensions %dx%d exceed decode limits", ErrDecode, cfg.Width, cfg.Height)
	}

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		c.logger.Error("Failed to decode image",
			zap.String("file_id", file.ID),
			zap.String("filename", file.Name),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	newWidth, newHeight := fitDimensions(width, height, settings.MaxWidth, settings.MaxHeight)

	out := src
	if newWidth != width || newHeight != height {
		c.logger.Info("Resizing image",
			zap.String("file_id", file.ID),
			zap.Int("width", newWidth),
			zap.Int("height", newHeight),
		)
		out = imaging.Resize(src, newWidth, newHeight, imaging.Lanczos)
	}

	enc, ok := encoderFor(settings.Format)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported format %q", ErrEncode, settings.Format)
	}

	encoded, err := enc.Encode(out, settings.Quality)
	if err != nil {
		c.logger.Error("Failed to encode image",
			zap.String("file_id", file.ID),
			zap.String("format", string(settings.Format)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}

	if settings.PreserveMetadata && settings.Format == models.FormatJPEG {
		encoded = c.preserveMetadata(file, data, encoded)
	}

	return &models.EncodedImage{
		Data:   encoded,
		Name:   outputName(file.Name, enc.Extension()),
		Width:  newWidth,
		Height: newHeight,
		Format: settings.Format,
	}, nil
}

// preserveMetadata splices the rebuilt source EXIF into a JPEG output.
// Metadata failures never fail the conversion; the un-spliced output is
// returned instead.
func (c *Converter) preserveMetadata(file *models.TrackedFile, src, encoded []byte) []byte {
	exifData, err := rebuildEXIF(src)
	if err != nil {
		c.logger.Warn("Failed to rebuild EXIF, output keeps no metadata",
			zap.String("file_id", file.ID),
			zap.Error(err),
		)
		return encoded
	}
	if exifData == nil {
		return encoded
	}
	spliced, err := spliceAPP1(encoded, exifData)
	if err != nil {
		c.logger.Warn("Failed to splice EXIF segment, output keeps no metadata",
			zap.String("file_id", file.ID),
			zap.Error(err),
		)
		return encoded
	}
	return spliced
}

// fitDimensions computes aspect-ratio-preserving target dimensions. A
// zero bound disables that axis's cap; images within the enabled bounds
// keep their dimensions exactly, and nothing is ever upscaled.
func fitDimensions(width, height, maxWidth, maxHeight int) (int, int) {
	scale := 1.0
	if maxWidth > 0 && width > maxWidth {
		scale = float64(maxWidth) / float64(width)
	}
	if maxHeight > 0 && height > maxHeight {
		if s := float64(maxHeight) / float64(height); s < scale {
			scale = s
		}
	}
	if scale >= 1.0 {
		return width, height
	}

	newWidth := int(math.Round(float64(width) * scale))
	newHeight := int(math.Round(float64(height) * scale))
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}
	return newWidth, newHeight
}

// outputName is the original stem before the first dot plus the target
// extension.
func outputName(original, extension string) string {
	stem := original
	if i := strings.Index(original, "."); i >= 0 {
		stem = original[:i]
	}
	if stem == "" {
		stem = "image"
	}
	return stem + "." + extension
}
