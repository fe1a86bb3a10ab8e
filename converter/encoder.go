package converter

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
	webpenc "github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"

	"pixelbatch/models"
)

// Encoder encodes a pixel surface to one output format.
type Encoder interface {
	Format() models.Format

	// Encode converts the image to bytes at the given quality (1-100).
	// Quality is ignored by lossless formats.
	Encode(img image.Image, quality int) ([]byte, error)

	// Extension returns the output file extension without the dot.
	Extension() string
}

func encoderFor(format models.Format) (Encoder, bool) {
	switch format {
	case models.FormatJPEG:
		return jpegEncoder{}, true
	case models.FormatPNG:
		return pngEncoder{}, true
	case models.FormatWebP:
		return webpEncoder{}, true
	default:
		return nil, false
	}
}

type jpegEncoder struct{}

func (jpegEncoder) Format() models.Format { return models.FormatJPEG }
func (jpegEncoder) Extension() string     { return models.FormatJPEG.Extension() }

func (jpegEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type pngEncoder struct{}

func (pngEncoder) Format() models.Format { return models.FormatPNG }
func (pngEncoder) Extension() string     { return models.FormatPNG.Extension() }

func (pngEncoder) Encode(img image.Image, _ int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type webpEncoder struct{}

func (webpEncoder) Format() models.Format { return models.FormatWebP }
func (webpEncoder) Extension() string     { return models.FormatWebP.Extension() }

func (webpEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	options, err := webpenc.NewLossyEncoderOptions(webpenc.PresetDefault, float32(quality))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, options); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
