package converter

import (
	"bytes"
	"image/jpeg"
	"testing"

	"github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	"go.uber.org/zap/zaptest"

	"pixelbatch/models"
)

// minimalEXIF builds a big-endian TIFF structure holding a single IFD0
// with one Orientation entry.
func minimalEXIF(orientation uint16) []byte {
	return []byte{
		'M', 'M', 0x00, 0x2A, // byte order + TIFF magic
		0x00, 0x00, 0x00, 0x08, // IFD0 offset
		0x00, 0x01, // entry count
		0x01, 0x12, // Orientation
		0x00, 0x03, // SHORT
		0x00, 0x00, 0x00, 0x01, // count
		byte(orientation >> 8), byte(orientation), 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, // no next IFD
	}
}

func readOrientation(t *testing.T, data []byte) uint16 {
	t.Helper()

	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil {
		t.Fatalf("Failed to extract EXIF: %v", err)
	}

	im := exifcommon.NewIfdMapping()
	if err := exifcommon.LoadStandardIfds(im); err != nil {
		t.Fatalf("Failed to load standard IFDs: %v", err)
	}
	ti := exif.NewTagIndex()

	_, index, err := exif.Collect(im, ti, rawExif)
	if err != nil {
		t.Fatalf("Failed to collect EXIF: %v", err)
	}

	tags, err := index.RootIfd.FindTagWithName("Orientation")
	if err != nil {
		t.Fatalf("Orientation tag not found: %v", err)
	}
	value, err := tags[0].Value()
	if err != nil {
		t.Fatalf("Failed to read Orientation value: %v", err)
	}
	shorts, ok := value.([]uint16)
	if !ok || len(shorts) == 0 {
		t.Fatalf("Unexpected Orientation value type: %T", value)
	}
	return shorts[0]
}

func TestRebuildEXIF_NoEXIFSource(t *testing.T) {
	data := encodeTestJPEG(t, 50, 50)

	exifData, err := rebuildEXIF(data)
	if err != nil {
		t.Fatalf("rebuildEXIF failed: %v", err)
	}
	if exifData != nil {
		t.Errorf("Expected nil EXIF for EXIF-less source, got %d bytes", len(exifData))
	}
}

func TestRebuildEXIF_NormalizesOrientation(t *testing.T) {
	src, err := spliceAPP1(encodeTestJPEG(t, 60, 60), minimalEXIF(6))
	if err != nil {
		t.Fatalf("spliceAPP1 failed: %v", err)
	}

	exifData, err := rebuildEXIF(src)
	if err != nil {
		t.Fatalf("rebuildEXIF failed: %v", err)
	}
	if exifData == nil {
		t.Fatal("Expected rebuilt EXIF, got nil")
	}
	if got := readOrientation(t, exifData); got != 1 {
		t.Errorf("Expected Orientation 1 after rebuild, got %d", got)
	}
}

func TestSpliceAPP1_OutputStillDecodes(t *testing.T) {
	encoded := encodeTestJPEG(t, 80, 40)

	spliced, err := spliceAPP1(encoded, minimalEXIF(1))
	if err != nil {
		t.Fatalf("spliceAPP1 failed: %v", err)
	}
	if spliced[2] != 0xFF || spliced[3] != 0xE1 {
		t.Errorf("Expected APP1 marker after SOI, got %02X %02X", spliced[2], spliced[3])
	}

	img, err := jpeg.Decode(bytes.NewReader(spliced))
	if err != nil {
		t.Fatalf("Spliced JPEG no longer decodes: %v", err)
	}
	if img.Bounds().Dx() != 80 || img.Bounds().Dy() != 40 {
		t.Errorf("Decoded %dx%d, want 80x40", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestSpliceAPP1_RejectsNonJPEG(t *testing.T) {
	if _, err := spliceAPP1([]byte("not a jpeg"), minimalEXIF(1)); err == nil {
		t.Fatal("Expected error for non-JPEG stream")
	}
}

func TestConverter_Convert_PreservesMetadata(t *testing.T) {
	logger := zaptest.NewLogger(t)
	conv := NewConverter(logger)

	src, err := spliceAPP1(encodeTestJPEG(t, 120, 120), minimalEXIF(6))
	if err != nil {
		t.Fatalf("spliceAPP1 failed: %v", err)
	}

	file := trackedFile("oriented.jpg", src)
	settings := models.ConversionSettings{
		Format:           models.FormatJPEG,
		Quality:          85,
		PreserveMetadata: true,
	}

	out, err := conv.Convert(file, settings)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	// Pixels are auto-oriented at decode, so the carried EXIF must say
	// upright.
	if got := readOrientation(t, out.Data); got != 1 {
		t.Errorf("Expected Orientation 1 in output, got %d", got)
	}

	if _, err := jpeg.Decode(bytes.NewReader(out.Data)); err != nil {
		t.Fatalf("Output with preserved metadata no longer decodes: %v", err)
	}
}

func TestConverter_Convert_PreserveMetadataNoEXIFIsNoop(t *testing.T) {
	logger := zaptest.NewLogger(t)
	conv := NewConverter(logger)

	file := trackedFile("plain.jpg", encodeTestJPEG(t, 64, 64))
	settings := models.ConversionSettings{
		Format:           models.FormatJPEG,
		Quality:          85,
		PreserveMetadata: true,
	}

	out, err := conv.Convert(file, settings)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if _, err := jpeg.Decode(bytes.NewReader(out.Data)); err != nil {
		t.Fatalf("Output no longer decodes: %v", err)
	}
}
