package converter

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
)

// rebuildEXIF extracts the source's EXIF chain and re-encodes it with
// Orientation reset to 1, since the pixels are auto-oriented at decode.
// Returns (nil, nil) when the source carries no EXIF.
func rebuildEXIF(src []byte) ([]byte, error) {
	rawExif, err := exif.SearchAndExtractExif(src)
	if err != nil {
		if errors.Is(err, exif.ErrNoExif) {
			return nil, nil
		}
		return nil, err
	}

	im := exifcommon.NewIfdMapping()
	if err := exifcommon.LoadStandardIfds(im); err != nil {
		return nil, err
	}
	ti := exif.NewTagIndex()

	_, index, err := exif.Collect(im, ti, rawExif)
	if err != nil {
		return nil, err
	}

	ib := exif.NewIfdBuilderFromExistingChain(index.RootIfd)
	if err := ib.SetStandardWithName("Orientation", []uint16{1}); err != nil {
		return nil, err
	}

	ibe := exif.NewIfdByteEncoder()
	encoded, err := ibe.EncodeToExif(ib)
	if err != nil {
		return nil, err
	}
	return encoded, nil
}

// spliceAPP1 inserts the EXIF payload as an APP1 segment right after the
// JPEG SOI marker. Layout: FF E1, big-endian length (payload + 2),
// "Exif\0\0", TIFF structure.
func spliceAPP1(jpegData, exifData []byte) ([]byte, error) {
	if len(jpegData) < 2 || jpegData[0] != 0xFF || jpegData[1] != 0xD8 {
		return nil, fmt.Errorf("%w: missing SOI marker", ErrEncode)
	}

	payload := append([]byte("Exif\x00\x00"), exifData...)
	if len(payload)+2 > 0xFFFF {
		return nil, fmt.Errorf("%w: exif payload exceeds APP1 segment size", ErrEncode)
	}

	segment := make([]byte, 0, len(payload)+4)
	segment = append(segment, 0xFF, 0xE1)
	segment = binary.BigEndian.AppendUint16(segment, uint16(len(payload)+2))
	segment = append(segment, payload...)

	out := make([]byte, 0, len(jpegData)+len(segment))
	out = append(out, jpegData[:2]...)
	out = append(out, segment...)
	out = append(out, jpegData[2:]...)
	return out, nil
}
