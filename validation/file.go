package validation

import (
	"bytes"
	"path/filepath"
	"strings"
)

type FileType string

const (
	FileTypePNG  FileType = "png"
	FileTypeJPEG FileType = "jpeg"
	FileTypeGIF  FileType = "gif"
	FileTypeWebP FileType = "webp"
)

var magicBytes = map[FileType][]byte{
	FileTypePNG:  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	FileTypeJPEG: {0xFF, 0xD8, 0xFF},
	FileTypeGIF:  {0x47, 0x49, 0x46, 0x38},
}

// DetectFileType sniffs the content type from the file's leading bytes.
// Extension and declared mime are never trusted for this decision.
func DetectFileType(data []byte) (FileType, error) {
	for fileType, signature := range magicBytes {
		if bytes.HasPrefix(data, signature) {
			return fileType, nil
		}
	}

	// WebP is a RIFF container: "RIFF" <size> "WEBP".
	if len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")) {
		return FileTypeWebP, nil
	}

	return "", ErrInvalidFileType
}

func IsAllowedImageType(fileType FileType) bool {
	switch fileType {
	case FileTypePNG, FileTypeJPEG, FileTypeGIF, FileTypeWebP:
		return true
	default:
		return false
	}
}

// MimeType returns the canonical mime for a sniffed type, for tracked
// metadata.
func MimeType(fileType FileType) string {
	switch fileType {
	case FileTypePNG:
		return "image/png"
	case FileTypeJPEG:
		return "image/jpeg"
	case FileTypeGIF:
		return "image/gif"
	case FileTypeWebP:
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// TypeFromMime maps a caller-declared mime to a file type, for
// cross-checking the claim against sniffed content.
func TypeFromMime(mime string) (FileType, bool) {
	mime = strings.TrimSpace(strings.ToLower(strings.Split(mime, ";")[0]))
	switch mime {
	case "image/png":
		return FileTypePNG, true
	case "image/jpeg", "image/jpg":
		return FileTypeJPEG, true
	case "image/gif":
		return FileTypeGIF, true
	case "image/webp":
		return FileTypeWebP, true
	default:
		return "", false
	}
}

// TypeFromExtension maps a filename's extension to a file type, for
// cross-checking against sniffed content. Unknown extensions are not an
// error here; content sniffing decides acceptance.
func TypeFromExtension(name string) (FileType, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return FileTypePNG, true
	case ".jpg", ".jpeg":
		return FileTypeJPEG, true
	case ".gif":
		return FileTypeGIF, true
	case ".webp":
		return FileTypeWebP, true
	default:
		return "", false
	}
}

// AllowedExtensions lists the input extensions the pipeline accepts, for
// directory walking and watch-mode filtering.
func AllowedExtensions() []string {
	return []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}
}
