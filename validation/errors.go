package validation

import "errors"

var (
	ErrInvalidFileType = errors.New("invalid file type")
	ErrFileTooLarge    = errors.New("file size exceeds limit")
	ErrTypeMismatch    = errors.New("declared type does not match content")
	ErrEmptyFile       = errors.New("empty file")
)
