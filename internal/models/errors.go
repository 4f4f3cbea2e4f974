package models

import (
	"errors"
	"fmt"
)

var (
	ErrNoFilesProvided     = errors.New("no files provided")
	ErrUnsupportedFormat   = errors.New("unsupported format")
	ErrInvalidVideoBatch   = errors.New("only a single video is supported")
	ErrAssetUploadFailed   = errors.New("asset upload failed")
	ErrAssetDeleteFailed   = errors.New("asset delete failed")
	ErrInferenceCallFailed = errors.New("inference call failed")
)

// FormatError names the file whose extension is not in the format table.
type FormatError struct {
	FileName  string
	Extension string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s format is not supported", e.FileName)
}

func (e *FormatError) Unwrap() error {
	return ErrUnsupportedFormat
}

// IsClientError reports whether err was caused by the request content.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNoFilesProvided) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrInvalidVideoBatch)
}
