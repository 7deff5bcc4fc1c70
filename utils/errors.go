package utils

import "fmt"

// WrapDownloadError returns a wrapped download error
func WrapDownloadError(err error) error {
	return fmt.Errorf("download error: %w", err)
}

// WrapUploadError returns a wrapped upload error
func WrapUploadError(err error) error {
	return fmt.Errorf("upload error: %w", err)
}

// WrapValidateError returns a wrapped token validation error
func WrapValidateError(err error) error {
	return fmt.Errorf("validate error: %w", err)
}

// WrapSharedLinkError returns a wrapped shared link error
func WrapSharedLinkError(err error) error {
	return fmt.Errorf("shared link error: %w", err)
}

// WrapBatchFinishError returns a wrapped batch finish error
func WrapBatchFinishError(err error) error {
	return fmt.Errorf("batch finish error: %w", err)
}
