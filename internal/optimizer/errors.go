package optimizer

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptySource is returned when the source holds no bytes
	ErrEmptySource = errors.New("empty source file")
	// ErrInvalidDimensions is returned for zero or negative dimensions or bounds
	ErrInvalidDimensions = errors.New("invalid image dimensions")
	// ErrImageTooLarge is returned when image dimensions exceed decode limits
	ErrImageTooLarge = errors.New("image dimensions exceed maximum allowed")
	// ErrUnsupportedImage is returned when no decoder recognises the bytes
	ErrUnsupportedImage = errors.New("unsupported or corrupt image data")
	// ErrNoEncoding is returned when every encoder in the chain failed
	ErrNoEncoding = errors.New("no encoder produced output")
)

// ValidationError reports input the pipeline refuses before doing any work.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// DecodeError reports bytes that could not be turned into a bitmap.
type DecodeError struct {
	MIMEType string
	Err      error
}

func (e *DecodeError) Error() string {
	if e.MIMEType == "" {
		return fmt.Sprintf("decode failed: %v", e.Err)
	}
	return fmt.Sprintf("decode %s failed: %v", e.MIMEType, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError is fatal for the call. Attempts lists the formats tried in order.
type EncodeError struct {
	Attempts []Format
	Err      error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode failed after %v: %v", e.Attempts, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }
