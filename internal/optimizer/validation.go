package optimizer

import (
	"github.com/rs/zerolog/log"
)

// Decode limits
const (
	MaxFileSize    = 20 * 1024 * 1024 // 20MB max file size
	MaxImageWidth  = 20000            // 20K pixels max width
	MaxImageHeight = 20000            // 20K pixels max height
	MaxImagePixels = 250_000_000      // 250 megapixels max total pixels
)

// ValidateSource checks the raw bytes before any decoding happens
func ValidateSource(src Source) error {
	if len(src.Data) == 0 {
		return &ValidationError{Field: "data", Err: ErrEmptySource}
	}
	if len(src.Data) > MaxFileSize {
		log.Warn().Int("size", len(src.Data)).Int("max", MaxFileSize).Msg("source too large")
		return &ValidationError{Field: "data", Err: ErrImageTooLarge}
	}
	return nil
}

// ValidateDimensions checks header dimensions ahead of a full decode so that
// decompression bombs are rejected before pixels are allocated
func ValidateDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		log.Debug().Int("width", width).Int("height", height).Msg("invalid dimensions")
		return ErrInvalidDimensions
	}

	if width > MaxImageWidth || height > MaxImageHeight {
		log.Warn().Int("width", width).Int("height", height).Msg("dimensions too large")
		return ErrImageTooLarge
	}

	if int64(width)*int64(height) > MaxImagePixels {
		log.Warn().Int64("pixels", int64(width)*int64(height)).Msg("too many pixels")
		return ErrImageTooLarge
	}

	return nil
}
