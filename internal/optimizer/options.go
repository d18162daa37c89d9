package optimizer

import "github.com/coproportal/imageopt/pkg/quality"

// Defaults applied to uploads from the admin back office.
const (
	DefaultMaxWidth  = 1920
	DefaultMaxHeight = 1080
	// DefaultThreshold is the size above which even modern formats are recompressed.
	DefaultThreshold = 500 * 1024
)

// Options configures one pipeline. The zero value is not usable; start from DefaultOptions.
type Options struct {
	MaxWidth  int
	MaxHeight int
	// Quality is a 0-1 factor shared by every encoder in the chain.
	Quality float64
	// Threshold is the byte size above which NeedsOptimization reports true.
	Threshold int64
	// Placeholder enables the blurhash computed from the rendered surface.
	Placeholder bool
}

// DefaultOptions returns the portal's compile-time settings.
func DefaultOptions() Options {
	return Options{
		MaxWidth:  DefaultMaxWidth,
		MaxHeight: DefaultMaxHeight,
		Quality:   quality.Default,
		Threshold: DefaultThreshold,
	}
}

func (o Options) validate() error {
	if o.MaxWidth <= 0 {
		return &ValidationError{Field: "max_width", Err: ErrInvalidDimensions}
	}
	if o.MaxHeight <= 0 {
		return &ValidationError{Field: "max_height", Err: ErrInvalidDimensions}
	}
	return nil
}
