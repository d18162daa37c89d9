package optimizer

import "math"

// Plan is the target size of the rendered surface.
type Plan struct {
	Width  int
	Height int
}

// Fits reports whether the plan already satisfies both bounds.
func (p Plan) Fits(maxWidth, maxHeight int) bool {
	return p.Width <= maxWidth && p.Height <= maxHeight
}

// PlanDimensions bounds width first and then re-checks the height produced by
// that step, rounding after each stage. The stages must stay separate:
// rounding in the first can push the height over the bound and trigger the
// second.
func PlanDimensions(width, height int, opts Options) (Plan, error) {
	if width <= 0 || height <= 0 {
		return Plan{}, &ValidationError{Field: "dimensions", Err: ErrInvalidDimensions}
	}
	if err := opts.validate(); err != nil {
		return Plan{}, err
	}

	w, h := width, height

	if w > opts.MaxWidth {
		h = roundHalfUp(float64(h) * float64(opts.MaxWidth) / float64(w))
		w = opts.MaxWidth
	}

	if h > opts.MaxHeight {
		w = roundHalfUp(float64(w) * float64(opts.MaxHeight) / float64(h))
		h = opts.MaxHeight
	}

	// extreme aspect ratios can round a side down to nothing
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	return Plan{Width: w, Height: h}, nil
}

// roundHalfUp rounds .5 towards positive infinity.
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
