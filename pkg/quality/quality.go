// Package quality converts the pipeline's 0-1 compression factor into the
// integer scales used by individual codecs.
package quality

import "math"

const (
	// Default is the compression factor used for every format.
	Default = 0.8

	minPercent = 1
	maxPercent = 100
)

// Normalize returns factor unchanged when it lies in (0, 1], otherwise Default.
func Normalize(factor float64) float64 {
	if math.IsNaN(factor) || factor <= 0 || factor > 1 {
		return Default
	}
	return factor
}

// Percent maps a 0-1 factor onto the 1-100 scale of jpeg, webp and avif encoders.
func Percent(factor float64) int {
	p := int(math.Floor(Normalize(factor)*100 + 0.5))
	if p < minPercent {
		return minPercent
	}
	if p > maxPercent {
		return maxPercent
	}
	return p
}
