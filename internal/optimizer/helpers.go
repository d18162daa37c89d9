package optimizer

import (
	"fmt"
	"strconv"
)

// NeedsOptimization reports whether a file should go through the pipeline:
// it is larger than threshold, or not already webp or avif.
func NeedsOptimization(size int64, mimeType string, threshold int64) bool {
	return size > threshold || !IsModernMIME(mimeType)
}

// FormatFileSize renders a byte count for the French-language back office.
func FormatFileSize(bytes int64) string {
	switch {
	case bytes < 1024:
		return strconv.FormatInt(bytes, 10) + " octets"
	case bytes < 1024*1024:
		return fmt.Sprintf("%.1f Ko", float64(bytes)/1024)
	default:
		return fmt.Sprintf("%.2f Mo", float64(bytes)/(1024*1024))
	}
}

// CalculateReduction returns the saving from original to optimized in whole
// percent, rounded half up. Negative when the output grew; 0 when original is 0.
func CalculateReduction(original, optimized int64) int {
	if original <= 0 {
		return 0
	}
	return roundHalfUp(float64(original-optimized) / float64(original) * 100)
}
