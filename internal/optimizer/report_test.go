package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewReport(t *testing.T) {
	src := Source{Name: "cover.jpg", MIMEType: "image/jpeg", Data: make([]byte, 2048*1024)}

	t.Run("optimized", func(t *testing.T) {
		res := &Result{
			Format:        WebP,
			OriginalSize:  src.Size(),
			OptimizedSize: 512 * 1024,
			Width:         1920,
			Height:        1080,
		}
		r := NewReport(src, res)

		assert.True(t, r.Optimized)
		assert.Equal(t, "webp", r.Format)
		assert.Equal(t, "image/webp", r.ContentType)
		assert.Equal(t, "2.00 Mo", r.OriginalSizeHuman)
		assert.Equal(t, "512.0 Ko", r.OptimizedSizeHuman)
		assert.Equal(t, 75, r.ReductionPercent)
		assert.Equal(t, 1920, r.Width)
	})

	t.Run("passthrough", func(t *testing.T) {
		r := NewReport(src, nil)

		assert.False(t, r.Optimized)
		assert.Empty(t, r.Format)
		assert.Equal(t, "image/jpeg", r.ContentType)
		assert.Equal(t, r.OriginalSize, r.OptimizedSize)
		assert.Equal(t, 0, r.ReductionPercent)
	})
}
