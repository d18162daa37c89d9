package optimizer

import (
	"image"
	"sync/atomic"

	"golang.org/x/image/draw"
)

// Surface is the offscreen raster the encoders serialize. Its pixel slice
// comes from the buffer pool and goes back on Release.
type Surface struct {
	*image.RGBA

	buf      *[]byte
	released atomic.Bool
}

func newSurface(plan Plan) *Surface {
	n := plan.Width * plan.Height * 4
	buf := GetBuffer(n)
	pix := (*buf)[:n]
	clear(pix)

	acquireHandle()
	return &Surface{
		RGBA: &image.RGBA{
			Pix:    pix,
			Stride: plan.Width * 4,
			Rect:   image.Rect(0, 0, plan.Width, plan.Height),
		},
		buf: buf,
	}
}

// Release returns the pixels to the pool. Safe to call more than once.
func (s *Surface) Release() {
	if s == nil || !s.released.CompareAndSwap(false, true) {
		return
	}
	s.RGBA = nil
	PutBuffer(s.buf)
	s.buf = nil
	releaseHandle()
}

// Render draws src onto a new surface sized to plan in a single pass.
// Same-size sources are copied; anything else is resampled bilinearly.
func Render(src image.Image, plan Plan) *Surface {
	s := newSurface(plan)
	sb := src.Bounds()

	if sb.Dx() == plan.Width && sb.Dy() == plan.Height {
		draw.Draw(s.RGBA, s.Bounds(), src, sb.Min, draw.Src)
		return s
	}

	draw.ApproxBiLinear.Scale(s.RGBA, s.Bounds(), src, sb, draw.Src, nil)
	return s
}
