package optimizer

import (
	"image"
	"sync/atomic"
)

// Bitmap is a decoded image handle. Release must be called on every path
// once the pixels are no longer needed; it is safe to call more than once.
type Bitmap struct {
	Image    image.Image
	MIMEType string

	released atomic.Bool
}

// NewBitmap wraps a decoded image in a tracked handle.
func NewBitmap(img image.Image, mimeType string) *Bitmap {
	acquireHandle()
	return &Bitmap{Image: img, MIMEType: mimeType}
}

// Width returns the decoded pixel width.
func (b *Bitmap) Width() int { return b.Image.Bounds().Dx() }

// Height returns the decoded pixel height.
func (b *Bitmap) Height() int { return b.Image.Bounds().Dy() }

// Release drops the pixels and closes the handle.
func (b *Bitmap) Release() {
	if b == nil || !b.released.CompareAndSwap(false, true) {
		return
	}
	b.Image = nil
	releaseHandle()
}
