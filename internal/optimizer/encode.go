package optimizer

import (
	"fmt"
	"image"
	"image/jpeg"
	"io"

	"github.com/chai2010/webp"
	"github.com/gen2brain/avif"

	"github.com/coproportal/imageopt/pkg/quality"
)

// EncodeFunc serializes img at the given 0-1 quality factor.
type EncodeFunc func(w io.Writer, img image.Image, factor float64) error

// Encoder is one entry of the fallback chain.
type Encoder struct {
	Format Format
	// Probe gates the attempt on Capabilities.Supports(Format).
	Probe  bool
	Encode EncodeFunc
}

// avifSpeed trades encoder time for size; 0 is slowest, 10 fastest.
const avifSpeed = 8

// DefaultChain is webp, then avif, then baseline jpeg. Only webp is probed.
func DefaultChain() []Encoder {
	return []Encoder{
		{Format: WebP, Probe: true, Encode: EncodeWebP},
		{Format: AVIF, Encode: EncodeAVIF},
		{Format: JPEG, Encode: EncodeJPEG},
	}
}

// EncodeWebP encodes lossy WebP through libwebp.
func EncodeWebP(w io.Writer, img image.Image, factor float64) error {
	return webp.Encode(w, img, &webp.Options{Quality: float32(quality.Percent(factor))})
}

// EncodeAVIF encodes AVIF.
func EncodeAVIF(w io.Writer, img image.Image, factor float64) error {
	return avif.Encode(w, img, avif.Options{
		Quality: quality.Percent(factor),
		Speed:   avifSpeed,
	})
}

// EncodeJPEG encodes baseline JPEG. Transparent pixels come out black.
func EncodeJPEG(w io.Writer, img image.Image, factor float64) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality.Percent(factor)})
}

// attempt runs a single encoder into a pooled buffer and returns a copy of
// the output. An empty blob with a nil error means the encoder declined.
func attempt(enc Encoder, img image.Image, factor float64) (blob []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			blob = nil
			err = fmt.Errorf("%s encoder panic: %v", enc.Format, r)
		}
	}()

	out := NewPooledBuffer(mediumBuffer)
	defer out.Release()

	if err := enc.Encode(out, img, factor); err != nil {
		return nil, err
	}
	if out.Len() == 0 {
		return nil, nil
	}
	return out.ToBytes(), nil
}
