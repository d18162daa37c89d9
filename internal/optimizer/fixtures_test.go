package optimizer

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// createTestImage creates a simple gradient image
func createTestImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / width),
				G: uint8((y * 255) / height),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

// createPhotoImage approximates a photograph: smooth gradients with sensor-like noise
func createPhotoImage(width, height int) *image.RGBA {
	rng := rand.New(rand.NewSource(42))
	img := createTestImage(width, height)
	for i := 0; i < len(img.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := int(img.Pix[i+c]) + rng.Intn(25) - 12
			if v < 0 {
				v = 0
			}
			if v > 255 {
				v = 255
			}
			img.Pix[i+c] = uint8(v)
		}
	}
	return img
}

func encodeJPEGBytes(t testing.TB, img image.Image, q int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}))
	return buf.Bytes()
}

func encodePNGBytes(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// fakeDecoder hands out tracked bitmaps without touching real codecs
type fakeDecoder struct {
	img   image.Image
	err   error
	leaky bool // return an acquired bitmap alongside the error
	calls atomic.Int32
}

func (d *fakeDecoder) Decode(_ context.Context, _ []byte) (*Bitmap, error) {
	d.calls.Add(1)
	if d.err != nil {
		if d.leaky {
			return NewBitmap(d.img, "image/png"), d.err
		}
		return nil, d.err
	}
	return NewBitmap(d.img, "image/png"), nil
}
