package optimizer

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"

	"github.com/chai2010/webp"
	"github.com/gen2brain/avif"
	"github.com/rs/zerolog/log"
)

// Capabilities answers whether the runtime can handle a format. A false
// answer is an ordinary input to the encoder chain, never an error.
type Capabilities interface {
	Supports(f Format) bool
}

// webpSample is a 1x1 lossy WebP image.
const webpSample = "UklGRiIAAABXRUJQVlA4IBYAAAAwAQCdASoBAAEADsD+JaQAA3AAAAAA"

// Probe checks support by exercising the codec libraries on a tiny sample
// every time it is asked.
type Probe struct{}

// Supports implements Capabilities.
func (Probe) Supports(f Format) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Debug().Str("format", string(f)).Interface("panic", r).Msg("capability probe panicked")
			ok = false
		}
	}()

	switch f {
	case WebP:
		return probeWebP()
	case AVIF:
		return probeAVIF()
	case JPEG:
		return true
	default:
		return false
	}
}

func probeWebP() bool {
	sample, err := base64.StdEncoding.DecodeString(webpSample)
	if err != nil {
		return false
	}
	img, err := webp.Decode(bytes.NewReader(sample))
	if err != nil {
		log.Debug().Err(err).Msg("webp probe failed")
		return false
	}
	return img.Bounds().Dx() == 1 && img.Bounds().Dy() == 1
}

// probeAVIF round-trips a single pixel; the codec has no embedded fixture
// small enough to be worth carrying.
func probeAVIF() bool {
	px := image.NewRGBA(image.Rect(0, 0, 1, 1))
	px.Set(0, 0, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	if err := avif.Encode(&buf, px, avif.Options{Quality: 50, Speed: 10}); err != nil {
		log.Debug().Err(err).Msg("avif probe encode failed")
		return false
	}
	img, err := avif.Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		log.Debug().Err(err).Msg("avif probe decode failed")
		return false
	}
	return img.Bounds().Dx() == 1 && img.Bounds().Dy() == 1
}

// StaticCapabilities is a fixed support table. Formats not listed are unsupported.
type StaticCapabilities map[Format]bool

// Supports implements Capabilities.
func (s StaticCapabilities) Supports(f Format) bool {
	return s[f]
}

// SupportReport lists support for each format, in the given order.
func SupportReport(c Capabilities, formats ...Format) map[Format]bool {
	out := make(map[Format]bool, len(formats))
	for _, f := range formats {
		out[f] = c.Supports(f)
	}
	return out
}
