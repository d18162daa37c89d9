package optimizer

import (
	"image"

	"github.com/bbrks/go-blurhash"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

const (
	placeholderSide = 32
	placeholderX    = 4
	placeholderY    = 3
)

// Placeholder returns a blurhash of img, computed on a small thumbnail.
// Returns an empty string when hashing fails.
func Placeholder(img image.Image) string {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return ""
	}

	w, h := placeholderSide, placeholderSide
	if b.Dx() > b.Dy() {
		h = max(1, roundHalfUp(float64(b.Dy())*placeholderSide/float64(b.Dx())))
	} else {
		w = max(1, roundHalfUp(float64(b.Dx())*placeholderSide/float64(b.Dy())))
	}

	thumb := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(thumb, thumb.Bounds(), img, b, draw.Src, nil)

	hash, err := blurhash.Encode(placeholderX, placeholderY, thumb)
	if err != nil {
		log.Debug().Err(err).Msg("blurhash failed")
		return ""
	}
	return hash
}
