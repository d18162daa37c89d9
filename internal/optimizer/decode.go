package optimizer

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/adrium/goheif"
	"github.com/disintegration/imageorient"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gen2brain/avif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decoder turns raw upload bytes into a bitmap handle.
type Decoder interface {
	Decode(ctx context.Context, data []byte) (*Bitmap, error)
}

// ImageDecoder decodes every raster format the portal accepts: jpeg, png,
// gif, webp, bmp, tiff, avif and the heic/heif files produced by phones.
// EXIF orientation is applied so the bitmap is upright.
type ImageDecoder struct{}

// Decode implements Decoder. Errors are always *DecodeError.
func (ImageDecoder) Decode(ctx context.Context, data []byte) (*Bitmap, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Err: ErrEmptySource}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mimeType := mimetype.Detect(data).String()

	img, err := safeDecode(func() (image.Image, error) {
		switch {
		case isAVIF(data):
			return decodeAVIF(data)
		case isHEIF(data):
			return decodeHEIF(data)
		default:
			return decodeStandard(data)
		}
	})
	if err != nil {
		return nil, &DecodeError{MIMEType: mimeType, Err: err}
	}

	return NewBitmap(img, mimeType), nil
}

func decodeStandard(data []byte) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if err := ValidateDimensions(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	img, _, err := imageorient.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return img, nil
}

func decodeAVIF(data []byte) (image.Image, error) {
	cfg, err := avif.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if err := ValidateDimensions(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}
	img, err := avif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return img, nil
}

// decodeHEIF has no cheap header probe, so dimensions are checked after decoding
func decodeHEIF(data []byte) (image.Image, error) {
	img, err := goheif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	b := img.Bounds()
	if err := ValidateDimensions(b.Dx(), b.Dy()); err != nil {
		return nil, err
	}
	return img, nil
}

// safeDecode turns decoder panics on malformed input into errors
func safeDecode(fn func() (image.Image, error)) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			img = nil
			err = fmt.Errorf("%w: decoder panic: %v", ErrUnsupportedImage, r)
		}
	}()
	img, err = fn()
	if err == nil && img == nil {
		err = ErrUnsupportedImage
	}
	return img, err
}

// ftypBrand returns the major brand of an ISOBMFF file.
// Layout: [4 bytes size] + "ftyp" + [4 bytes brand]
func ftypBrand(data []byte) (string, bool) {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return "", false
	}
	return strings.ToLower(string(data[8:12])), true
}

func isHEIF(data []byte) bool {
	brand, ok := ftypBrand(data)
	if !ok {
		return false
	}
	switch brand {
	case "heic", "heix", "heim", "heis", "hevc", "hevx", "mif1", "msf1":
		return true
	}
	return false
}

// isAVIF also looks at the compatible brands, since some encoders write a
// generic "mif1" major brand.
func isAVIF(data []byte) bool {
	brand, ok := ftypBrand(data)
	if !ok {
		return false
	}
	if brand == "avif" || brand == "avis" {
		return true
	}

	boxSize := int(binary.BigEndian.Uint32(data[0:4]))
	if boxSize > len(data) {
		boxSize = len(data)
	}
	for off := 16; off+4 <= boxSize; off += 4 {
		if compat := string(data[off : off+4]); compat == "avif" || compat == "avis" {
			return true
		}
	}
	return false
}
