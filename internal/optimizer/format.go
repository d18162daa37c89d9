package optimizer

import "strings"

// Format tags an encoded blob.
type Format string

const (
	WebP Format = "webp"
	AVIF Format = "avif"
	JPEG Format = "jpeg"
)

// MIMEType returns the content type used when the blob is stored or served.
func (f Format) MIMEType() string {
	switch f {
	case WebP:
		return "image/webp"
	case AVIF:
		return "image/avif"
	case JPEG:
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

// Extension returns the file extension without the dot.
func (f Format) Extension() string {
	if f == JPEG {
		return "jpg"
	}
	return string(f)
}

// IsModernMIME reports whether the declared type is one of the two modern formats.
func IsModernMIME(mimeType string) bool {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt == WebP.MIMEType() || mt == AVIF.MIMEType()
}
