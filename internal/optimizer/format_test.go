package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "image/webp", WebP.MIMEType())
	assert.Equal(t, "image/avif", AVIF.MIMEType())
	assert.Equal(t, "image/jpeg", JPEG.MIMEType())
	assert.Equal(t, "application/octet-stream", Format("gif").MIMEType())
	assert.Equal(t, "jpg", JPEG.Extension())
	assert.Equal(t, "webp", WebP.Extension())
}
