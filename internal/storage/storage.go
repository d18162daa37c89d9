// Package storage uploads optimized images to object storage and returns the
// public URL the portal stores alongside its records.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrEmptyObject is returned when an upload carries no bytes
var ErrEmptyObject = errors.New("storage: empty object")

// Uploader stores a blob under bucket/objectPath and returns its public URL
type Uploader interface {
	Upload(ctx context.Context, bucket, objectPath string, blob []byte, contentType string) (string, error)
}

// ObjectPath builds base/folder/<yyyy>/<Month>/<uuid>.<ext>. Empty segments
// are dropped.
func ObjectPath(base, folder, ext string, now time.Time) string {
	name := uuid.NewString()
	if ext != "" {
		name += "." + strings.TrimPrefix(ext, ".")
	}
	p := path.Join(base, folder, fmt.Sprintf("%d", now.Year()), now.Month().String(), name)
	return strings.TrimPrefix(path.Clean(p), "/")
}

// ExtensionFromContentType maps a MIME type onto a file extension
func ExtensionFromContentType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))

	switch contentType {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/svg+xml":
		return "svg"
	default:
		parts := strings.Split(contentType, "/")
		if len(parts) > 1 && parts[1] != "" {
			return parts[1]
		}
		return "bin"
	}
}

func validateObject(bucket, objectPath string, blob []byte) error {
	if bucket == "" {
		return errors.New("storage: bucket name is required")
	}
	if objectPath == "" {
		return errors.New("storage: object path is required")
	}
	if len(blob) == 0 {
		return ErrEmptyObject
	}
	return nil
}
