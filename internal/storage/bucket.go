package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const cacheControl = "max-age=31536000"

// BucketConfig describes an S3-compatible endpoint
type BucketConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	// PublicURL overrides the https://<bucket>.<endpoint> base of returned URLs
	PublicURL string
}

// Bucket uploads objects to S3-compatible storage with public-read ACL
type Bucket struct {
	client *minio.Client
	cfg    BucketConfig
}

// NewBucket creates a minio client for cfg. No request is made until the
// first upload.
func NewBucket(cfg BucketConfig) (*Bucket, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("storage: endpoint is required")
	}
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "storage: init client for %s", cfg.Endpoint)
	}
	return &Bucket{client: cli, cfg: cfg}, nil
}

// Upload puts blob into bucket and returns its public URL
func (b *Bucket) Upload(ctx context.Context, bucket, objectPath string, blob []byte, contentType string) (string, error) {
	if err := validateObject(bucket, objectPath, blob); err != nil {
		return "", err
	}

	r := bytes.NewReader(blob)
	info, err := b.client.PutObject(ctx, bucket, objectPath, r, int64(r.Len()), minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: cacheControl,
		UserMetadata: map[string]string{"x-amz-acl": "public-read"},
	})
	if err != nil {
		return "", errors.Wrapf(err, "storage: put object %s/%s", bucket, objectPath)
	}

	log.Debug().
		Str("bucket", bucket).
		Str("key", info.Key).
		Int64("size", info.Size).
		Msg("object uploaded")

	return b.URL(bucket, objectPath), nil
}

// URL returns the public address of an object
func (b *Bucket) URL(bucket, objectPath string) string {
	return publicURL(b.cfg.PublicURL, bucket, b.cfg.Endpoint, objectPath)
}

func publicURL(base, bucket, endpoint, objectPath string) string {
	objectPath = strings.TrimPrefix(objectPath, "/")
	if base != "" {
		return strings.TrimSuffix(base, "/") + "/" + objectPath
	}
	return fmt.Sprintf("https://%s.%s/%s", bucket, endpoint, objectPath)
}
