package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrStorageNotConfigured is returned by NewS3Uploader for an incomplete config.
var ErrStorageNotConfigured = errors.New("object storage not configured")

// =============================================================================
// Uploader
// =============================================================================

// Uploader stores one object and returns its location.
type Uploader interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64) (string, error)
}

// S3Config configures an S3-compatible bucket.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Enabled reports whether enough is configured to upload.
func (c S3Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != "" && strings.TrimSpace(c.Bucket) != ""
}

// S3Uploader uploads archives with minio-go. The bucket is created on first
// use when missing.
type S3Uploader struct {
	client *minio.Client
	bucket string
	region string

	initOnce sync.Once
	initErr  error
}

// NewS3Uploader creates an uploader for the configured bucket.
func NewS3Uploader(cfg S3Config) (*S3Uploader, error) {
	if !cfg.Enabled() {
		return nil, ErrStorageNotConfigured
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("%w: access key and secret key are required", ErrStorageNotConfigured)
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(strings.TrimSpace(cfg.Endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Uploader{client: client, bucket: strings.TrimSpace(cfg.Bucket), region: region}, nil
}

func (u *S3Uploader) ensureBucket(ctx context.Context) error {
	u.initOnce.Do(func() {
		exists, err := u.client.BucketExists(ctx, u.bucket)
		if err != nil {
			u.initErr = err
			return
		}
		if exists {
			return
		}
		u.initErr = u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{Region: u.region})
	})
	return u.initErr
}

// Upload implements Uploader. The returned location is an s3:// URL.
func (u *S3Uploader) Upload(ctx context.Context, key string, r io.Reader, size int64) (string, error) {
	if err := u.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}
	key = strings.TrimLeft(key, "/")
	if _, err := u.client.PutObject(ctx, u.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: "application/zstd",
	}); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return "s3://" + u.bucket + "/" + key, nil
}

// =============================================================================
// Publisher
// =============================================================================

// Publisher archives bundle directories and uploads them when an uploader
// is configured.
type Publisher struct {
	uploader Uploader
	logger   *slog.Logger
}

// NewPublisher creates a publisher. A nil uploader keeps archives local.
func NewPublisher(uploader Uploader, logger *slog.Logger) *Publisher {
	return &Publisher{uploader: uploader, logger: logger.With("component", "artifacts")}
}

// Publish archives dir and returns where the archive lives: an object URL
// after upload, or the local archive path.
func (p *Publisher) Publish(ctx context.Context, deploymentID, dir string) (string, error) {
	path, err := WriteArchive(dir)
	if err != nil {
		return "", err
	}
	if p.uploader == nil {
		p.logger.Info("bundle archived", "path", path)
		return path, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	key := deploymentID + "/" + filepath.Base(path)
	url, err := p.uploader.Upload(ctx, key, f, info.Size())
	if err != nil {
		return "", err
	}
	p.logger.Info("bundle archive uploaded", "deployment_id", deploymentID, "url", url)
	return url, nil
}
