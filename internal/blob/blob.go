// Package blob stores receipt images in an S3-compatible bucket (AWS S3,
// Cloudflare R2, MinIO). Browsers upload directly through presigned URLs.
package blob

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// UploadExpiry is how long a presigned upload URL stays valid.
const UploadExpiry = 60 * time.Second

// ErrNotConfigured is returned when no bucket is set up.
var ErrNotConfigured = errors.New("image storage is not configured")

// Upload describes a pending browser upload.
type Upload struct {
	SignedURL string `json:"signedUrl"`
	Path      string `json:"path"`
	PublicURL string `json:"publicUrl"`
}

// Store is the image storage used by the service layer.
type Store interface {
	// PresignUpload reserves a unique key for filename and returns a URL the
	// client can PUT the file to.
	PresignUpload(ctx context.Context, filename, contentType string) (*Upload, error)

	// Delete removes the object behind a public URL or key. Deleting a
	// missing object is not an error.
	Delete(ctx context.Context, urlOrKey string) error
}

// Options configures an S3Store.
type Options struct {
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
}

// S3Store implements Store on the S3 API.
type S3Store struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	baseURL   string
	now       func() time.Time
}

var _ Store = (*S3Store)(nil)

// New creates an S3Store. Endpoint may be empty for AWS itself; any other
// value is used with path-style addressing.
func New(ctx context.Context, opts Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, ErrNotConfigured
	}
	region := opts.Region
	if region == "" {
		region = "auto"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	baseURL := strings.TrimSuffix(opts.PublicBaseURL, "/")
	if baseURL == "" && opts.Endpoint != "" {
		baseURL = strings.TrimSuffix(opts.Endpoint, "/") + "/" + opts.Bucket
	}

	return &S3Store{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    opts.Bucket,
		baseURL:   baseURL,
		now:       time.Now,
	}, nil
}

// PresignUpload returns a presigned PUT URL valid for UploadExpiry.
func (s *S3Store) PresignUpload(ctx context.Context, filename, contentType string) (*Upload, error) {
	key := NewKey(filename, s.now())

	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(UploadExpiry))
	if err != nil {
		return nil, fmt.Errorf("failed to create upload URL: %w", err)
	}

	return &Upload{
		SignedURL: req.URL,
		Path:      key,
		PublicURL: s.baseURL + "/" + key,
	}, nil
}

// Delete removes an object by public URL or key.
func (s *S3Store) Delete(ctx context.Context, urlOrKey string) error {
	key := KeyFromURL(urlOrKey)
	if key == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete image %s: %w", key, err)
	}
	return nil
}

// NewKey builds a unique object key: <unix-millis>-<8 random chars>.<ext>.
func NewKey(filename string, now time.Time) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%d-%s.%s", now.UnixMilli(), uuid.New().String()[:8], ext)
}

// KeyFromURL returns the object key, the last path segment of a public URL.
func KeyFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		raw = u.Path
	}
	return path.Base(strings.TrimSuffix(raw, "/"))
}
