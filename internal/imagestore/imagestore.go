// Package imagestore turns generated inline image payloads into URLs the
// client can dereference: data URIs, files under the local data dir, or
// objects in an S3-compatible bucket.
package imagestore

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store saves one image and returns its public URL.
type Store interface {
	Save(ctx context.Context, data []byte, mime string) (string, error)
}

// Base64Store passes the payload through as a data URI. The default: no
// state, no cleanup, works everywhere markdown renders.
type Base64Store struct{}

func NewBase64Store() *Base64Store { return &Base64Store{} }

func (s *Base64Store) Save(_ context.Context, data []byte, mime string) (string, error) {
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// LocalStore writes images under dir and returns baseURL-prefixed paths; the
// server serves the directory at /images.
type LocalStore struct {
	dir     string
	baseURL string
}

func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStore) Save(_ context.Context, data []byte, mime string) (string, error) {
	name := uuid.NewString() + extensionFor(mime)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return s.baseURL + "/images/" + name, nil
}

// MinioStore uploads to an S3-compatible bucket and returns the public
// object URL.
type MinioStore struct {
	client   *minio.Client
	bucket   string
	endpoint string
	secure   bool
}

// MinioOptions configures the S3-compatible backend.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func NewMinioStore(opts MinioOptions) (*MinioStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &MinioStore{
		client:   client,
		bucket:   opts.Bucket,
		endpoint: opts.Endpoint,
		secure:   opts.UseSSL,
	}, nil
}

func (s *MinioStore) Save(ctx context.Context, data []byte, mime string) (string, error) {
	name := uuid.NewString() + extensionFor(mime)
	_, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: mime})
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	scheme := "http"
	if s.secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.endpoint, s.bucket, name), nil
}

func extensionFor(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}
