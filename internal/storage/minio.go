package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig encapsulates the connection info for an S3-compatible service.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// MinioStore implements BlobStore against a single bucket of an S3-compatible
// service.
type MinioStore struct {
	client *minio.Client
	bucket string
	base   string
}

// NewMinioStore builds a BlobStore for the configured bucket.
func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("blob endpoint must be provided")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("blob credentials must be provided")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("blob bucket must be provided")
	}

	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}

	return &MinioStore{
		client: client,
		bucket: cfg.Bucket,
		base:   fmt.Sprintf("%s://%s/%s", scheme, endpoint, cfg.Bucket),
	}, nil
}

// List returns every object under the prefix, with metadata. S3 does not
// report a separate creation time, so CreatedAt equals LastModified unless the
// object carries an explicit created-at metadata entry.
func (s *MinioStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	opts := minio.ListObjectsOptions{
		Prefix:       prefix,
		Recursive:    true,
		WithMetadata: true,
	}

	var results []ObjectInfo
	for object := range s.client.ListObjects(ctx, s.bucket, opts) {
		if object.Err != nil {
			return nil, fmt.Errorf("blob list failed for bucket %s: %w", s.bucket, object.Err)
		}

		info := ObjectInfo{
			Name:         object.Key,
			Size:         object.Size,
			ContentType:  object.ContentType,
			ETag:         object.ETag,
			CreatedAt:    object.LastModified,
			LastModified: object.LastModified,
			Metadata:     userMetadata(object.UserMetadata),
			URL:          s.base + "/" + object.Key,
			VersionID:    object.VersionID,
		}
		if created, ok := parseCreatedAt(info.Metadata); ok {
			info.CreatedAt = created
		}
		results = append(results, info)
	}
	return results, nil
}

// Open returns the object's content stream.
func (s *MinioStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("blob open failed for %s: %w", name, err)
	}
	return obj, nil
}

// Exists reports whether the object is present in the bucket.
func (s *MinioStore) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NotFound" {
			return false, nil
		}
		return false, fmt.Errorf("blob stat failed for %s: %w", name, err)
	}
	return true, nil
}

var _ BlobStore = (*MinioStore)(nil)

// parseCreatedAt reads an RFC 3339 created-at stamp some producers attach as
// user metadata.
func parseCreatedAt(meta map[string]string) (time.Time, bool) {
	for _, key := range []string{"Created-At", "created-at"} {
		if raw, ok := meta[key]; ok {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func userMetadata(raw minio.StringMap) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[strings.TrimPrefix(k, "X-Amz-Meta-")] = v
	}
	return out
}
