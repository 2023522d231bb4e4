// Package s3 stores query result artifacts in a minio-compatible object
// store. The store only speaks the artifact surface: deposit, stream back,
// remove, plus a readiness ping.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/querydesk/querydesk/internal/storage"
)

type Config struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type ArtifactStore struct {
	mc     *minio.Client
	bucket string
	prefix string
}

func New(ctx context.Context, cfg Config) (*ArtifactStore, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("artifact bucket is required")
	}
	endpoint, secure, err := resolveEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}

	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: strings.TrimSpace(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("create artifact store client: %w", err)
	}

	store := &ArtifactStore{mc: mc, bucket: bucket, prefix: normalizePrefix(cfg.Prefix)}
	if cfg.AutoCreateBucket {
		if err := store.ensureBucket(ctx, strings.TrimSpace(cfg.Region)); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func (s *ArtifactStore) Put(ctx context.Context, key string, body io.Reader, size int64, opts storage.PutOptions) error {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return err
	}
	_, err = s.mc.PutObject(ctx, s.bucket, objectKey, body, size, minio.PutObjectOptions{
		ContentType: opts.ContentType,
	})
	if err != nil {
		return fmt.Errorf("deposit artifact %q: %w", objectKey, err)
	}
	return nil
}

func (s *ArtifactStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}
	obj, err := s.mc.GetObject(ctx, s.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("open artifact %q: %w", objectKey, translateErr(err))
	}
	// GetObject is lazy; a Stat forces the not-found check before the
	// caller starts streaming.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, translateErr(err)
	}
	return obj, nil
}

func (s *ArtifactStore) Delete(ctx context.Context, key string) error {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return err
	}
	if err := s.mc.RemoveObject(ctx, s.bucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		if errors.Is(translateErr(err), storage.ErrObjectNotFound) {
			return nil
		}
		return fmt.Errorf("remove artifact %q: %w", objectKey, err)
	}
	return nil
}

// Ping reports whether the bucket is reachable. Used by the readiness probe.
func (s *ArtifactStore) Ping(ctx context.Context) error {
	exists, err := s.mc.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("reach artifact bucket %q: %w", s.bucket, err)
	}
	if !exists {
		return fmt.Errorf("artifact bucket %q does not exist", s.bucket)
	}
	return nil
}

func (s *ArtifactStore) ensureBucket(ctx context.Context, region string) error {
	exists, err := s.mc.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check artifact bucket %q: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create artifact bucket %q: %w", s.bucket, err)
	}
	return nil
}

// objectKey validates key and prepends the configured prefix. Keys come from
// ResultArtifactKey in practice, but traversal is still rejected here in
// case a raw handle ever reaches the store.
func (s *ArtifactStore) objectKey(key string) (string, error) {
	key = strings.TrimSpace(strings.TrimPrefix(key, "/"))
	if key == "" {
		return "", fmt.Errorf("artifact key is required")
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid artifact key %q", key)
	}
	if s.prefix == "" {
		return cleaned, nil
	}
	return s.prefix + "/" + cleaned, nil
}

func normalizePrefix(prefix string) string {
	prefix = path.Clean(strings.Trim(strings.TrimSpace(prefix), "/"))
	if prefix == "." || prefix == ".." {
		return ""
	}
	return prefix
}

// resolveEndpoint accepts either a bare host:port or an http(s) URL, with
// the URL scheme taking precedence over the UseSSL flag.
func resolveEndpoint(raw string, useSSL bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("artifact store endpoint is required")
	}
	if !strings.Contains(raw, "://") {
		return raw, useSSL, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse artifact store endpoint: %w", err)
	}
	switch parsed.Scheme {
	case "http":
		return parsed.Host, false, nil
	case "https":
		return parsed.Host, true, nil
	default:
		return "", false, fmt.Errorf("unsupported artifact store scheme %q", parsed.Scheme)
	}
}

func translateErr(err error) error {
	var response minio.ErrorResponse
	if errors.As(err, &response) {
		switch response.Code {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return storage.ErrObjectNotFound
		}
	}
	return err
}
