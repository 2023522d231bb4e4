// Package storage abstracts the write-capable location where the local query
// engine deposits result artifacts. The orchestration core never reads this
// location directly; it only sees results through the engine's paging API.
// Downloads and cleanup go through the artifact endpoints of the HTTP API.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
)

var ErrObjectNotFound = errors.New("object not found")

type PutOptions struct {
	ContentType string
}

// ObjectStore is the exact surface the service needs: deposit an artifact,
// stream it back, and remove it. Deleting a missing object is not an error.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

var handlePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// ResultArtifactKey builds the object key under which the result artifact of
// an execution is stored.
func ResultArtifactKey(handle string) (string, error) {
	if !handlePattern.MatchString(handle) {
		return "", fmt.Errorf("invalid execution handle: %q", handle)
	}
	return path.Join("results", handle+".parquet"), nil
}
