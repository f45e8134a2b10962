// Package objectstore wraps the remote S3-compatible store behind the narrow capability set the
// gateway needs: presign, existence check, stream, delete. Bytes never pass through here except
// for Open.
package objectstore

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is wrapped by Open when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
}

// Gateway is the object store capability surface. Every failure is an apperr.KindStorage error.
type Gateway interface {
	// PresignUpload signs a PUT URL for key valid for ttl. It never uploads.
	PresignUpload(ctx context.Context, key string, ttl time.Duration) (string, error)
	// PresignDownload signs a GET URL for key valid for ttl.
	PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Exists reports whether key is stored; "not found" is false, not an error.
	Exists(ctx context.Context, key string) (bool, error)
	// Open streams the object. The caller closes the reader.
	Open(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes key. Deleting an absent key succeeds.
	Delete(ctx context.Context, key string) error
	// Ping checks the store is reachable and the bucket exists.
	Ping(ctx context.Context) error
}
