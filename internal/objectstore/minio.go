package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/abduss/bucketgate/internal/apperr"
)

// MinIOGateway implements Gateway with minio-go.
type MinIOGateway struct {
	client *minio.Client
	bucket string
}

// NewMinIOGateway constructs a gateway over one physical bucket.
func NewMinIOGateway(client *minio.Client, bucket string) *MinIOGateway {
	return &MinIOGateway{client: client, bucket: bucket}
}

// PresignUpload implements Gateway.
func (g *MinIOGateway) PresignUpload(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := g.client.PresignedPutObject(ctx, g.bucket, key, ttl)
	if err != nil {
		return "", apperr.Storage("presign upload", err)
	}
	return u.String(), nil
}

// PresignDownload implements Gateway.
func (g *MinIOGateway) PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := g.client.PresignedGetObject(ctx, g.bucket, key, ttl, make(url.Values))
	if err != nil {
		return "", apperr.Storage("presign download", err)
	}
	return u.String(), nil
}

// Exists implements Gateway.
func (g *MinIOGateway) Exists(ctx context.Context, key string) (bool, error) {
	if _, err := g.client.StatObject(ctx, g.bucket, key, minio.StatObjectOptions{}); err != nil {
		if isMinIONotFound(err) {
			return false, nil
		}
		return false, apperr.Storage("stat object", err)
	}
	return true, nil
}

// Open implements Gateway.
func (g *MinIOGateway) Open(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	stat, err := g.client.StatObject(ctx, g.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isMinIONotFound(err) {
			return nil, ObjectInfo{}, apperr.Storage("open object", fmt.Errorf("%s: %w", key, ErrObjectNotFound))
		}
		return nil, ObjectInfo{}, apperr.Storage("open object", err)
	}

	object, err := g.client.GetObject(ctx, g.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, apperr.Storage("open object", err)
	}

	return object, ObjectInfo{
		Key:          key,
		Size:         stat.Size,
		ContentType:  stat.ContentType,
		ETag:         stat.ETag,
		LastModified: stat.LastModified,
	}, nil
}

// Delete implements Gateway.
func (g *MinIOGateway) Delete(ctx context.Context, key string) error {
	if err := g.client.RemoveObject(ctx, g.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if isMinIONotFound(err) {
			return nil
		}
		return apperr.Storage("remove object", err)
	}
	return nil
}

// Ping implements Gateway.
func (g *MinIOGateway) Ping(ctx context.Context) error {
	exists, err := g.client.BucketExists(ctx, g.bucket)
	if err != nil {
		return apperr.Storage("ping", err)
	}
	if !exists {
		return apperr.Storage("ping", fmt.Errorf("bucket %q does not exist", g.bucket))
	}
	return nil
}

func isMinIONotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NotFound" || resp.StatusCode == http.StatusNotFound
}
