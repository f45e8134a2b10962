package storage

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/abduss/bucketgate/internal/config"
	"github.com/abduss/bucketgate/internal/logger"
)

const (
	defaultObjectStoreTimeout = 5 * time.Second
	defaultMinIOPort          = "9000"
)

// NewMinIOClient builds a MinIO client. The endpoint may carry an http:// or https:// scheme,
// which then overrides UseSSL; a missing port defaults to the MinIO API port.
func NewMinIOClient(cfg config.MinIOConfig) (*minio.Client, error) {
	endpoint, secure := minioEndpoint(cfg.Endpoint, cfg.UseSSL)
	if endpoint == "" {
		return nil, fmt.Errorf("create minio client: endpoint required")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return client, nil
}

func minioEndpoint(raw string, useSSL bool) (string, bool) {
	endpoint := strings.TrimRight(strings.TrimSpace(raw), "/")
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		endpoint, useSSL = strings.TrimPrefix(endpoint, "https://"), true
	case strings.HasPrefix(endpoint, "http://"):
		endpoint, useSSL = strings.TrimPrefix(endpoint, "http://"), false
	}
	if endpoint == "" {
		return "", useSSL
	}
	if _, _, err := net.SplitHostPort(endpoint); err != nil {
		endpoint = net.JoinHostPort(endpoint, defaultMinIOPort)
	}
	return endpoint, useSSL
}

// EnsureBucket creates the gateway's bucket when it does not exist yet.
func EnsureBucket(ctx context.Context, client *minio.Client, bucket, region string, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, defaultObjectStoreTimeout)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create bucket %q: %w", bucket, err)
	}

	logger.OrNop(log).Info("object store bucket created", zap.String("bucket", bucket), zap.String("region", region))
	return nil
}
