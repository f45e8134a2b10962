package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/abduss/bucketgate/internal/apperr"
	"github.com/abduss/bucketgate/internal/config"
)

// S3Gateway implements Gateway with the AWS SDK. It works against AWS S3 and any
// S3-compatible endpoint (path-style addressing for MinIO, Garage, Ceph).
type S3Gateway struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// NewS3Gateway loads AWS configuration and builds a gateway. Static credentials are used when
// provided, otherwise the default credential chain applies.
func NewS3Gateway(ctx context.Context, cfg config.S3Config, optFns ...func(*s3.Options)) (*S3Gateway, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, append([]func(*s3.Options){func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}}, optFns...)...)

	return &S3Gateway{client: client, presign: s3.NewPresignClient(client), bucket: cfg.Bucket}, nil
}

// PresignUpload implements Gateway.
func (g *S3Gateway) PresignUpload(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := g.presign.PresignPutObject(ctx,
		&s3.PutObjectInput{Bucket: aws.String(g.bucket), Key: aws.String(key)},
		s3.WithPresignExpires(ttl),
	)
	if err != nil {
		return "", apperr.Storage("presign upload", err)
	}
	return req.URL, nil
}

// PresignDownload implements Gateway.
func (g *S3Gateway) PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := g.presign.PresignGetObject(ctx,
		&s3.GetObjectInput{Bucket: aws.String(g.bucket), Key: aws.String(key)},
		s3.WithPresignExpires(ttl),
	)
	if err != nil {
		return "", apperr.Storage("presign download", err)
	}
	return req.URL, nil
}

// Exists implements Gateway.
func (g *S3Gateway) Exists(ctx context.Context, key string) (bool, error) {
	_, err := g.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(g.bucket), Key: aws.String(key)})
	if err != nil {
		if isHTTPNotFound(err) {
			return false, nil
		}
		return false, apperr.Storage("head object", err)
	}
	return true, nil
}

// Open implements Gateway.
func (g *S3Gateway) Open(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	out, err := g.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(g.bucket), Key: aws.String(key)})
	if err != nil {
		if isHTTPNotFound(err) {
			return nil, ObjectInfo{}, apperr.Storage("open object", fmt.Errorf("%s: %w", key, ErrObjectNotFound))
		}
		return nil, ObjectInfo{}, apperr.Storage("open object", err)
	}

	info := ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		ETag:         strings.Trim(aws.ToString(out.ETag), `"`),
		LastModified: aws.ToTime(out.LastModified),
	}
	return out.Body, info, nil
}

// Delete implements Gateway.
func (g *S3Gateway) Delete(ctx context.Context, key string) error {
	_, err := g.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(g.bucket), Key: aws.String(key)})
	if err != nil && !isHTTPNotFound(err) {
		return apperr.Storage("delete object", err)
	}
	return nil
}

// Ping implements Gateway.
func (g *S3Gateway) Ping(ctx context.Context) error {
	if _, err := g.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(g.bucket)}); err != nil {
		return apperr.Storage("ping", err)
	}
	return nil
}

func isHTTPNotFound(err error) bool {
	var status interface{ HTTPStatusCode() int }
	return errors.As(err, &status) && status.HTTPStatusCode() == http.StatusNotFound
}
