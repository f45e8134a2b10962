// Package presigned issues presigned upload and download URLs to holders of a bucket key and
// keeps file records and counters in step with what it hands out.
package presigned

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abduss/bucketgate/internal/apperr"
	"github.com/abduss/bucketgate/internal/bucket"
	"github.com/abduss/bucketgate/internal/cache"
	"github.com/abduss/bucketgate/internal/file"
	"github.com/abduss/bucketgate/internal/logger"
	"github.com/abduss/bucketgate/internal/metrics"
	"github.com/abduss/bucketgate/internal/objectstore"
)

const (
	opUpload   = "upload"
	opDownload = "download"

	// DefaultMaxUploadSize is the largest declared size accepted on the public upload path.
	DefaultMaxUploadSize int64 = 100 * 1024 * 1024
)

type bucketResolver interface {
	ResolvePublicKey(ctx context.Context, key string) (bucket.Identity, error)
	ResolvePrivateKey(ctx context.Context, key string) (bucket.Identity, error)
}

type fileService interface {
	CreateFile(ctx context.Context, input file.CreateInput) (file.File, error)
	GetFileByID(ctx context.Context, id uuid.UUID) (*file.File, error)
	GetFilesByBucketID(ctx context.Context, bucketID uuid.UUID) ([]file.File, error)
	DeleteFile(ctx context.Context, id uuid.UUID) error
	DiscardFile(ctx context.Context, id uuid.UUID) error
	IncrementDownloads(ctx context.Context, id uuid.UUID) error
}

// Config controls URL lifetimes and the upload size cap.
type Config struct {
	UploadTTL     time.Duration
	DownloadTTL   time.Duration
	MaxUploadSize int64
}

// UploadRequest describes the file a client is about to upload.
type UploadRequest struct {
	Name         string
	OriginalName string
	Type         string
	Size         int64
	Metadata     map[string]any
}

// Ticket is a presigned URL handed to a client together with the file it targets.
type Ticket struct {
	File      file.File `json:"file"`
	URL       string    `json:"url"`
	Method    string    `json:"method"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Stream is an open object body together with its file record.
type Stream struct {
	File file.File
	Info objectstore.ObjectInfo
	Body io.ReadCloser
}

// signedURL is the cached form of a presigned URL.
type signedURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service orchestrates key validation, file records and URL issuance.
type Service struct {
	buckets bucketResolver
	files   fileService
	gateway objectstore.Gateway
	cache   *cache.Cache
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
}

// NewService constructs the access issuance service. The cache may be nil.
func NewService(buckets bucketResolver, files fileService, gateway objectstore.Gateway, urlCache *cache.Cache, cfg Config, log *zap.Logger) *Service {
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = DefaultMaxUploadSize
	}
	return &Service{
		buckets: buckets,
		files:   files,
		gateway: gateway,
		cache:   urlCache,
		cfg:     cfg,
		logger:  logger.OrNop(log),
		now:     time.Now,
	}
}

// RequestUpload validates the public key, records the pending file and returns a presigned
// PUT URL for it. When no URL can be issued the record is discarded before the error is
// returned, so no metadata is left for an object that can never arrive.
func (s *Service) RequestUpload(ctx context.Context, publicKey string, req UploadRequest) (Ticket, error) {
	identity, err := s.buckets.ResolvePublicKey(ctx, publicKey)
	if err != nil {
		return Ticket{}, err
	}

	if req.Size > s.cfg.MaxUploadSize {
		return Ticket{}, apperr.Validation("file size exceeds the %d byte upload limit", s.cfg.MaxUploadSize)
	}
	if strings.TrimSpace(req.OriginalName) == "" {
		req.OriginalName = req.Name
	}

	created, err := s.files.CreateFile(ctx, file.CreateInput{
		BucketID:     identity.ID,
		Name:         req.Name,
		OriginalName: req.OriginalName,
		Type:         req.Type,
		Size:         req.Size,
		Metadata:     req.Metadata,
	})
	if err != nil {
		return Ticket{}, err
	}

	// Each record has its own object key, so an upload URL is never asked for twice and is
	// signed without going through the cache.
	signed, err := s.issue(ctx, opUpload, file.ObjectKey(created), s.cfg.UploadTTL, s.gateway.PresignUpload)
	if err != nil {
		s.discard(ctx, created, err)
		return Ticket{}, err
	}

	return Ticket{File: created, URL: signed.URL, Method: http.MethodPut, ExpiresAt: signed.ExpiresAt}, nil
}

// RequestDownload returns a presigned GET URL for a file of the key's bucket. Every call
// counts a download, whether or not the URL came from the cache.
func (s *Service) RequestDownload(ctx context.Context, publicKey string, fileID uuid.UUID) (Ticket, error) {
	f, err := s.resolveFile(ctx, publicKey, fileID)
	if err != nil {
		return Ticket{}, err
	}

	signed, err := s.sign(ctx, opDownload, file.ObjectKey(f), s.cfg.DownloadTTL, s.gateway.PresignDownload)
	if err != nil {
		return Ticket{}, err
	}

	if err := s.files.IncrementDownloads(ctx, f.ID); err != nil {
		return Ticket{}, err
	}
	f.Downloads++

	return Ticket{File: f, URL: signed.URL, Method: http.MethodGet, ExpiresAt: signed.ExpiresAt}, nil
}

// OpenStream opens the object behind a file for direct streaming. Existence is checked on the
// object store, not the record, because the record precedes the upload.
func (s *Service) OpenStream(ctx context.Context, publicKey string, fileID uuid.UUID) (Stream, error) {
	f, err := s.resolveFile(ctx, publicKey, fileID)
	if err != nil {
		return Stream{}, err
	}

	key := file.ObjectKey(f)
	exists, err := s.gateway.Exists(ctx, key)
	if err != nil {
		return Stream{}, err
	}
	if !exists {
		return Stream{}, apperr.NotFound("file content not uploaded")
	}

	body, info, err := s.gateway.Open(ctx, key)
	if err != nil {
		return Stream{}, err
	}

	if err := s.files.IncrementDownloads(ctx, f.ID); err != nil {
		_ = body.Close()
		return Stream{}, err
	}
	f.Downloads++

	return Stream{File: f, Info: info, Body: body}, nil
}

// DescribeFile returns a file record of the key's bucket.
func (s *Service) DescribeFile(ctx context.Context, publicKey string, fileID uuid.UUID) (file.File, error) {
	return s.resolveFile(ctx, publicKey, fileID)
}

// DeleteFile removes a file of the key's bucket and forgets its cached download URL.
func (s *Service) DeleteFile(ctx context.Context, publicKey string, fileID uuid.UUID) error {
	f, err := s.resolveFile(ctx, publicKey, fileID)
	if err != nil {
		return err
	}
	if err := s.files.DeleteFile(ctx, f.ID); err != nil {
		return err
	}

	key := file.ObjectKey(f)
	s.cache.Invalidate(ctx, urlCacheKey(opDownload, key))
	return nil
}

// ListFiles returns the files of the bucket holding the private key.
func (s *Service) ListFiles(ctx context.Context, privateKey string) (bucket.Identity, []file.File, error) {
	identity, err := s.buckets.ResolvePrivateKey(ctx, privateKey)
	if err != nil {
		return bucket.Identity{}, nil, err
	}
	files, err := s.files.GetFilesByBucketID(ctx, identity.ID)
	if err != nil {
		return bucket.Identity{}, nil, err
	}
	return identity, files, nil
}

// resolveFile returns the file when it belongs to the key's bucket. Files of other buckets are
// reported exactly like missing ones.
func (s *Service) resolveFile(ctx context.Context, publicKey string, fileID uuid.UUID) (file.File, error) {
	identity, err := s.buckets.ResolvePublicKey(ctx, publicKey)
	if err != nil {
		return file.File{}, err
	}
	f, err := s.files.GetFileByID(ctx, fileID)
	if err != nil {
		return file.File{}, err
	}
	if f == nil || f.BucketID != identity.ID {
		return file.File{}, file.ErrFileNotFound
	}
	return *f, nil
}

type presignFunc func(context.Context, string, time.Duration) (string, error)

// sign returns a presigned URL for key through the cache. Cached entries expire a grace period
// before the URL itself so a cache hit is never handed out about to lapse.
func (s *Service) sign(ctx context.Context, op, key string, ttl time.Duration, presign presignFunc) (signedURL, error) {
	cacheTTL := ttl - urlGrace(ttl)
	return cache.GetOrCompute(ctx, s.cache, urlCacheKey(op, key), cacheTTL, func(ctx context.Context) (signedURL, error) {
		return s.issue(ctx, op, key, ttl, presign)
	})
}

// issue signs a fresh URL for key.
func (s *Service) issue(ctx context.Context, op, key string, ttl time.Duration, presign presignFunc) (signedURL, error) {
	issuedAt := s.now()
	url, err := presign(ctx, key, ttl)
	if err != nil {
		return signedURL{}, err
	}
	metrics.PresignedURLs.WithLabelValues(op).Inc()
	return signedURL{URL: url, ExpiresAt: issuedAt.Add(ttl)}, nil
}

func (s *Service) discard(ctx context.Context, f file.File, cause error) {
	log := logger.FromContext(ctx).With(zap.String("file_id", f.ID.String()), zap.String("bucket_id", f.BucketID.String()))
	if err := s.files.DiscardFile(ctx, f.ID); err != nil {
		metrics.CompensatingDeletes.WithLabelValues("failed").Inc()
		log.Error("pending file could not be discarded", zap.NamedError("cause", cause), zap.Error(err))
		return
	}
	metrics.CompensatingDeletes.WithLabelValues("ok").Inc()
	log.Warn("discarded pending file after url issuance failed", zap.Error(cause))
}

func urlCacheKey(op, objectKey string) string {
	return op + ":" + objectKey
}

func urlGrace(ttl time.Duration) time.Duration {
	return min(ttl/10, time.Minute)
}
