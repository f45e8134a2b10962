package file

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abduss/bucketgate/internal/apperr"
	"github.com/abduss/bucketgate/internal/bucket"
	"github.com/abduss/bucketgate/internal/logger"
	"github.com/abduss/bucketgate/internal/metrics"
)

type metadataStore interface {
	Create(ctx context.Context, f File) (File, error)
	FindByID(ctx context.Context, id uuid.UUID) (*File, error)
	FindByName(ctx context.Context, bucketID uuid.UUID, name string) (*File, error)
	FindByBucket(ctx context.Context, bucketID uuid.UUID) ([]File, error)
	Update(ctx context.Context, f File) (File, error)
	Delete(ctx context.Context, id uuid.UUID) (File, error)
	IncrementDownloads(ctx context.Context, id uuid.UUID) (uuid.UUID, bool, error)
}

// bucketStore is the part of the bucket service the file lifecycle drives.
type bucketStore interface {
	GetBucketByID(ctx context.Context, id uuid.UUID) (*bucket.Bucket, error)
	UpdateBucketStats(ctx context.Context, id uuid.UUID, sizeDelta, countDelta int64) error
	IncrementUploadCount(ctx context.Context, id uuid.UUID) error
	IncrementDownloadCount(ctx context.Context, id uuid.UUID) error
}

type objectStore interface {
	Delete(ctx context.Context, key string) error
}

// Service manages the file lifecycle and keeps the parent bucket's counters in step with it.
type Service struct {
	repo    metadataStore
	buckets bucketStore
	objects objectStore
	logger  *zap.Logger
}

// NewService constructs a file service.
func NewService(repo metadataStore, buckets bucketStore, objects objectStore, log *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		buckets: buckets,
		objects: objects,
		logger:  logger.OrNop(log),
	}
}

// CreateFile records a new file and adds it to the bucket's size, file count and upload count.
func (s *Service) CreateFile(ctx context.Context, input CreateInput) (File, error) {
	if err := validateCreate(input); err != nil {
		return File{}, err
	}

	b, err := s.buckets.GetBucketByID(ctx, input.BucketID)
	if err != nil {
		return File{}, err
	}
	if b == nil {
		return File{}, bucket.ErrBucketNotFound
	}

	existing, err := s.repo.FindByName(ctx, input.BucketID, input.Name)
	if err != nil {
		return File{}, err
	}
	if existing != nil {
		return File{}, ErrFileNameExists
	}

	created, err := s.repo.Create(ctx, File{
		ID:           uuid.New(),
		BucketID:     input.BucketID,
		Name:         input.Name,
		OriginalName: input.OriginalName,
		Type:         input.Type,
		Size:         input.Size,
		Metadata:     input.Metadata,
	})
	if err != nil {
		return File{}, err
	}

	if err := s.buckets.UpdateBucketStats(ctx, created.BucketID, created.Size, 1); err != nil {
		// Nothing was counted yet, so removing the record restores consistency.
		if _, undoErr := s.repo.Delete(ctx, created.ID); undoErr != nil {
			return File{}, s.consistencyFailure("create file", created, errors.Join(err, undoErr))
		}
		return File{}, fmt.Errorf("update bucket stats: %w", err)
	}
	if err := s.buckets.IncrementUploadCount(ctx, created.BucketID); err != nil {
		return File{}, s.consistencyFailure("count upload", created, err)
	}

	return created, nil
}

// GetFileByID returns the file or nil when it does not exist.
func (s *Service) GetFileByID(ctx context.Context, id uuid.UUID) (*File, error) {
	if id == uuid.Nil {
		return nil, apperr.Validation("file id required")
	}
	return s.repo.FindByID(ctx, id)
}

// GetFilesByBucketID lists a bucket's files. A missing bucket is an error, an empty one is not.
func (s *Service) GetFilesByBucketID(ctx context.Context, bucketID uuid.UUID) ([]File, error) {
	if bucketID == uuid.Nil {
		return nil, apperr.Validation("bucket id required")
	}
	b, err := s.buckets.GetBucketByID(ctx, bucketID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, bucket.ErrBucketNotFound
	}
	return s.repo.FindByBucket(ctx, bucketID)
}

// GetFileByName returns the file with the exact name in the bucket or nil.
func (s *Service) GetFileByName(ctx context.Context, bucketID uuid.UUID, name string) (*File, error) {
	if bucketID == uuid.Nil || strings.TrimSpace(name) == "" {
		return nil, apperr.Validation("bucket id and file name required")
	}
	return s.repo.FindByName(ctx, bucketID, name)
}

// UpdateFile renames a file or replaces its metadata. Renaming to the current name is a no-op.
func (s *Service) UpdateFile(ctx context.Context, id uuid.UUID, input UpdateInput) (File, error) {
	current, err := s.GetFileByID(ctx, id)
	if err != nil {
		return File{}, err
	}
	if current == nil {
		return File{}, ErrFileNotFound
	}

	next := *current
	if input.Name != nil && *input.Name != current.Name {
		if strings.TrimSpace(*input.Name) == "" {
			return File{}, apperr.Validation("file name required")
		}
		clash, err := s.repo.FindByName(ctx, current.BucketID, *input.Name)
		if err != nil {
			return File{}, err
		}
		if clash != nil && clash.ID != current.ID {
			return File{}, ErrFileNameExists
		}
		next.Name = *input.Name
	}
	if input.Metadata != nil {
		next.Metadata = input.Metadata
	}

	return s.repo.Update(ctx, next)
}

// DeleteFile removes the object, then the record, then subtracts the file from its bucket.
// When the object store delete fails nothing else is touched.
func (s *Service) DeleteFile(ctx context.Context, id uuid.UUID) error {
	current, err := s.GetFileByID(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrFileNotFound
	}

	if err := s.objects.Delete(ctx, ObjectKey(*current)); err != nil {
		return err
	}

	return s.removeRecord(ctx, "delete file", id)
}

// DiscardFile removes a record whose object was never written and reverses its counters. It
// does not touch the object store.
func (s *Service) DiscardFile(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return apperr.Validation("file id required")
	}
	return s.removeRecord(ctx, "discard file", id)
}

// IncrementDownloads counts one download on the file and its bucket. The bucket is only counted
// when the file row changed.
func (s *Service) IncrementDownloads(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return apperr.Validation("file id required")
	}

	bucketID, ok, err := s.repo.IncrementDownloads(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrFileNotFound
	}

	if err := s.buckets.IncrementDownloadCount(ctx, bucketID); err != nil {
		return s.consistencyFailure("count download", File{ID: id, BucketID: bucketID}, err)
	}
	return nil
}

func (s *Service) removeRecord(ctx context.Context, op string, id uuid.UUID) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if err := s.buckets.UpdateBucketStats(ctx, deleted.BucketID, -deleted.Size, -1); err != nil {
		return s.consistencyFailure(op, deleted, err)
	}
	return nil
}

// consistencyFailure reports a bucket counter that no longer matches its files.
func (s *Service) consistencyFailure(op string, f File, err error) error {
	metrics.ConsistencyErrors.WithLabelValues(op).Inc()
	s.logger.Error("bucket counters drifted",
		zap.String("operation", op),
		zap.String("file_id", f.ID.String()),
		zap.String("bucket_id", f.BucketID.String()),
		zap.Int64("size", f.Size),
		zap.Error(err),
	)
	return apperr.Consistency(op, err)
}

func validateCreate(input CreateInput) error {
	var missing []string
	if input.BucketID == uuid.Nil {
		missing = append(missing, "bucket id")
	}
	if strings.TrimSpace(input.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(input.OriginalName) == "" {
		missing = append(missing, "original name")
	}
	if strings.TrimSpace(input.Type) == "" {
		missing = append(missing, "type")
	}
	if len(missing) > 0 {
		return apperr.Validation("missing required fields: %s", strings.Join(missing, ", "))
	}
	if input.Size < 0 {
		return apperr.Validation("file size cannot be negative")
	}
	return nil
}
