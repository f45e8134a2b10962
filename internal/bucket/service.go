package bucket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abduss/bucketgate/internal/apperr"
	"github.com/abduss/bucketgate/internal/cache"
	"github.com/abduss/bucketgate/internal/logger"
)

type repository interface {
	Create(ctx context.Context, bucket Bucket) (Bucket, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Bucket, error)
	FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]Bucket, error)
	FindByPublicKey(ctx context.Context, key string) (*Bucket, error)
	FindByPrivateKey(ctx context.Context, key string) (*Bucket, error)
	UpdateName(ctx context.Context, id uuid.UUID, name string) (Bucket, error)
	Delete(ctx context.Context, id uuid.UUID) error
	UpdateStats(ctx context.Context, id uuid.UUID, sizeDelta, countDelta int64) error
	IncrementDownloadCount(ctx context.Context, id uuid.UUID) error
	IncrementUploadCount(ctx context.Context, id uuid.UUID) error
	Reconcile(ctx context.Context, id uuid.UUID) (Bucket, error)
}

// UserDirectory reports whether a user exists.
type UserDirectory interface {
	UserExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// FileCounter reports how many files still reference a bucket.
type FileCounter interface {
	CountByBucket(ctx context.Context, bucketID uuid.UUID) (int, error)
}

// Service enforces bucket ownership and naming rules and owns the bucket counters.
type Service struct {
	repo      repository
	users     UserDirectory
	files     FileCounter
	cache     *cache.Cache
	lookupTTL time.Duration
	logger    *zap.Logger
}

// NewService constructs a bucket service. The cache may be nil.
func NewService(repo repository, users UserDirectory, files FileCounter, keyCache *cache.Cache, lookupTTL time.Duration, log *zap.Logger) *Service {
	return &Service{
		repo:      repo,
		users:     users,
		files:     files,
		cache:     keyCache,
		lookupTTL: lookupTTL,
		logger:    logger.OrNop(log),
	}
}

// CreateBucket creates a bucket for the owner with a fresh key pair and zeroed counters.
func (s *Service) CreateBucket(ctx context.Context, name string, ownerID uuid.UUID) (Bucket, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Bucket{}, apperr.Validation("bucket name required")
	}
	if ownerID == uuid.Nil {
		return Bucket{}, apperr.Validation("owner id required")
	}

	exists, err := s.users.UserExists(ctx, ownerID)
	if err != nil {
		return Bucket{}, fmt.Errorf("check owner: %w", err)
	}
	if !exists {
		return Bucket{}, ErrOwnerNotFound
	}

	if err := s.ensureNameAvailable(ctx, ownerID, uuid.Nil, name); err != nil {
		return Bucket{}, err
	}

	for attempt := 1; ; attempt++ {
		publicKey, privateKey := newKeyPair()
		created, err := s.repo.Create(ctx, Bucket{
			ID:         uuid.New(),
			OwnerID:    ownerID,
			Name:       name,
			PublicKey:  publicKey,
			PrivateKey: privateKey,
		})
		if errors.Is(err, errKeyCollision) && attempt < maxKeyAttempts {
			continue
		}
		if err != nil {
			if errors.Is(err, ErrBucketNameExists) {
				return Bucket{}, ErrBucketNameExists
			}
			return Bucket{}, fmt.Errorf("create bucket: %w", err)
		}

		s.logger.Info("bucket created",
			zap.String("bucket_id", created.ID.String()),
			zap.String("owner_id", ownerID.String()),
		)
		return created, nil
	}
}

// GetBucketByID returns the bucket or nil when it does not exist.
func (s *Service) GetBucketByID(ctx context.Context, id uuid.UUID) (*Bucket, error) {
	if id == uuid.Nil {
		return nil, apperr.Validation("bucket id required")
	}
	return s.repo.FindByID(ctx, id)
}

// GetBucketsByOwnerID returns the owner's buckets, newest first.
func (s *Service) GetBucketsByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]Bucket, error) {
	if ownerID == uuid.Nil {
		return nil, apperr.Validation("owner id required")
	}
	return s.repo.FindByOwner(ctx, ownerID)
}

// GetBucketByPublicKey returns the bucket holding the public key or nil.
func (s *Service) GetBucketByPublicKey(ctx context.Context, key string) (*Bucket, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, apperr.Validation("public key required")
	}
	return s.repo.FindByPublicKey(ctx, key)
}

// GetBucketByPrivateKey returns the bucket holding the private key or nil.
func (s *Service) GetBucketByPrivateKey(ctx context.Context, key string) (*Bucket, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, apperr.Validation("private key required")
	}
	return s.repo.FindByPrivateKey(ctx, key)
}

// GetOwnedBucket returns the bucket when ownerID owns it. Buckets of other owners are
// reported as not found.
func (s *Service) GetOwnedBucket(ctx context.Context, ownerID, id uuid.UUID) (Bucket, error) {
	bucket, err := s.GetBucketByID(ctx, id)
	if err != nil {
		return Bucket{}, err
	}
	if bucket == nil || bucket.OwnerID != ownerID {
		return Bucket{}, ErrBucketNotFound
	}
	return *bucket, nil
}

// UpdateBucket applies input to the bucket. Renaming re-checks per-owner uniqueness.
func (s *Service) UpdateBucket(ctx context.Context, id uuid.UUID, input UpdateInput) (Bucket, error) {
	current, err := s.GetBucketByID(ctx, id)
	if err != nil {
		return Bucket{}, err
	}
	if current == nil {
		return Bucket{}, ErrBucketNotFound
	}
	if input.Name == nil {
		return *current, nil
	}

	name := strings.TrimSpace(*input.Name)
	if name == "" {
		return Bucket{}, apperr.Validation("bucket name required")
	}
	if name == current.Name {
		return *current, nil
	}
	if err := s.ensureNameAvailable(ctx, current.OwnerID, current.ID, name); err != nil {
		return Bucket{}, err
	}

	updated, err := s.repo.UpdateName(ctx, id, name)
	if err != nil {
		return Bucket{}, err
	}
	s.forgetKeys(ctx, updated)
	return updated, nil
}

// DeleteBucket removes an empty bucket. Buckets still referenced by files are refused so no
// object store entry is left without its metadata.
func (s *Service) DeleteBucket(ctx context.Context, id uuid.UUID) error {
	bucket, err := s.GetBucketByID(ctx, id)
	if err != nil {
		return err
	}
	if bucket == nil {
		return ErrBucketNotFound
	}

	count, err := s.files.CountByBucket(ctx, id)
	if err != nil {
		return fmt.Errorf("count bucket files: %w", err)
	}
	if count > 0 {
		return ErrBucketNotEmpty
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.forgetKeys(ctx, *bucket)

	s.logger.Info("bucket deleted", zap.String("bucket_id", id.String()))
	return nil
}

// GetBucketStats returns a counter snapshot or nil when the bucket does not exist.
func (s *Service) GetBucketStats(ctx context.Context, id uuid.UUID) (*Stats, error) {
	bucket, err := s.GetBucketByID(ctx, id)
	if err != nil || bucket == nil {
		return nil, err
	}
	stats := bucket.Stats()
	return &stats, nil
}

// IncrementDownloadCount atomically adds one download to the bucket.
func (s *Service) IncrementDownloadCount(ctx context.Context, id uuid.UUID) error {
	return s.repo.IncrementDownloadCount(ctx, id)
}

// IncrementUploadCount atomically adds one upload to the bucket.
func (s *Service) IncrementUploadCount(ctx context.Context, id uuid.UUID) error {
	return s.repo.IncrementUploadCount(ctx, id)
}

// UpdateBucketStats atomically applies size and file count deltas.
func (s *Service) UpdateBucketStats(ctx context.Context, id uuid.UUID, sizeDelta, countDelta int64) error {
	return s.repo.UpdateStats(ctx, id, sizeDelta, countDelta)
}

// ReconcileStats recomputes total size and file count from the files that reference the bucket.
func (s *Service) ReconcileStats(ctx context.Context, id uuid.UUID) (Stats, error) {
	before, err := s.GetBucketByID(ctx, id)
	if err != nil {
		return Stats{}, err
	}
	if before == nil {
		return Stats{}, ErrBucketNotFound
	}

	after, err := s.repo.Reconcile(ctx, id)
	if err != nil {
		return Stats{}, err
	}
	if after.TotalSize != before.TotalSize || after.FileCount != before.FileCount {
		s.logger.Warn("bucket counters drifted",
			zap.String("bucket_id", id.String()),
			zap.Int64("total_size_before", before.TotalSize),
			zap.Int64("total_size_after", after.TotalSize),
			zap.Int64("file_count_before", before.FileCount),
			zap.Int64("file_count_after", after.FileCount),
		)
	}
	return after.Stats(), nil
}

// ResolvePublicKey returns the identity of the bucket holding the public key.
func (s *Service) ResolvePublicKey(ctx context.Context, key string) (Identity, error) {
	return s.resolve(ctx, PublicKind, key, s.GetBucketByPublicKey)
}

// ResolvePrivateKey returns the identity of the bucket holding the private key.
func (s *Service) ResolvePrivateKey(ctx context.Context, key string) (Identity, error) {
	return s.resolve(ctx, PrivateKind, key, s.GetBucketByPrivateKey)
}

// resolve memoizes key lookups. Unknown keys produce an error and are therefore never cached.
func (s *Service) resolve(ctx context.Context, kind KeyKind, key string, find func(context.Context, string) (*Bucket, error)) (Identity, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Identity{}, ErrInvalidKey
	}
	return cache.GetOrCompute(ctx, s.cache, CacheKey(kind, key), s.lookupTTL, func(ctx context.Context) (Identity, error) {
		bucket, err := find(ctx, key)
		if err != nil {
			return Identity{}, err
		}
		if bucket == nil {
			return Identity{}, ErrInvalidKey
		}
		return bucket.Identity(), nil
	})
}

func (s *Service) ensureNameAvailable(ctx context.Context, ownerID, exclude uuid.UUID, name string) error {
	owned, err := s.repo.FindByOwner(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("list owner buckets: %w", err)
	}
	for _, b := range owned {
		if b.ID != exclude && strings.EqualFold(strings.TrimSpace(b.Name), name) {
			return ErrBucketNameExists
		}
	}
	return nil
}

func (s *Service) forgetKeys(ctx context.Context, bucket Bucket) {
	s.cache.Invalidate(ctx, CacheKey(PublicKind, bucket.PublicKey), CacheKey(PrivateKind, bucket.PrivateKey))
}
