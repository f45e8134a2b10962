package bucket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repositoryTimeout = 5 * time.Second

const bucketColumns = `id, owner_id, name, public_key, private_key, download_count, upload_count, total_size, file_count, created_at, updated_at`

// Repository allows access to bucket persistence. Counter columns are only ever changed by
// single-statement deltas so concurrent uploads and downloads are all reflected.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a bucket repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new bucket with zeroed counters.
func (r *Repository) Create(ctx context.Context, bucket Bucket) (Bucket, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	query := `
INSERT INTO buckets (id, owner_id, name, public_key, private_key)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + bucketColumns + `;`

	row := r.pool.QueryRow(ctx, query, bucket.ID, bucket.OwnerID, bucket.Name, bucket.PublicKey, bucket.PrivateKey)
	created, err := scanBucket(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			switch pgErr.ConstraintName {
			case "buckets_public_key_key", "buckets_private_key_key":
				return Bucket{}, errKeyCollision
			default:
				return Bucket{}, ErrBucketNameExists
			}
		}
		return Bucket{}, fmt.Errorf("create bucket: %w", err)
	}
	return created, nil
}

// FindByID returns the bucket or nil when absent.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*Bucket, error) {
	return r.findOne(ctx, "find bucket", `SELECT `+bucketColumns+` FROM buckets WHERE id = $1;`, id)
}

// FindByPublicKey returns the bucket owning the public key or nil.
func (r *Repository) FindByPublicKey(ctx context.Context, key string) (*Bucket, error) {
	return r.findOne(ctx, "find bucket by public key", `SELECT `+bucketColumns+` FROM buckets WHERE public_key = $1;`, key)
}

// FindByPrivateKey returns the bucket owning the private key or nil.
func (r *Repository) FindByPrivateKey(ctx context.Context, key string) (*Bucket, error) {
	return r.findOne(ctx, "find bucket by private key", `SELECT `+bucketColumns+` FROM buckets WHERE private_key = $1;`, key)
}

// FindByOwner returns all buckets owned by the user.
func (r *Repository) FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]Bucket, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	query := `SELECT ` + bucketColumns + ` FROM buckets WHERE owner_id = $1 ORDER BY created_at DESC;`
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	defer rows.Close()

	var buckets []Bucket
	for rows.Next() {
		bucket, err := scanBucket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		buckets = append(buckets, bucket)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate buckets: %w", err)
	}
	return buckets, nil
}

// CountByOwner returns the number of buckets owned by the user.
func (r *Repository) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM buckets WHERE owner_id = $1;`, ownerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count buckets: %w", err)
	}
	return count, nil
}

// UpdateName renames a bucket.
func (r *Repository) UpdateName(ctx context.Context, id uuid.UUID, name string) (Bucket, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	query := `
UPDATE buckets SET name = $2, updated_at = NOW()
WHERE id = $1
RETURNING ` + bucketColumns + `;`

	updated, err := scanBucket(r.pool.QueryRow(ctx, query, id, name))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return Bucket{}, ErrBucketNotFound
		case isUniqueViolation(err):
			return Bucket{}, ErrBucketNameExists
		}
		return Bucket{}, fmt.Errorf("rename bucket: %w", err)
	}
	return updated, nil
}

// Delete removes a bucket. Files reference buckets with ON DELETE RESTRICT, so a bucket that
// gained a file after the emptiness check still cannot be removed.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	commandTag, err := r.pool.Exec(ctx, `DELETE FROM buckets WHERE id = $1;`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrBucketNotEmpty
		}
		return fmt.Errorf("delete bucket: %w", err)
	}
	if commandTag.RowsAffected() == 0 {
		return ErrBucketNotFound
	}
	return nil
}

// UpdateStats applies size and file count deltas in one statement, clamped at zero.
func (r *Repository) UpdateStats(ctx context.Context, id uuid.UUID, sizeDelta, countDelta int64) error {
	return r.exec(ctx, "update bucket stats", `
UPDATE buckets
SET total_size = GREATEST(total_size + $2, 0),
    file_count = GREATEST(file_count + $3, 0),
    updated_at = NOW()
WHERE id = $1;`, id, sizeDelta, countDelta)
}

// IncrementDownloadCount adds one to the bucket's download counter.
func (r *Repository) IncrementDownloadCount(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, "increment download count",
		`UPDATE buckets SET download_count = download_count + 1, updated_at = NOW() WHERE id = $1;`, id)
}

// IncrementUploadCount adds one to the bucket's upload counter.
func (r *Repository) IncrementUploadCount(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, "increment upload count",
		`UPDATE buckets SET upload_count = upload_count + 1, updated_at = NOW() WHERE id = $1;`, id)
}

// Reconcile recomputes total size and file count from the files table.
func (r *Repository) Reconcile(ctx context.Context, id uuid.UUID) (Bucket, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	query := `
UPDATE buckets b
SET total_size = COALESCE((SELECT SUM(f.size_bytes) FROM files f WHERE f.bucket_id = b.id), 0),
    file_count = (SELECT COUNT(*) FROM files f WHERE f.bucket_id = b.id),
    updated_at = NOW()
WHERE b.id = $1
RETURNING ` + bucketColumns + `;`

	bucket, err := scanBucket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bucket{}, ErrBucketNotFound
		}
		return Bucket{}, fmt.Errorf("reconcile bucket: %w", err)
	}
	return bucket, nil
}

func (r *Repository) findOne(ctx context.Context, op, query string, arg any) (*Bucket, error) {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	bucket, err := scanBucket(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &bucket, nil
}

func (r *Repository) exec(ctx context.Context, op, query string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, repositoryTimeout)
	defer cancel()

	commandTag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if commandTag.RowsAffected() == 0 {
		return ErrBucketNotFound
	}
	return nil
}

func scanBucket(row pgx.Row) (Bucket, error) {
	var bucket Bucket
	err := row.Scan(
		&bucket.ID,
		&bucket.OwnerID,
		&bucket.Name,
		&bucket.PublicKey,
		&bucket.PrivateKey,
		&bucket.DownloadCount,
		&bucket.UploadCount,
		&bucket.TotalSize,
		&bucket.FileCount,
		&bucket.CreatedAt,
		&bucket.UpdatedAt,
	)
	return bucket, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
