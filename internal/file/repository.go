package file

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abduss/bucketgate/internal/bucket"
)

const repoTimeout = 5 * time.Second

const fileColumns = `id, bucket_id, name, original_name, content_type, size_bytes, downloads, metadata, created_at, updated_at`

// Repository provides access to file metadata storage.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a new file repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts metadata for a new file with zero downloads.
func (r *Repository) Create(ctx context.Context, f File) (File, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
INSERT INTO files (id, bucket_id, name, original_name, content_type, size_bytes, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + fileColumns + `;`

	row := r.pool.QueryRow(ctx, query, f.ID, f.BucketID, f.Name, f.OriginalName, f.Type, f.Size, f.Metadata)
	stored, err := scanFile(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return File{}, ErrFileNameExists
			case "23503":
				return File{}, bucket.ErrBucketNotFound
			}
		}
		return File{}, fmt.Errorf("create file metadata: %w", err)
	}
	return stored, nil
}

// FindByID returns the file or nil when absent.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*File, error) {
	return r.findOne(ctx, "find file", `SELECT `+fileColumns+` FROM files WHERE id = $1;`, id)
}

// FindByName returns the file with the exact name in the bucket or nil.
func (r *Repository) FindByName(ctx context.Context, bucketID uuid.UUID, name string) (*File, error) {
	return r.findOne(ctx, "find file by name", `SELECT `+fileColumns+` FROM files WHERE bucket_id = $1 AND name = $2;`, bucketID, name)
}

// FindByBucket returns the bucket's files, newest first.
func (r *Repository) FindByBucket(ctx context.Context, bucketID uuid.UUID) ([]File, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `SELECT `+fileColumns+` FROM files WHERE bucket_id = $1 ORDER BY created_at DESC;`, bucketID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file metadata: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return files, nil
}

// CountByBucket returns the number of files referencing the bucket.
func (r *Repository) CountByBucket(ctx context.Context, bucketID uuid.UUID) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM files WHERE bucket_id = $1;`, bucketID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count files: %w", err)
	}
	return count, nil
}

// Update writes the name and metadata of f.
func (r *Repository) Update(ctx context.Context, f File) (File, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
UPDATE files SET name = $2, metadata = $3, updated_at = NOW()
WHERE id = $1
RETURNING ` + fileColumns + `;`

	updated, err := scanFile(r.pool.QueryRow(ctx, query, f.ID, f.Name, f.Metadata))
	if err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return File{}, ErrFileNotFound
		case errors.As(err, &pgErr) && pgErr.Code == "23505":
			return File{}, ErrFileNameExists
		}
		return File{}, fmt.Errorf("update file metadata: %w", err)
	}
	return updated, nil
}

// Delete removes metadata and returns the deleted record, so callers reverse the exact size
// that was stored.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (File, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	deleted, err := scanFile(r.pool.QueryRow(ctx, `DELETE FROM files WHERE id = $1 RETURNING `+fileColumns+`;`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return File{}, ErrFileNotFound
		}
		return File{}, fmt.Errorf("delete file metadata: %w", err)
	}
	return deleted, nil
}

// IncrementDownloads adds one download to the file and returns its bucket. ok is false when no
// row changed.
func (r *Repository) IncrementDownloads(ctx context.Context, id uuid.UUID) (bucketID uuid.UUID, ok bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `UPDATE files SET downloads = downloads + 1 WHERE id = $1 RETURNING bucket_id;`
	if err := r.pool.QueryRow(ctx, query, id).Scan(&bucketID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, fmt.Errorf("increment downloads: %w", err)
	}
	return bucketID, true, nil
}

func (r *Repository) findOne(ctx context.Context, op, query string, args ...any) (*File, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	f, err := scanFile(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &f, nil
}

func scanFile(row pgx.Row) (File, error) {
	var f File
	err := row.Scan(
		&f.ID,
		&f.BucketID,
		&f.Name,
		&f.OriginalName,
		&f.Type,
		&f.Size,
		&f.Downloads,
		&f.Metadata,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	return f, err
}
