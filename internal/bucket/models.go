package bucket

import (
	"time"

	"github.com/google/uuid"
)

// Bucket is an owned, named isolation unit holding file records and aggregate counters.
type Bucket struct {
	ID            uuid.UUID `json:"id"`
	OwnerID       uuid.UUID `json:"owner_id"`
	Name          string    `json:"name"`
	PublicKey     string    `json:"public_key"`
	PrivateKey    string    `json:"private_key"`
	DownloadCount int64     `json:"download_count"`
	UploadCount   int64     `json:"upload_count"`
	TotalSize     int64     `json:"total_size"`
	FileCount     int64     `json:"file_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Stats is a read-only snapshot of a bucket's counters.
type Stats struct {
	BucketID      uuid.UUID `json:"bucket_id"`
	Name          string    `json:"name"`
	FileCount     int64     `json:"file_count"`
	TotalSize     int64     `json:"total_size"`
	DownloadCount int64     `json:"download_count"`
	UploadCount   int64     `json:"upload_count"`
}

// Stats returns the counter snapshot of b.
func (b Bucket) Stats() Stats {
	return Stats{
		BucketID:      b.ID,
		Name:          b.Name,
		FileCount:     b.FileCount,
		TotalSize:     b.TotalSize,
		DownloadCount: b.DownloadCount,
		UploadCount:   b.UploadCount,
	}
}

// Identity is the part of a bucket a key resolves to. It carries no counters, so it can be
// cached without going stale.
type Identity struct {
	ID      uuid.UUID `json:"id"`
	OwnerID uuid.UUID `json:"owner_id"`
	Name    string    `json:"name"`
}

// Identity returns the identity of b.
func (b Bucket) Identity() Identity {
	return Identity{ID: b.ID, OwnerID: b.OwnerID, Name: b.Name}
}

// UpdateInput carries the mutable bucket fields. Nil fields are left unchanged.
type UpdateInput struct {
	Name *string
}
