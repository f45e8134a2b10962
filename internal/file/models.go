package file

import (
	"time"

	"github.com/google/uuid"
)

// File describes one stored object. The record may exist before its bytes do: uploads create
// the record first and hand out a presigned URL for the object afterwards.
type File struct {
	ID           uuid.UUID      `json:"id"`
	BucketID     uuid.UUID      `json:"bucket_id"`
	Name         string         `json:"name"`
	OriginalName string         `json:"original_name"`
	Type         string         `json:"type"`
	Size         int64          `json:"size"`
	Downloads    int64          `json:"downloads"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// ObjectKey returns the object store key holding f's bytes. It is the only place that maps a
// file to its storage identity; today the key is the file ID.
func ObjectKey(f File) string {
	return f.ID.String()
}

// CreateInput carries the fields of a new file record.
type CreateInput struct {
	BucketID     uuid.UUID
	Name         string
	OriginalName string
	Type         string
	Size         int64
	Metadata     map[string]any
}

// UpdateInput carries mutable file fields. Nil fields are left unchanged; a non-nil Metadata
// replaces the stored map.
type UpdateInput struct {
	Name     *string
	Metadata map[string]any
}
