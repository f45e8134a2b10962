package file

import "github.com/abduss/bucketgate/internal/apperr"

var (
	// ErrFileNotFound signals that the file could not be located.
	ErrFileNotFound = apperr.New(apperr.KindNotFound, "file not found")
	// ErrFileNameExists is returned when the bucket already holds a file with the exact name.
	ErrFileNameExists = apperr.New(apperr.KindConflict, "file name already exists in bucket")
)
