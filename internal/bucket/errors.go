package bucket

import (
	"errors"

	"github.com/abduss/bucketgate/internal/apperr"
)

var (
	// ErrBucketNotFound indicates the requested bucket does not exist for the user.
	ErrBucketNotFound = apperr.New(apperr.KindNotFound, "bucket not found")
	// ErrBucketNameExists is returned when a user attempts to create a duplicate bucket name.
	ErrBucketNameExists = apperr.New(apperr.KindConflict, "bucket name already exists")
	// ErrBucketNotEmpty blocks deletion of a bucket that still holds files.
	ErrBucketNotEmpty = apperr.New(apperr.KindConflict, "cannot delete non-empty bucket")
	// ErrOwnerNotFound is returned when the owner of a new bucket is not a registered user.
	ErrOwnerNotFound = apperr.New(apperr.KindNotFound, "owner not found")
	// ErrInvalidKey is returned when a bucket key does not resolve to a bucket.
	ErrInvalidKey = apperr.New(apperr.KindUnauthorized, "invalid bucket key")

	errKeyCollision = errors.New("bucket key collision")
)
