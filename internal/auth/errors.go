package auth

import "github.com/abduss/bucketgate/internal/apperr"

var (
	// ErrEmailAlreadyExists indicates the email is already registered.
	ErrEmailAlreadyExists = apperr.New(apperr.KindConflict, "email already registered")
	// ErrInvalidCredentials is returned when authentication fails.
	ErrInvalidCredentials = apperr.New(apperr.KindUnauthorized, "invalid credentials")
	// ErrInvalidRegistration rejects malformed registration input.
	ErrInvalidRegistration = apperr.New(apperr.KindValidation, "email and a password of 8-72 characters are required")
	// ErrUserNotFound signals that the user could not be located.
	ErrUserNotFound = apperr.New(apperr.KindNotFound, "user not found")
	// ErrUnauthorized represents missing or invalid authentication tokens.
	ErrUnauthorized = apperr.New(apperr.KindUnauthorized, "unauthorized")
	// ErrUserOwnsBuckets blocks account removal while buckets still reference the user.
	ErrUserOwnsBuckets = apperr.New(apperr.KindConflict, "cannot delete an account that still owns buckets")
)
