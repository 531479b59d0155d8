package errors

import (
	"errors"
	"fmt"
)

// Common error types for the file manager
var (
	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing configuration")

	// Identity provider errors
	ErrProviderRejected    = errors.New("identity provider rejected the request")
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	ErrMissingIDToken      = errors.New("no id_token in token response")
	ErrInvalidIDToken      = errors.New("invalid id_token")
	ErrInvalidState        = errors.New("invalid state parameter")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidSession  = errors.New("invalid session")

	// Storage errors
	ErrBlobNotFound    = errors.New("blob not found")
	ErrBlobExists      = errors.New("blob already exists")
	ErrInvalidBlobName = errors.New("invalid blob name")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
