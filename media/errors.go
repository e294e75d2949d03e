package media

import (
	"errors"
	"fmt"
)

// ValidationError rejects an upload before any provider work starts.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// TransformError marks a variant whose resize or transcode failed.
type TransformError struct {
	Size string
	Err  error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform failed for variant %q: %v", e.Size, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// ProviderError marks a network, auth, or quota failure against a backend.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// PersistenceError marks a metadata write that failed after the provider
// upload succeeded. The uploaded artifacts are valid but orphaned, so the
// caller may retry persistence without re-uploading.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NotFoundError marks an unknown media id or a missing variant with no
// fallback.
type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.What)
}

// AuthorizationError marks a mutation attempted by a non-owner.
type AuthorizationError struct {
	UserID string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("user %q is not the owner", e.UserID)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsPersistence reports whether err is a PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// IsAuthorization reports whether err is an AuthorizationError.
func IsAuthorization(err error) bool {
	var ae *AuthorizationError
	return errors.As(err, &ae)
}
