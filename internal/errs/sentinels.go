// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Common sentinels across gateway/store/session layers.
var (
	// ErrNotFound indicates the requested entity does not exist on the backend.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict indicates optimistic concurrency failure (If-Match mismatch).
	ErrVersionConflict = errors.New("version conflict")

	// ErrUnauthorized indicates a failed or expired backend session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation indicates a client-side guard rejected input before any network call.
	ErrValidation = errors.New("validation")
)

// APIError carries diagnostics of a non-2xx backend response. The response body
// is captured best-effort so callers can render something meaningful.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// Is maps HTTP statuses onto sentinels so callers can use errors.Is without
// inspecting status codes themselves.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrVersionConflict:
		return e.Status == http.StatusConflict || e.Status == http.StatusPreconditionFailed
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	}
	return false
}
