// Package errors defines the error taxonomy shared by the store, the
// gateway, and the API edge. Callers classify failures with errors.Is;
// HTTP status mapping happens once, at the edge.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized is returned when no valid principal accompanies a call.
	ErrUnauthorized = fmt.Errorf("unauthorized")
	// ErrForbidden is returned when the principal may not mutate the resource.
	ErrForbidden = fmt.Errorf("forbidden")
	// ErrNotFound covers both absent and tombstoned messages.
	ErrNotFound = fmt.Errorf("message not found")
	// ErrConflict signals a duplicate identifier on insert. Identifiers are
	// server-minted, so this firing means an invariant was broken.
	ErrConflict = fmt.Errorf("identifier conflict")
	// ErrValidation covers malformed input such as empty or oversized content.
	ErrValidation = fmt.Errorf("invalid input")
	// ErrStoreUnavailable wraps failures of the durability layer. Retryable
	// by the caller, never retried inside the core.
	ErrStoreUnavailable = fmt.Errorf("store unavailable")

	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no censored words have been found")
)

// HTTPStatus maps a core error to the status code surfaced by the API.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
