package backendapi

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnavailable     = errors.New("backend unreachable")
	ErrInvalidResponse = errors.New("backend returned an unreadable response")
	ErrMissingSigner   = errors.New("request requires signing material")
)

// APIError is any non-2xx answer other than a link conflict. Message is the
// server's {error} field when present.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// ConflictError is the 409 answer of the backup store: the OAuth account is
// already bound to ExistingBapID.
type ConflictError struct {
	ExistingBapID string
}

func (e *ConflictError) Error() string {
	return "oauth account is already linked to another identity"
}

func genericMessage(status int) string {
	if status >= http.StatusInternalServerError {
		return "The server could not complete the request. Please try again."
	}
	return fmt.Sprintf("Request failed (%d %s)", status, http.StatusText(status))
}

func (e *APIError) HTTPStatus() int {
	return e.Status
}

func (e *ConflictError) ExistingIdentityKey() string {
	return e.ExistingBapID
}
