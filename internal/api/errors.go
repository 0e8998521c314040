// Package api provides an HTTP client for the filecrate storage service
// with bearer authentication and error classification. Requests are never
// retried automatically — every operation is user-triggered and a failure is
// terminal for that attempt.
package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, api.ErrNotFound) to check.
var (
	ErrBadRequest   = errors.New("api: bad request")
	ErrUnauthorized = errors.New("api: unauthorized")
	ErrForbidden    = errors.New("api: forbidden")
	ErrNotFound     = errors.New("api: not found")
	ErrConflict     = errors.New("api: conflict")
	ErrServerError  = errors.New("api: server error")
)

// Error wraps a sentinel error with the HTTP status code and the server's
// optional structured detail message. The service returns errors as
// {"detail": "..."} when it has something to say; Detail is empty otherwise.
type Error struct {
	StatusCode int
	Detail     string
	Err        error // sentinel, for errors.Is()
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api: HTTP %d: %s", e.StatusCode, e.Detail)
	}

	return fmt.Sprintf("api: HTTP %d", e.StatusCode)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message extracts a user-facing message from err: the server-supplied detail
// when the error is a structured *Error with one, else the given fallback.
// This is the single place the "structured vs unstructured remote error"
// distinction is resolved.
func Message(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}

	return fallback
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 2xx success codes.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}
