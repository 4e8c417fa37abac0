// Package errs holds the error taxonomy shared by the stores and the local API.
package errs

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidInput marks validation failures rejected before any backend call.
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")

	// ErrUpstream wraps identity/database/feed failures.
	ErrUpstream    = errors.New("upstream error")
	ErrUnavailable = errors.New("service unavailable")

	// ErrMediaUnavailable covers denied permission and missing capture devices.
	ErrMediaUnavailable = errors.New("media unavailable")
	ErrNotImplemented   = errors.New("not implemented")
)

func ToHTTP(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrMediaUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
