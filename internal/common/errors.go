// Package common defines shared constants and sentinel errors used across
// the service. Callers should use errors.Is to match these values; the HTTP
// layer maps each sentinel to a status code.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Authentication errors (resolving the acting identity).
	ErrMissingAuthorization = errors.New("missing authorization")
	ErrInvalidAccessToken   = errors.New("invalid access token")

	// Authorization and lifecycle errors.
	ErrForbidden  = errors.New("forbidden")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")

	// Generic internal flow control.
	ErrInternal = errors.New("internal error")
)

// AuthorizationHeaderName carries the bearer access token on inbound requests.
const AuthorizationHeaderName = "Authorization"
