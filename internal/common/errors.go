// Package common defines shared constants and sentinel errors used across
// the chatter server layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// ErrDuplicateHash means two live sessions would share a refresh-token
	// hash. The uniqueness of token_hash is what makes reuse detection work,
	// so this is a consistency failure, not a client error.
	ErrDuplicateHash = errors.New("duplicate session token hash")

	// Service-level errors (generic flow control).
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")

	// Validation errors.
	ErrorValidation = errors.New("validation error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")
)
