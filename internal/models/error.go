package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound     = errors.New("resource not found")
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")

	// Configuration and upstream providers
	ErrNotConfigured       = errors.New("service is not configured")
	ErrProviderUnavailable = errors.New("upstream provider unavailable")

	// Password reset
	ErrInvalidEmail          = errors.New("invalid email format")
	ErrInvalidRedirectFormat = errors.New("invalid redirect URL format")
	ErrInvalidRedirect       = errors.New("invalid redirect URL")
	ErrRecoveryLinkMissing   = errors.New("failed to generate reset link")
)
