// Package common defines shared sentinel errors used across the sync
// subsystem. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Sync taxonomy. ErrNotConfigured means no remote backend is reachable
	// at all and sync is a permanent no-op; ErrNotAuthenticated means there
	// is no signed-in owner and the operation is silently skipped.
	ErrNotConfigured    = errors.New("remote backend not configured")
	ErrNotAuthenticated = errors.New("not authenticated")

	// Auth token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
