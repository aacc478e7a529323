// Package common defines shared constants and sentinel errors used across
// client layers of EduMarket. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Session-level errors.
	ErrNoSession      = errors.New("no session")
	ErrSessionExpired = errors.New("session expired")

	// Cart errors.
	ErrNoCartID = errors.New("cart id unavailable")
)
