// Package services defines the business logic for visitor counting and
// AI-generated badge text. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer;
// translation into badge responses and HTTP status codes happens at the
// handler layer.
package services

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrStoreUnavailable indicates the backing key-value or relational
	// store could not be consulted. The visitor path degrades to a
	// best-effort badge; the generation path refuses.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrRateLimited is the base error all admission rejections unwrap to,
	// including generation cooldowns.
	ErrRateLimited = errors.New("rate limited")
)

// CooldownError rejects a generation attempt made too soon after the
// client's previous one. It unwraps to ErrRateLimited and carries the time
// remaining until the next attempt is allowed, for the Retry-After header.
type CooldownError struct {
	RetryAfter time.Duration
}

// Error implements error.
func (e *CooldownError) Error() string {
	return fmt.Sprintf("generation cooldown active, retry in %s", e.RetryAfter)
}

// Unwrap lets errors.Is(err, ErrRateLimited) match cooldown rejections.
func (e *CooldownError) Unwrap() error { return ErrRateLimited }
