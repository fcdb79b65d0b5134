// Package ratelimit implements store-backed request admission against Redis.
//
// Two interchangeable strategies are provided behind one interface: a
// fixed-window counter and a log-based sliding window over a sorted set.
// Both perform their check-and-record step as a single atomic server-side
// script, so concurrent admissions for the same key cannot both slip past
// the limit. The strategies use distinct key prefixes and must not be mixed
// against the same key.
//
// The package imposes no fail-open/fail-closed policy: Admit returns the
// store error and the caller decides. The visitor badge path serves
// best-effort on store failure; the text-generation path refuses.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one admission check, shaped for direct use in
// X-RateLimit-* and Retry-After response headers.
type Decision struct {
	Admitted   bool
	Limit      int
	Remaining  int           // admissions left in the current window (post-admission)
	ResetAt    time.Time     // when the current window ends
	RetryAfter time.Duration // positive only when rejected
}

// Limiter gates request admission per client key.
type Limiter interface {
	// Admit records one admission attempt for clientKey and reports the
	// decision. A non-nil error means the backing store could not be
	// consulted; the Decision is zero-valued in that case.
	Admit(ctx context.Context, clientKey string) (Decision, error)
}
