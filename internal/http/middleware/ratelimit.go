// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file wires the store-backed admission layer into the request chain.
// Every response carries X-RateLimit-* headers describing the caller's
// budget; rejected requests receive 429 with Retry-After and a rendered
// error badge instead of JSON, because the typical caller is an <img> tag.
//
// When the backing store cannot be consulted the middleware fails open for
// badge traffic, degrading to a process-local token bucket so that a cache
// outage cannot blank every README on the internet while still bounding
// abuse from a single instance.
package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/tbourn/go-badge-backend/internal/badge"
	"github.com/tbourn/go-badge-backend/internal/observability"
	"github.com/tbourn/go-badge-backend/internal/ratelimit"
)

// keyFunc selects the identity used to key an admission check.
//
// Implementations should return a stable string for the duration of a
// request (e.g. "ip:<addr>").
type keyFunc func(*gin.Context) string

// KeyByIP returns a keyFunc keyed on the client IP address, the only
// identity an anonymous badge request carries.
func KeyByIP() keyFunc {
	return func(c *gin.Context) string {
		return "ip:" + c.ClientIP()
	}
}

// localBucket is the fail-open fallback: one process-local token bucket per
// key, used only while the store is unreachable.
type localBucket struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	rps     rate.Limit
	burst   int
}

func (lb *localBucket) allow(key string) bool {
	lb.mu.Lock()
	l, ok := lb.buckets[key]
	if !ok {
		l = rate.NewLimiter(lb.rps, lb.burst)
		lb.buckets[key] = l
	}
	lb.mu.Unlock()
	return l.Allow()
}

// RateLimit returns a Gin middleware enforcing the given admission strategy
// per client IP.
//
// Behavior:
//   - Admitted requests proceed, with X-RateLimit-Limit, X-RateLimit-Remaining
//     and X-RateLimit-Reset (unix seconds) set on the response.
//   - Rejected requests are answered 429 with Retry-After and a rendered
//     "Rate Limited" error badge, and the chain is aborted.
//   - Store errors fail open through a local token bucket approximating the
//     configured budget; the degradation is logged by the caller's access
//     log via the collected Gin error.
func RateLimit(limiter ratelimit.Limiter, limit int, window time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	fallback := &localBucket{
		buckets: make(map[string]*rate.Limiter),
		rps:     rate.Limit(float64(limit) / window.Seconds()),
		burst:   limit,
	}
	key := KeyByIP()

	return func(c *gin.Context) {
		k := key(c)

		d, err := limiter.Admit(c.Request.Context(), k)
		if err != nil {
			c.Error(err) //nolint:errcheck // collected for the access log
			if fallback.allow(k) {
				c.Next()
				return
			}
			rejectWithBadge(c, time.Second)
			return
		}

		h := c.Writer.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

		if !d.Admitted {
			rejectWithBadge(c, d.RetryAfter)
			return
		}
		c.Next()
	}
}

// rejectWithBadge answers 429 with a Retry-After header and the standard
// rate-limit error badge, then aborts the chain. The abort skips the
// BadgeHeaders middleware, so the common header set is applied here.
func rejectWithBadge(c *gin.Context, retryAfter time.Duration) {
	observability.CountRateLimitRejection()
	observability.CountBadgeRender("error")

	setCommonHeaders(c.Writer.Header())
	secs := int(retryAfter.Round(time.Second).Seconds())
	if secs < 1 {
		secs = 1
	}
	c.Header("Retry-After", strconv.Itoa(secs))
	c.Data(http.StatusTooManyRequests, "image/svg+xml; charset=utf-8",
		[]byte(badge.ErrorBadge("Rate Limited")))
	c.Abort()
}
