package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript performs the whole check-and-increment atomically on
// the server. A request at the limit is rejected without incrementing
// further; the first admission of a window arms the key expiry, so the
// window boundary is the key's TTL (now > windowEnd starts a new window,
// equality does not, since expiry has not fired yet at that instant).
//
// Returns {admitted(0|1), count, ttlSeconds}.
var fixedWindowScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= limit then
  local ttl = redis.call('TTL', KEYS[1])
  if ttl < 0 then ttl = window end
  return {0, current, ttl}
end
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('EXPIRE', KEYS[1], window)
end
local ttl = redis.call('TTL', KEYS[1])
if ttl < 0 then ttl = window end
return {1, count, ttl}
`)

// FixedWindow is the default limiter: a per-key counter that resets every
// Window. Abandoned keys self-clean through the key expiry.
type FixedWindow struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewFixedWindow constructs a fixed-window limiter allowing limit
// admissions per window.
func NewFixedWindow(client *redis.Client, limit int, window time.Duration) *FixedWindow {
	return &FixedWindow{
		client: client,
		limit:  limit,
		window: window,
		prefix: "ratelimit:fixed",
	}
}

// Admit implements Limiter. Remaining is limit minus the count after the
// current admission (the first request of a window reports limit-1); a
// rejected request reports 0.
func (f *FixedWindow) Admit(ctx context.Context, clientKey string) (Decision, error) {
	key := f.prefix + ":" + clientKey
	windowSecs := int64(f.window / time.Second)
	if windowSecs < 1 {
		windowSecs = 1
	}

	res, err := fixedWindowScript.Run(ctx, f.client, []string{key}, f.limit, windowSecs).Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("fixed window admit: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("fixed window admit: unexpected script reply %v", res)
	}

	admitted := asInt64(res[0]) == 1
	count := asInt64(res[1])
	ttl := time.Duration(asInt64(res[2])) * time.Second

	dec := Decision{
		Admitted: admitted,
		Limit:    f.limit,
		ResetAt:  time.Now().Add(ttl),
	}
	if admitted {
		dec.Remaining = f.limit - int(count)
		if dec.Remaining < 0 {
			dec.Remaining = 0
		}
	} else {
		dec.RetryAfter = ttl
	}
	return dec, nil
}

// asInt64 coerces a Lua script reply element to int64. Redis returns
// integers for numeric replies and strings for bulk replies.
func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case string:
		var n int64
		_, _ = fmt.Sscan(t, &n)
		return n
	default:
		return 0
	}
}
