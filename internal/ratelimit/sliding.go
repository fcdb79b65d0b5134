package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript prunes admissions older than the window, then either
// rejects (reporting the oldest surviving admission so the caller can
// compute the reset) or records the new admission. Scores are milliseconds
// since epoch; members carry a nonce so two admissions in the same
// millisecond remain distinct entries.
//
// Returns {admitted(0|1), count, oldestScoreMillis}.
var slidingWindowScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)
local n = redis.call('ZCARD', KEYS[1])
if n >= limit then
  local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
  return {0, n, oldest[2]}
end
redis.call('ZADD', KEYS[1], now, ARGV[5])
redis.call('EXPIRE', KEYS[1], ttl)
return {1, n + 1, 0}
`)

// SlidingWindow is the log-based alternative limiter: every admission is a
// timestamped sorted-set entry, and the window slides continuously instead
// of resetting on a boundary. The whole set expires after one idle window
// so abandoned keys are garbage-collected.
type SlidingWindow struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewSlidingWindow constructs a sliding-window limiter allowing limit
// admissions within any window-sized interval.
func NewSlidingWindow(client *redis.Client, limit int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		client: client,
		limit:  limit,
		window: window,
		prefix: "ratelimit:sliding",
	}
}

// Admit implements Limiter. On rejection ResetAt is the oldest surviving
// admission's timestamp plus the window: the earliest instant at which one
// slot frees up.
func (s *SlidingWindow) Admit(ctx context.Context, clientKey string) (Decision, error) {
	key := s.prefix + ":" + clientKey
	now := time.Now()
	windowMillis := s.window.Milliseconds()
	ttlSecs := int64(s.window / time.Second)
	if ttlSecs < 1 {
		ttlSecs = 1
	}
	member := fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString())

	res, err := slidingWindowScript.Run(ctx, s.client, []string{key},
		now.UnixMilli(), windowMillis, s.limit, ttlSecs, member).Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("sliding window admit: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("sliding window admit: unexpected script reply %v", res)
	}

	admitted := asInt64(res[0]) == 1
	count := asInt64(res[1])

	dec := Decision{
		Admitted: admitted,
		Limit:    s.limit,
	}
	if admitted {
		dec.Remaining = s.limit - int(count)
		if dec.Remaining < 0 {
			dec.Remaining = 0
		}
		dec.ResetAt = now.Add(s.window)
		return dec, nil
	}

	oldest := asInt64(res[2])
	dec.ResetAt = time.UnixMilli(oldest).Add(s.window)
	dec.RetryAfter = time.Until(dec.ResetAt)
	if dec.RetryAfter < time.Second {
		dec.RetryAfter = time.Second
	}
	return dec, nil
}
