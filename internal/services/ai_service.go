package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-badge-backend/internal/badge"
	"github.com/tbourn/go-badge-backend/internal/kv"
	"github.com/tbourn/go-badge-backend/internal/observability"
)

// Cache key prefixes for the generation path.
const (
	aiTextKeyPrefix     = "ai:text:"     // prompt -> sanitized generated text
	aiCooldownKeyPrefix = "ai:cooldown:" // per-client generation cooldown marker
	aiSeenKeyPrefix     = "ai:seen:"     // per-client last-served marker, bookkeeping only
)

// TextGenerator produces one short text for a prompt. Implemented by the
// genai client in production and by fakes in tests.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// AIBadgeService serves generated badge text with a shared per-prompt cache
// in front of the generator and a per-client cooldown guarding it.
//
// Admission is deliberately fail-closed: if the cache cannot be consulted,
// the cooldown cannot be enforced, so the request is refused rather than
// risking an unmetered call to the paid upstream. Generation failures after
// admission degrade to a fixed fallback text instead.
type AIBadgeService struct {
	Cache     *kv.Cache
	Generator TextGenerator

	CacheTTL  time.Duration // lifetime of a cached generation per prompt
	Cooldown  time.Duration // minimum spacing between generations per client
	MaxTokens int           // upper bound passed to the generator
	Fallback  string        // served when generation fails after admission
}

// Message returns the badge text for prompt on behalf of clientKey.
//
// Cached prompts are served to every client with no cooldown check. A cache
// miss requires the client to pass the cooldown gate before the generator
// is invoked; the winner's (sanitized) result is cached for all clients.
// Rejections are *CooldownError; cache outages are ErrStoreUnavailable.
func (s *AIBadgeService) Message(ctx context.Context, clientKey, prompt string) (string, error) {
	textKey := aiTextKeyPrefix + prompt

	val, hit, err := s.Cache.Get(ctx, textKey)
	if err != nil {
		return "", ErrStoreUnavailable
	}
	if hit {
		observability.CountAICacheHit()
		// Bookkeeping only; a failed marker write never blocks the badge.
		if err := s.Cache.Set(ctx, aiSeenKeyPrefix+clientKey, "1", s.Cooldown); err != nil {
			log.Debug().Err(err).Msg("seen marker write failed")
		}
		return val, nil
	}

	ok, err := s.Cache.SetNX(ctx, aiCooldownKeyPrefix+clientKey, "1", s.Cooldown)
	if err != nil {
		return "", ErrStoreUnavailable
	}
	if !ok {
		retry := s.Cooldown
		if ttl, terr := s.Cache.TTL(ctx, aiCooldownKeyPrefix+clientKey); terr == nil && ttl > 0 {
			retry = ttl
		}
		return "", &CooldownError{RetryAfter: retry}
	}

	text, err := s.Generator.Generate(ctx, prompt, s.MaxTokens)
	if err != nil {
		log.Warn().Err(err).Msg("text generation failed, serving fallback")
		observability.CountAIGeneration(observability.GenerationFallback)
		text = s.Fallback
	} else {
		observability.CountAIGeneration(observability.GenerationOK)
	}
	text = badge.Sanitize(text)
	if text == "" {
		text = s.Fallback
	}

	if err := s.Cache.Set(ctx, textKey, text, s.CacheTTL); err != nil {
		log.Warn().Err(err).Msg("generation cache write failed")
	}
	return text, nil
}
