// Package services – VisitorService
//
// This file implements VisitorService, the application-level component that
// owns the read-through/write-behind visitor counter. The synchronous path
// serves a count from the fast cache (or one durable read on a cold
// subject) and never writes durable state; durable increments, cache
// refreshes, and external-profile reconciliation all run as deferred tasks
// after the response has been dispatched.
//
// Only trusted traffic moves counters. The trusted-origin check is a pure
// predicate over request headers matching the image-proxy fingerprint, so
// direct browser hits and scripted scraping observe counts without
// inflating them.
//
// Observability: the synchronous path is OpenTelemetry-instrumented; spans
// carry the subject and cache outcome.

package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-badge-backend/internal/github"
	"github.com/tbourn/go-badge-backend/internal/kv"
	"github.com/tbourn/go-badge-backend/internal/repo"
	"github.com/tbourn/go-badge-backend/internal/tasks"
)

// viewKeyPrefix namespaces count snapshots in the fast cache.
const viewKeyPrefix = "views:"

// ProfileAPI is the external profile collaborator. Lookups are idempotent
// and best-effort; every failure is swallowed by the reconcile task.
type ProfileAPI interface {
	Lookup(ctx context.Context, username string) (*github.Profile, error)
}

// VisitorService composes the fast cache and the durable store into a
// monotonically non-decreasing per-subject view count with deferred
// background reconciliation.
type VisitorService struct {
	DB       *gorm.DB
	Cache    *kv.Cache
	Profiles ProfileAPI
	Exec     *tasks.Executor

	CacheTTL      time.Duration // lifetime of a count snapshot in the fast cache
	ProfileMaxAge time.Duration // staleness window for cached profiles

	// Trusted-origin fingerprint.
	TrustedUAPrefix  string // expected User-Agent prefix, e.g. "github-camo"
	RelayFingerprint string // substring expected in the relay header value
}

// IsTrustedOrigin reports whether a request with the given User-Agent and
// relay header value came through the expected image proxy. Pure predicate;
// both parts must match.
func (s *VisitorService) IsTrustedOrigin(userAgent, relay string) bool {
	if s.TrustedUAPrefix == "" || s.RelayFingerprint == "" {
		return false
	}
	return strings.HasPrefix(userAgent, s.TrustedUAPrefix) &&
		strings.Contains(relay, s.RelayFingerprint)
}

// Count resolves the view count for subject. Cache hits return immediately
// without touching durable state; cache misses cost at most one durable
// read. When trusted is true a deferred reconcile task is scheduled: the
// returned value does not yet include that increment, but any read after
// the snapshot expires will.
//
// A brand-new subject reports 1 to trusted traffic (the deferred increment
// is already in flight) and 0 to untrusted traffic.
func (s *VisitorService) Count(ctx context.Context, subject string, trusted bool) (int64, error) {
	tr := otel.Tracer("services/VisitorService")
	ctx, span := tr.Start(ctx, "Count",
		trace.WithAttributes(
			attribute.String("badge.subject", subject),
			attribute.Bool("badge.trusted", trusted),
		),
	)
	defer span.End()

	key := viewKeyPrefix + subject

	if val, hit, err := s.Cache.Get(ctx, key); err == nil && hit {
		if n, perr := strconv.ParseInt(val, 10, 64); perr == nil {
			span.SetAttributes(attribute.Bool("badge.cache_hit", true))
			if trusted {
				s.scheduleReconcile(subject)
			}
			return n, nil
		}
	} else if err != nil {
		// Cache trouble is not fatal: fall through to the durable read.
		log.Warn().Err(err).Str("subject", subject).Msg("view cache read failed")
	}
	span.SetAttributes(attribute.Bool("badge.cache_hit", false))

	n, err := repo.GetVisitorCount(ctx, s.DB, subject)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		if trusted {
			n = 1
		} else {
			n = 0
		}
	case err != nil:
		return 0, ErrStoreUnavailable
	}

	// Backfill the snapshot so repeated reads within the TTL are stable.
	if err := s.Cache.Set(ctx, key, strconv.FormatInt(n, 10), s.CacheTTL); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("view cache write failed")
	}

	if trusted {
		s.scheduleReconcile(subject)
	}
	return n, nil
}

// scheduleReconcile hands the durable work for one admitted trusted view to
// the background executor.
func (s *VisitorService) scheduleReconcile(subject string) {
	if s.Exec == nil {
		return
	}
	s.Exec.Submit("visitor-reconcile", func(ctx context.Context) {
		s.reconcile(ctx, subject)
	})
}

// reconcile performs the deferred half of a trusted view: the atomic
// durable increment, the cache refresh, and, when the owner's cached
// profile is missing or stale, a single external profile fetch. It
// tolerates concurrent invocations for the same subject: every write is an
// atomic store-side upsert, so ordering between overlapping tasks is
// irrelevant.
func (s *VisitorService) reconcile(ctx context.Context, subject string) {
	count, err := repo.IncrementVisitor(ctx, s.DB, subject)
	if err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("visitor increment failed")
		return
	}

	if err := s.Cache.Set(ctx, viewKeyPrefix+subject, strconv.FormatInt(count, 10), s.CacheTTL); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("view cache refresh failed")
	}

	s.refreshProfile(ctx, ownerOf(subject))
}

// refreshProfile fetches and upserts the owner's profile when the cached
// row is missing or older than the staleness window. All failures are
// swallowed; profile data is decoration, never worth failing a count for.
func (s *VisitorService) refreshProfile(ctx context.Context, username string) {
	if s.Profiles == nil || username == "" {
		return
	}

	if _, err := repo.GetFreshGithubUser(ctx, s.DB, username, s.ProfileMaxAge); err == nil {
		return // still fresh
	} else if !errors.Is(err, repo.ErrNotFound) {
		log.Warn().Err(err).Str("username", username).Msg("profile cache read failed")
		return
	}

	p, err := s.Profiles.Lookup(ctx, username)
	if err != nil || p == nil {
		log.Debug().Err(err).Str("username", username).Msg("profile lookup skipped")
		return
	}

	if err := repo.UpsertGithubUser(ctx, s.DB, username, p.Followers, p.Following); err != nil {
		log.Warn().Err(err).Str("username", username).Msg("profile upsert failed")
	}
}

// ownerOf extracts the profile owner from a subject key ("alice/repo" →
// "alice"; a bare profile name is its own owner).
func ownerOf(subject string) string {
	if i := strings.IndexByte(subject, '/'); i > 0 {
		return subject[:i]
	}
	return subject
}
