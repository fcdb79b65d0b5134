// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides BadgeHeaders, the hardening and cache-control headers
// every badge response carries. Badges are embedded as images in third-party
// pages (READMEs, profile pages), which drives two requirements the typical
// JSON-API header set does not cover:
//
//   - a locked-down Content-Security-Policy so a crafted SVG cannot script
//     or load external resources even when opened directly;
//   - revalidation-forcing cache directives so intermediary proxies always
//     revalidate and counts stay fresh.
//
// HSTS is opt-in and only applied when the request is actually HTTPS.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// badgeCSP confines an SVG response to inline styling and data: images.
// No scripts, no external fetches, sandboxed when rendered as a document.
const badgeCSP = "default-src 'none'; style-src 'unsafe-inline'; img-src data:; sandbox"

// BadgeOptions configures the headers emitted by BadgeHeaders.
//
// EnableHSTS controls whether to emit Strict-Transport-Security for HTTPS
// requests (never for plain HTTP). Only enable when traffic is HTTPS
// end-to-end, including between proxy and app. HSTSMaxAge defaults to 180
// days when unset.
type BadgeOptions struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// BadgeHeaders returns a Gin middleware that attaches the common header set
// to every response:
//
//	Content-Security-Policy:     locked-down SVG policy
//	X-Content-Type-Options:      nosniff
//	X-Frame-Options:             deny
//	X-XSS-Protection:            1; mode=block
//	Referrer-Policy:             no-referrer
//	Access-Control-Allow-Origin: *       (badges embed anywhere)
//	Cross-Origin-Resource-Policy: cross-origin
//	Cache-Control:               no-cache, max-age=0, must-revalidate
//	Pragma:                      no-cache
//	Expires:                     0
//
// The cache directives force revalidation rather than forbidding storage:
// conditional requests can still be answered 304 from the ETag.
func BadgeHeaders(opt BadgeOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int((180 * 24 * time.Hour).Seconds())
	}
	return func(c *gin.Context) {
		setCommonHeaders(c.Writer.Header())

		if opt.EnableHSTS && isHTTPS(c.Request) {
			c.Writer.Header().Set("Strict-Transport-Security",
				"max-age="+strconv.Itoa(maxAge)+"; includeSubDomains")
		}

		c.Next()
	}
}

// setCommonHeaders applies the common badge header set (everything except
// HSTS, which depends on the request scheme). The rate limiter calls this
// directly: it sits earlier in the chain and rejections abort before
// BadgeHeaders runs, but a 429 badge still belongs to the same header
// family as every other badge.
func setCommonHeaders(h http.Header) {
	h.Set("Content-Security-Policy", badgeCSP)
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "deny")
	h.Set("X-XSS-Protection", "1; mode=block")
	h.Set("Referrer-Policy", "no-referrer")

	// Badges are public images embedded cross-origin by design of the
	// product, not an API surface needing origin restrictions.
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Cross-Origin-Resource-Policy", "cross-origin")

	// Force revalidation so proxies never serve a stale count.
	h.Set("Cache-Control", "no-cache, max-age=0, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
}

// isHTTPS reports whether the incoming request used HTTPS either directly
// (r.TLS != nil) or via a reverse proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
