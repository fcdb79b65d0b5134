// Package handlers provides HTTP handler implementations for the badge
// endpoints.
//
// This file defines the response utilities shared by every endpoint. The
// service answers with SVG documents, not JSON: the caller is almost always
// an <img> tag, which renders whatever bytes arrive and surfaces nothing
// else. Failures therefore ship as error badges, typically with status 200,
// so the embedding page shows a readable message instead of a broken-image
// icon.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-badge-backend/internal/badge"
	"github.com/tbourn/go-badge-backend/internal/http/middleware"
	"github.com/tbourn/go-badge-backend/internal/observability"
)

// svgContentType is the media type for every badge response.
const svgContentType = "image/svg+xml; charset=utf-8"

// writeSVG writes an SVG document with the given status and counts the
// render for metrics.
func writeSVG(c *gin.Context, status int, kind, svg string) {
	observability.CountBadgeRender(kind)
	c.Data(status, svgContentType, []byte(svg))
}

// failBadge writes the standard error badge with the given short message.
// Server-side causes (status >= 500) are logged with request context.
func failBadge(c *gin.Context, status int, msg string, cause error) {
	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Err(cause).
			Int("status", status).
			Str("badge_message", msg).
			Msg("badge error")
	}
	writeSVG(c, status, "error", badge.ErrorBadge(msg))
	c.Abort()
}
