// Visitor badge handler.
//
// GET /visitor-badge/*subject renders the per-subject view counter. The
// handler is transport-thin: it parses styling parameters, decides whether
// the request came through the trusted image proxy, asks the service for
// the count, and renders. Counting semantics live in the service layer.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-badge-backend/internal/badge"
	"github.com/tbourn/go-badge-backend/internal/utils"
)

// VisitorCounter is the counting contract consumed by the visitor badge
// endpoint. Implementations must be safe for concurrent use and honor the
// provided context.
type VisitorCounter interface {
	// Count resolves the view count for subject, scheduling a deferred
	// increment when trusted is true.
	Count(ctx context.Context, subject string, trusted bool) (int64, error)
	// IsTrustedOrigin reports whether the given request headers match the
	// trusted image-proxy fingerprint.
	IsTrustedOrigin(userAgent, relay string) bool
}

// VisitorBadge returns the handler for GET /visitor-badge/*subject.
// relayHeader names the header carrying the proxy chain fingerprint checked
// alongside the User-Agent for trusted-origin detection (typically "Via").
//
// Query parameters: style, color, label_color, label, logo, logo_width,
// scale. Unknown styles and colors fall back to defaults rather than
// failing: a badge URL pasted into a README years ago must keep rendering.
func VisitorBadge(svc VisitorCounter, relayHeader string) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := strings.Trim(c.Param("subject"), "/")
		if subject == "" {
			failBadge(c, http.StatusOK, "Missing Subject", nil)
			return
		}

		trusted := svc.IsTrustedOrigin(
			c.Request.UserAgent(),
			c.GetHeader(relayHeader),
		)

		count, err := svc.Count(c.Request.Context(), subject, trusted)
		if err != nil {
			failBadge(c, http.StatusInternalServerError, "Server Error", err)
			return
		}

		// Conditional requests: the count is the only variable content, so
		// it doubles as the entity tag.
		etag := fmt.Sprintf("%q", fmt.Sprint(count))
		c.Header("ETag", etag)
		if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
			c.Status(http.StatusNotModified)
			return
		}

		svg := badge.Render(badge.Spec{
			Label:      c.DefaultQuery("label", "Profile views"),
			Message:    badge.FormatCount(count),
			Style:      c.DefaultQuery("style", "flat"),
			Color:      c.DefaultQuery("color", "blue"),
			LabelColor: c.DefaultQuery("label_color", "gray"),
			Scale:      utils.FloatDefault(c.Query("scale"), 1),
			Logo:       c.Query("logo"),
			LogoWidth:  utils.FloatDefault(c.Query("logo_width"), 0),
		})
		writeSVG(c, http.StatusOK, "visitor", svg)
	}
}
