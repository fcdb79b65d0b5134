// AI badge handler.
//
// GET /ai-badge renders a badge whose message segment is generated text.
// The handler parses presentation parameters and translates service errors
// into badge responses; caching, cooldown, and fallback semantics live in
// the service layer.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-badge-backend/internal/badge"
	"github.com/tbourn/go-badge-backend/internal/services"
	"github.com/tbourn/go-badge-backend/internal/utils"
)

// TextBadgeService is the generation contract consumed by the AI badge
// endpoint. Implementations must be safe for concurrent use and honor the
// provided context.
type TextBadgeService interface {
	// Message returns badge text for prompt on behalf of clientKey, either
	// from the shared cache or freshly generated behind a per-client
	// cooldown.
	Message(ctx context.Context, clientKey, prompt string) (string, error)
}

const (
	// defaultPrompt is used when the request does not carry one.
	defaultPrompt = "Generate a short inspirational message"

	// Generated text length varies per request, so the AI badge reserves
	// minimum segment widths to keep its geometry stable.
	minAILabelWidth   = 80
	minAIMessageWidth = 200
)

// AIBadge returns the handler for GET /ai-badge.
//
// Query parameters: prompt, style, color, label_color, label, scale.
// Cooldown rejections are answered 429 with Retry-After; a cache outage is
// also 429 because admission cannot be checked. Generation problems never
// surface here: the service substitutes its fallback text.
func AIBadge(svc TextBadgeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		prompt := c.DefaultQuery("prompt", defaultPrompt)
		clientKey := "ip:" + c.ClientIP()

		text, err := svc.Message(c.Request.Context(), clientKey, prompt)
		if err != nil {
			var cd *services.CooldownError
			switch {
			case errors.As(err, &cd):
				secs := int(cd.RetryAfter.Round(time.Second).Seconds())
				if secs < 1 {
					secs = 1
				}
				c.Header("Retry-After", strconv.Itoa(secs))
				failBadge(c, http.StatusTooManyRequests, "Rate Limited", nil)
			case errors.Is(err, services.ErrStoreUnavailable):
				failBadge(c, http.StatusTooManyRequests, "Rate Limit Error", err)
			default:
				failBadge(c, http.StatusOK, "AI Error", err)
			}
			return
		}

		svg := badge.Render(badge.Spec{
			Label:           c.DefaultQuery("label", "AI Says"),
			Message:         text,
			Style:           c.DefaultQuery("style", "flat"),
			Color:           c.DefaultQuery("color", "blue"),
			LabelColor:      c.DefaultQuery("label_color", "gray"),
			Scale:           utils.FloatDefault(c.Query("scale"), 1.5),
			MinLabelWidth:   minAILabelWidth,
			MinMessageWidth: minAIMessageWidth,
		})
		writeSVG(c, http.StatusOK, "ai", svg)
	}
}
