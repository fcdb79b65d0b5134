// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, compression,
// admission control, CORS, and the badge security headers.
//
// Design goals:
//   - Observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Badge responses embeddable from anywhere (permissive CORS, strict CSP)
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-badge-backend/internal/badge"
	"github.com/tbourn/go-badge-backend/internal/config"
	"github.com/tbourn/go-badge-backend/internal/github"
	"github.com/tbourn/go-badge-backend/internal/http/handlers"
	"github.com/tbourn/go-badge-backend/internal/http/middleware"
	"github.com/tbourn/go-badge-backend/internal/kv"
	"github.com/tbourn/go-badge-backend/internal/ratelimit"
	"github.com/tbourn/go-badge-backend/internal/services"
	"github.com/tbourn/go-badge-backend/internal/tasks"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and wires the badge services to their stores. The returned executor
// owns the deferred reconciliation work; callers must drain it on shutdown.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter (badges are GET-only; the cap is defensive)
//  6. Metrics (/metrics itself registered before admission control)
//  7. gzip compression (SVG compresses ~4x)
//  8. Store-backed rate limiter per client IP
//  9. CORS and badge security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, rdb *redis.Client, gen services.TextGenerator, cfg config.Config) *tasks.Executor {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured access logging
	r.Use(middleware.Logger())

	// 4) Panic recovery (empty 500, badge callers render nothing anyway)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics; the endpoint itself sits outside admission
	//    control so scrapes never compete with badge traffic for budget.
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Liveness/health, also outside admission control
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// 7) Compression
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 8) Store-backed admission per client IP
	var limiter ratelimit.Limiter
	switch cfg.RateLimit.Strategy {
	case "sliding":
		limiter = ratelimit.NewSlidingWindow(rdb, cfg.RateLimit.Limit, cfg.RateLimit.Window)
	default:
		limiter = ratelimit.NewFixedWindow(rdb, cfg.RateLimit.Limit, cfg.RateLimit.Window)
	}
	r.Use(middleware.RateLimit(limiter, cfg.RateLimit.Limit, cfg.RateLimit.Window))

	// 9) CORS (badges embed anywhere) and badge security headers
	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "If-None-Match"},
		ExposeHeaders:    []string{"X-Request-ID", "ETag", "Content-Length"},
		AllowCredentials: false, // must remain false with AllowAllOrigins
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.BadgeHeaders(middleware.BadgeOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
	}))

	// Unknown routes still answer with a badge; the caller is an <img> tag.
	r.NoRoute(func(c *gin.Context) {
		c.Data(http.StatusNotFound, "image/svg+xml; charset=utf-8",
			[]byte(badge.ErrorBadge("Not Found")))
	})

	// Dependency injection: services ← stores/clients
	cache := kv.NewCache(rdb, "badge")
	exec := tasks.NewExecutor(cfg.TaskTimeout)

	visitorSvc := &services.VisitorService{
		DB:               db,
		Cache:            cache,
		Profiles:         github.NewClient(cfg.GitHubAPIBase),
		Exec:             exec,
		CacheTTL:         cfg.Counter.CacheTTL,
		ProfileMaxAge:    cfg.Counter.ProfileMaxAge,
		TrustedUAPrefix:  cfg.Counter.TrustedUA,
		RelayFingerprint: cfg.Counter.RelayValue,
	}
	aiSvc := &services.AIBadgeService{
		Cache:     cache,
		Generator: gen,
		CacheTTL:  cfg.AI.CacheTTL,
		Cooldown:  cfg.AI.Cooldown,
		MaxTokens: cfg.AI.MaxTokens,
		Fallback:  "Hello World!",
	}

	// Badge endpoints
	r.GET("/visitor-badge/*subject", handlers.VisitorBadge(visitorSvc, cfg.Counter.RelayHeader))
	r.GET("/ai-badge", handlers.AIBadge(aiSvc))

	return exec
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
