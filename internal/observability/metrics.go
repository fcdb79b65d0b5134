// Domain metrics for the badge pipeline.
//
// These collectors sit in the observability package because the moments
// they measure span layers: renders and admission rejections are observed
// in the HTTP layer, generation outcomes and cache hits inside the AI
// service. All collectors are safe for concurrent use.
package observability

import "github.com/prometheus/client_golang/prometheus"

// Generation outcome labels.
const (
	GenerationOK       = "ok"
	GenerationFallback = "fallback"
)

var (
	// badgeRenders counts rendered badges by kind (visitor/ai/error).
	badgeRenders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "badge_renders_total",
			Help: "Total number of badges rendered, by kind.",
		},
		[]string{"kind"},
	)

	// rateLimitRejections counts requests refused by the admission layer.
	rateLimitRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ratelimit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter.",
		},
	)

	// aiGenerations counts generator invocations by outcome.
	aiGenerations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_generations_total",
			Help: "Total number of AI text generations, by outcome.",
		},
		[]string{"outcome"},
	)

	// aiCacheHits counts generated texts served from the shared cache.
	aiCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ai_cache_hits_total",
			Help: "Total number of AI badge texts served from cache.",
		},
	)
)

func init() {
	prometheus.MustRegister(badgeRenders, rateLimitRejections, aiGenerations, aiCacheHits)
}

// CountBadgeRender records one rendered badge of the given kind.
func CountBadgeRender(kind string) { badgeRenders.WithLabelValues(kind).Inc() }

// CountRateLimitRejection records one admission rejection.
func CountRateLimitRejection() { rateLimitRejections.Inc() }

// CountAIGeneration records one generator invocation with its outcome.
func CountAIGeneration(outcome string) { aiGenerations.WithLabelValues(outcome).Inc() }

// CountAICacheHit records one cache-served generation.
func CountAICacheHit() { aiCacheHits.Inc() }
