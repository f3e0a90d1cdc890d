package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storeOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "milda_store_operations_total",
			Help: "Row store calls by operation and result",
		},
		[]string{"op", "result"},
	)

	rateLimitWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "milda_store_ratelimit_wait_seconds",
			Help:    "Time store callers spent waiting for rate limiter capacity",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		},
	)

	ticketsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "milda_tickets_created_total",
			Help: "Intake confirmations by outcome",
		},
		[]string{"result"},
	)

	resolutionPrompts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "milda_resolution_prompts_total",
			Help: "Resolution prompts sent by the reconciliation loop",
		},
		[]string{"result"},
	)

	confirmations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "milda_confirmations_total",
			Help: "Reporter answers to resolution prompts",
		},
		[]string{"response", "result"},
	)

	renderFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "milda_render_fallbacks_total",
			Help: "Messages that fell back to plain text",
		},
		[]string{"kind"},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "milda_active_sessions",
			Help: "Chat sessions with a live worker",
		},
	)
)

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func TrackStoreOperation(op string, err error) {
	storeOperations.WithLabelValues(op, result(err)).Inc()
}

func TrackRateLimitWait(d time.Duration) {
	rateLimitWait.Observe(d.Seconds())
}

// TrackTicket records an intake outcome: created, cancelled or failed.
func TrackTicket(outcome string) {
	ticketsCreated.WithLabelValues(outcome).Inc()
}

func TrackResolutionPrompt(err error) {
	resolutionPrompts.WithLabelValues(result(err)).Inc()
}

func TrackConfirmation(response string, err error) {
	confirmations.WithLabelValues(response, result(err)).Inc()
}

func TrackRenderFallback(kind string) {
	renderFallbacks.WithLabelValues(kind).Inc()
}

func SessionStarted() { activeSessions.Inc() }
func SessionEnded()   { activeSessions.Dec() }
