// internal/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recommendation outcomes.
const (
	OutcomeOK            = "ok"
	OutcomeInsufficient  = "insufficient"
	OutcomeNotConfigured = "not_configured"
	OutcomeError         = "error"
)

var (
	MealsLogged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meal_log_meals_logged_total",
			Help: "Total number of meal events appended",
		},
	)

	Recommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meal_log_recommendations_total",
			Help: "Recommendation requests by outcome",
		},
		[]string{"outcome"},
	)

	NarrationCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meal_log_narration_calls_total",
			Help: "Calls to the text-completion service by result",
		},
		[]string{"result"},
	)

	NarrationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "meal_log_narration_duration_seconds",
			Help:    "Latency of text-completion calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meal_log_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func RecordMealLogged() {
	MealsLogged.Inc()
}

// RecordRecommendation counts one suggestion request by outcome.
func RecordRecommendation(outcome string) {
	Recommendations.WithLabelValues(outcome).Inc()
}

func ObserveNarration(d time.Duration, err error) {
	NarrationDuration.Observe(d.Seconds())
	if err != nil {
		NarrationCalls.WithLabelValues("failure").Inc()
		return
	}
	NarrationCalls.WithLabelValues("success").Inc()
}

func RecordHTTPRequest(method, route, status string, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}
