package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the engine's Prometheus collectors. A nil *Registry is valid and
// records nothing, so packages can take one as an optional dependency.
type Registry struct {
	reg *prometheus.Registry

	UpstreamRequests *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec
	DegradedFetches  *prometheus.CounterVec
	TokenRefreshes   *prometheus.CounterVec
	RateCardSkips    *prometheus.CounterVec
	StatsRefreshes   *prometheus.CounterVec
}

func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		UpstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratekit_upstream_requests_total",
				Help: "Outbound platform API calls by platform, operation and result",
			},
			[]string{"platform", "op", "result"},
		),

		UpstreamLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ratekit_upstream_request_duration_seconds",
				Help:    "Duration of outbound platform API calls",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"platform", "op"},
		),

		DegradedFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratekit_degraded_fetches_total",
				Help: "Stats or content fetches that fell back to zero/empty results",
			},
			[]string{"platform", "kind"},
		),

		TokenRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratekit_token_refreshes_total",
				Help: "Credential refresh attempts by platform and result",
			},
			[]string{"platform", "result"},
		),

		RateCardSkips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratekit_rate_card_skips_total",
				Help: "Platforms skipped while computing multi-platform rate cards",
			},
			[]string{"platform", "reason"},
		),

		StatsRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratekit_stats_refreshes_total",
				Help: "Stats refresh operations by platform and result",
			},
			[]string{"platform", "result"},
		),
	}

	r.reg.MustRegister(
		r.UpstreamRequests,
		r.UpstreamLatency,
		r.DegradedFetches,
		r.TokenRefreshes,
		r.RateCardSkips,
		r.StatsRefreshes,
		prometheus.NewGoCollector(),
	)
	return r
}

func (r *Registry) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func (r *Registry) ObserveUpstream(platform, op, result string, took time.Duration) {
	if r == nil {
		return
	}
	r.UpstreamRequests.WithLabelValues(platform, op, result).Inc()
	r.UpstreamLatency.WithLabelValues(platform, op).Observe(took.Seconds())
}

func (r *Registry) Degraded(platform, kind string) {
	if r == nil {
		return
	}
	r.DegradedFetches.WithLabelValues(platform, kind).Inc()
}

func (r *Registry) TokenRefresh(platform, result string) {
	if r == nil {
		return
	}
	r.TokenRefreshes.WithLabelValues(platform, result).Inc()
}

func (r *Registry) RateCardSkipped(platform, reason string) {
	if r == nil {
		return
	}
	r.RateCardSkips.WithLabelValues(platform, reason).Inc()
}

func (r *Registry) StatsRefresh(platform, result string) {
	if r == nil {
		return
	}
	r.StatsRefreshes.WithLabelValues(platform, result).Inc()
}
