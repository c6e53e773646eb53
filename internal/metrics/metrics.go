// SPDX-License-Identifier: MIT

// Package metrics defines the Prometheus instruments for catalogd.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProviderRequests counts upstream metadata calls by limiter bucket
	// ("foreground"/"background") and status class ("2xx", "429", "5xx",
	// "4xx", "error").
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalogd_provider_requests_total",
		Help: "Provider API requests by limiter bucket and status class.",
	}, []string{"bucket", "class"})

	// ProviderRetries counts retry sleeps inside the provider client.
	ProviderRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalogd_provider_retries_total",
		Help: "Provider request retries after 429, 5xx or transport errors.",
	})

	// BackfillSubmits counts scheduling decisions: "scheduled",
	// "recent", "inflight", "queue_full".
	BackfillSubmits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalogd_backfill_submits_total",
		Help: "Backfill submissions by outcome.",
	}, []string{"outcome"})

	// BackfillTasks counts finished worker tasks: "completed", "noop",
	// "provider_miss", "error".
	BackfillTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalogd_backfill_tasks_total",
		Help: "Backfill task results.",
	}, []string{"result"})

	// BackfillInflight tracks keys currently queued or running.
	BackfillInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catalogd_backfill_inflight",
		Help: "Backfill keys currently inflight.",
	})

	// CacheEvents counts lookups per response cache ("home", "trending",
	// "similar", "logo") and event ("hit", "miss", "stale").
	CacheEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalogd_cache_events_total",
		Help: "Response cache lookups by cache and outcome.",
	}, []string{"cache", "event"})

	// HTTPDuration observes request latency per route and status code.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalogd_http_request_duration_seconds",
		Help:    "HTTP request duration by route and status code.",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"route", "method", "code"})

	// RateLimited counts requests rejected by the per-IP limiter.
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalogd_http_rate_limited_total",
		Help: "Requests rejected with 429 by the per-IP limiter.",
	})
)

// StatusClass buckets an HTTP status for the provider counter. Zero means
// the transport failed before any status arrived.
func StatusClass(status int) string {
	switch {
	case status == 0:
		return "error"
	case status == 429:
		return "429"
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 200 && status < 300:
		return "2xx"
	default:
		return "other"
	}
}
