package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "media_relay_requests_total",
		Help: "API requests by endpoint and outcome",
	}, []string{"endpoint", "status"})

	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "media_relay_jobs_total",
		Help: "External tool invocations by tool and result",
	}, []string{"tool", "result"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "media_relay_job_duration_seconds",
		Help:    "External tool run time in seconds",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"tool"})

	BytesDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "media_relay_bytes_delivered_total",
		Help: "Media bytes written to clients by delivery mode",
	}, []string{"mode"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "media_relay_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	})
)
