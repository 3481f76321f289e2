package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gatewarden",
		Subsystem: "policy",
		Name:      "submissions_total",
		Help:      "Total verification submissions by decision",
	}, []string{"decision"})

	AutoBlacklistsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gatewarden",
		Subsystem: "policy",
		Name:      "auto_blacklists_total",
		Help:      "Total automatic blacklist additions",
	}, []string{"reason"})

	IngestRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gatewarden",
		Subsystem: "ingest",
		Name:      "requests_total",
		Help:      "Total ingest API requests by status code",
	}, []string{"code"})

	IngestRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gatewarden",
		Subsystem: "ingest",
		Name:      "request_duration_seconds",
		Help:      "Ingest API request processing duration",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"route"})

	IngestRateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gatewarden",
		Subsystem: "ingest",
		Name:      "rate_limited_total",
		Help:      "Total ingest API requests rejected by the rate limiter",
	}, []string{"route"})

	InviteAttributions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gatewarden",
		Subsystem: "invites",
		Name:      "attributions_total",
		Help:      "Total join attribution outcomes",
	}, []string{"result"})

	TaskRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gatewarden",
		Subsystem: "tasks",
		Name:      "runs_total",
		Help:      "Total background task runs",
	}, []string{"task"})

	TaskErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gatewarden",
		Subsystem: "tasks",
		Name:      "errors_total",
		Help:      "Total background task failures",
	}, []string{"task"})
)
