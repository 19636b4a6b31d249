// Package metrics 定义进程级 Prometheus 指标（serve 模式下经 /metrics 暴露）。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	PageOK       = "ok"
	PageFailed   = "failed"
	PageRejected = "rejected" // 熔断器打开时被拒绝
)

var (
	SourcePages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boxdmatch_source_pages_total",
			Help: "Listing pages requested from the rating source, by result",
		},
		[]string{"result"},
	)

	SourcePageDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "boxdmatch_source_page_duration_seconds",
			Help:    "Duration of a single listing page fetch+parse",
			Buckets: prometheus.DefBuckets,
		},
	)

	ProfileEntries = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "boxdmatch_profile_entries",
			Help:    "Rated entries per fetched profile",
			Buckets: []float64{0, 10, 50, 100, 250, 500, 1000, 2500},
		},
	)

	Recommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boxdmatch_recommendations_total",
			Help: "Recommendation items emitted, by mode",
		},
		[]string{"mode"},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "boxdmatch_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)
