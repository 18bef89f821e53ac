package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess = "success"
	statusFailure = "failure"
)

type metrics struct {
	queries      *prometheus.CounterVec
	optimization prometheus.Histogram
	execution    prometheus.Histogram
	rows         prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		queries: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "polystore_engine_queries_total",
			Help: "Total number of executed queries by status",
		}, []string{"status"}),
		optimization: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name: "polystore_engine_optimization_duration_seconds",
			Help: "Time spent optimizing logical plans",

			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: time.Hour,
		}),
		execution: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name: "polystore_engine_execution_duration_seconds",
			Help: "Time spent executing optimized plans",

			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: time.Hour,
		}),
		rows: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name: "polystore_engine_result_rows",
			Help: "Number of rows returned per query",

			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: time.Hour,
		}),
	}
}
