package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	QueryLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "carbonpulse",
			Subsystem: "query",
			Name:      "latency_seconds",
			Help:      "Latency of read endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	QueryErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "carbonpulse",
			Subsystem: "query",
			Name:      "errors_total",
			Help:      "Errors by read endpoint",
		},
		[]string{"endpoint"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(QueryLatency, QueryErrors)
	})
}
