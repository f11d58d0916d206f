package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	measurements *prometheus.CounterVec
	renewals     *prometheus.CounterVec
	trades       *prometheus.CounterVec
	events       *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	healthIndex  *prometheus.GaugeVec
	lastPrice    prometheus.Gauge
	latency      *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		measurements: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "carbonpulse_measurements_total",
				Help: "Total number of measurements recorded",
			},
			[]string{"entity", "sector"},
		),
		renewals: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "carbonpulse_renewals_total",
				Help: "Total number of renewals executed",
			},
			[]string{"entity", "sector"},
		),
		trades: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "carbonpulse_trades_total",
				Help: "Total number of trades settled",
			},
			[]string{"entity", "sector"},
		),
		events: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "carbonpulse_events_total",
				Help: "Total number of events published",
			},
			[]string{"type"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "carbonpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		healthIndex: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "carbonpulse_health_index",
				Help: "Last computed health index per entity",
			},
			[]string{"entity"},
		),
		lastPrice: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "carbonpulse_oracle_last_price",
				Help: "Last price received from the oracle",
			},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "carbonpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordMeasurement counts one accepted measurement.
func (r *Recorder) RecordMeasurement(entity, sector string) {
	r.measurements.WithLabelValues(entity, sector).Inc()
}

// RecordRenewal counts one executed renewal.
func (r *Recorder) RecordRenewal(entity, sector string) {
	r.renewals.WithLabelValues(entity, sector).Inc()
}

// RecordTrade counts one settled trade.
func (r *Recorder) RecordTrade(entity, sector string) {
	r.trades.WithLabelValues(entity, sector).Inc()
}

// RecordEvent counts one published event.
func (r *Recorder) RecordEvent(kind string) {
	r.events.WithLabelValues(kind).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordHealthIndex records the latest health index for an entity.
func (r *Recorder) RecordHealthIndex(entity string, index float64) {
	r.healthIndex.WithLabelValues(entity).Set(index)
}

// RecordLastPrice records the last oracle price.
func (r *Recorder) RecordLastPrice(price float64) {
	r.lastPrice.Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
