package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	fetchesTotal *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	runDuration  prometheus.Histogram
	processed    *prometheus.CounterVec
	screenCounts *prometheus.GaugeVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		fetchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emascreen_fetches_total",
				Help: "Total number of history fetch calls issued",
			},
			[]string{"symbol"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emascreen_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		runDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "emascreen_run_duration_seconds",
				Help:    "Duration of full update runs in seconds",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
		),
		processed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emascreen_instruments_processed_total",
				Help: "Instruments processed per run, by outcome",
			},
			[]string{"status"},
		),
		screenCounts: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "emascreen_universe_position",
				Help: "Instruments above/below their EMA or still warming up",
			},
			[]string{"position"},
		),
	}
}

// RecordFetch records one external fetch call.
func (r *Recorder) RecordFetch(symbol string) {
	r.fetchesTotal.WithLabelValues(symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordRunDuration records a full run's wall-clock duration.
func (r *Recorder) RecordRunDuration(seconds float64) {
	r.runDuration.Observe(seconds)
}

// RecordInstrumentsProcessed adds n processed instruments with an outcome.
func (r *Recorder) RecordInstrumentsProcessed(status string, n int) {
	r.processed.WithLabelValues(status).Add(float64(n))
}

// SetScreenCounts publishes current universe aggregates.
func (r *Recorder) SetScreenCounts(above, below, warmingUp int) {
	r.screenCounts.WithLabelValues("above").Set(float64(above))
	r.screenCounts.WithLabelValues("below").Set(float64(below))
	r.screenCounts.WithLabelValues("warming_up").Set(float64(warmingUp))
}
