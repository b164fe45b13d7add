package telemetry

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one dbbench invocation on a private
// registry, so repeated runs in one process never collide.
type Metrics struct {
	Registry *prometheus.Registry

	OperationDuration *prometheus.HistogramVec
	OperationFailures *prometheus.CounterVec
	BucketValues      *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dbbench_operation_duration_seconds",
			Help:    "Wall-clock time of each benchmark operation.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"operation"}),
		OperationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbbench_operation_failures_total",
			Help: "Benchmark runs aborted by a failing operation.",
		}, []string{"operation"}),
		BucketValues: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dbbench_histogram_bucket_values",
			Help: "Number of CSV values classified into each range.",
		}, []string{"range"}),
	}
	m.Registry.MustRegister(m.OperationDuration, m.OperationFailures, m.BucketValues)
	return m
}

// ObserveOperation records the real time of a finished operation.
func (m *Metrics) ObserveOperation(label string, seconds float64) {
	m.OperationDuration.WithLabelValues(label).Observe(seconds)
}

// TrackFailure counts an operation that aborted its run.
func (m *Metrics) TrackFailure(label string) {
	m.OperationFailures.WithLabelValues(label).Inc()
}

// SetBucket publishes the count of one histogram range.
func (m *Metrics) SetBucket(rangeText string, count int) {
	m.BucketValues.WithLabelValues(rangeText).Set(float64(count))
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

// Handler exposes the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// StartMetricsServer serves /metrics on addr until the listener fails.
func (m *Metrics) StartMetricsServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	slog.Info("starting metrics server", "addr", addr)
	err := http.ListenAndServe(addr, mux)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
