// Package telemetry exposes the Prometheus collectors of the API. All
// methods are safe to call on a nil *Metrics, which records nothing.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mlapi"

// Outcome label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Metrics holds the collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	uploads       prometheus.Counter
	uploadRows    prometheus.Histogram
	trainings     *prometheus.CounterVec
	trainDuration *prometheus.HistogramVec
	predictions   *prometheus.CounterVec
	storeSize     *prometheus.GaugeVec
}

// New creates and registers the collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		}, []string{"method", "route"}),
		uploads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "datasets",
			Name:      "uploads_total",
			Help:      "Total number of datasets uploaded.",
		}),
		uploadRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "datasets",
			Name:      "rows",
			Help:      "Number of rows per uploaded dataset.",
			Buckets:   prometheus.ExponentialBuckets(10, 10, 6),
		}),
		trainings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "models",
			Name:      "trainings_total",
			Help:      "Total number of training runs.",
		}, []string{"task_type", "status"}),
		trainDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "models",
			Name:      "training_duration_seconds",
			Help:      "Duration of training runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
		}, []string{"task_type"}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "models",
			Name:      "predictions_total",
			Help:      "Total number of predictions served.",
		}, []string{"task_type", "status"}),
		storeSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "items",
			Help:      "Number of items held by an in-memory store.",
		}, []string{"store"}),
	}

	m.registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.uploads,
		m.uploadRows,
		m.trainings,
		m.trainDuration,
		m.predictions,
		m.storeSize,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RequestStarted marks a request as in flight; call the returned func when
// it completes.
func (m *Metrics) RequestStarted() func() {
	if m == nil {
		return func() {}
	}
	m.httpInFlight.Inc()
	return m.httpInFlight.Dec
}

// ObserveRequest records a completed HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordUpload records an accepted dataset.
func (m *Metrics) RecordUpload(rows int) {
	if m == nil {
		return
	}
	m.uploads.Inc()
	m.uploadRows.Observe(float64(rows))
}

// RecordTraining records a training run and its outcome.
func (m *Metrics) RecordTraining(taskType string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.trainings.WithLabelValues(taskType, outcome(err)).Inc()
	if err == nil {
		m.trainDuration.WithLabelValues(taskType).Observe(d.Seconds())
	}
}

// RecordPrediction records a prediction and its outcome.
func (m *Metrics) RecordPrediction(taskType string, err error) {
	if m == nil {
		return
	}
	m.predictions.WithLabelValues(taskType, outcome(err)).Inc()
}

// SetStoreSize reports the number of items held by the named store.
func (m *Metrics) SetStoreSize(store string, n int) {
	if m == nil {
		return
	}
	m.storeSize.WithLabelValues(store).Set(float64(n))
}

func outcome(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}
