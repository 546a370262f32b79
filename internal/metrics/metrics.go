// Package metrics holds the Prometheus metrics for the transcription pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "keynotes"

// Metrics holds all Prometheus metrics for the service
type Metrics struct {
	registry *prometheus.Registry

	JobsSubmitted *prometheus.CounterVec
	JobsFinished  *prometheus.CounterVec
	StepSeconds   *prometheus.HistogramVec
	DroppedChunks prometheus.Counter
	ActiveClients prometheus.Gauge
	UploadBytes   prometheus.Histogram
}

// New creates the metrics on their own registry, together with the Go and process collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		JobsSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_submitted_total",
				Help:      "Total transcription jobs submitted",
			},
			[]string{"task"},
		),
		JobsFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_finished_total",
				Help:      "Total transcription jobs finished by final status",
			},
			[]string{"status"},
		),
		StepSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of transcription pipeline steps",
				Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 300},
			},
			[]string{"step", "result"},
		),
		DroppedChunks: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dropped_chunks_total",
				Help:      "Transcript chunks left unassigned after the last speaker segment",
			},
		),
		ActiveClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "websocket_clients",
				Help:      "Connected progress websocket clients",
			},
		),
		UploadBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upload_bytes",
				Help:      "Size of uploaded audio files",
				Buckets:   prometheus.ExponentialBuckets(16*1024, 4, 8),
			},
		),
	}
}

// ObserveStep records how long a pipeline step took
func (m *Metrics) ObserveStep(step string, ok bool, d time.Duration) {
	result := "success"
	if !ok {
		result = "failure"
	}
	m.StepSeconds.WithLabelValues(step, result).Observe(d.Seconds())
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
