// Package metrics exposes store and HTTP instrumentation through a private
// Prometheus registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tofu-suite/tofu/internal/domain/entities"
	"github.com/tofu-suite/tofu/internal/ports"
)

// Recorder implements ports.MetricsRecorder and carries the HTTP collectors.
type Recorder struct {
	registry *prometheus.Registry

	saves         *prometheus.CounterVec
	saveDuration  prometheus.Histogram
	loads         *prometheus.CounterVec
	notifications *prometheus.CounterVec

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

var _ ports.MetricsRecorder = (*Recorder)(nil)

// New registers every collector on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		saves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tofu_document_saves_total",
				Help: "Total number of document saves",
			},
			[]string{"result"},
		),
		saveDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tofu_document_save_duration_seconds",
				Help:    "Document save duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		loads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tofu_document_loads_total",
				Help: "Total number of document loads by outcome",
			},
			[]string{"outcome"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tofu_change_notifications_total",
				Help: "Total number of change notifications by section",
			},
			[]string{"section"},
		),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	r.registry.MustRegister(
		r.saves, r.saveDuration, r.loads, r.notifications,
		r.requestsTotal, r.requestDuration,
	)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) ObserveSave(duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.saves.WithLabelValues(result).Inc()
	r.saveDuration.Observe(duration.Seconds())
}

func (r *Recorder) ObserveLoad(outcome string) {
	r.loads.WithLabelValues(outcome).Inc()
}

func (r *Recorder) IncNotification(section entities.Section) {
	r.notifications.WithLabelValues(section.String()).Inc()
}

// ObserveRequest records one HTTP request.
func (r *Recorder) ObserveRequest(method, path string, status int, duration time.Duration) {
	r.requestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	r.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
