// Package metrics exposes the service's prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/imsantiagopoli/pilly/internal/assistant"
	"github.com/imsantiagopoli/pilly/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pilly"

// Metrics holds every collector on a private registry
type Metrics struct {
	registry *prometheus.Registry

	dosesRecorded      *prometheus.CounterVec
	medicationsAdded   prometheus.Counter
	medicationsRemoved prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	assistantRequests *prometheus.CounterVec
	assistantDuration *prometheus.HistogramVec

	closeOutRuns   *prometheus.CounterVec
	closeOutMissed prometheus.Counter
}

// New creates and registers the collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		dosesRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "doses_recorded_total",
			Help:      "Dose events recorded, by status.",
		}, []string{"status"}),
		medicationsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "medications_added_total",
			Help:      "Medications added.",
		}),
		medicationsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "medications_removed_total",
			Help:      "Medications removed.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests, by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		assistantRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assistant",
			Name:      "requests_total",
			Help:      "Assistant requests, by provider and outcome.",
		}, []string{"provider", "outcome"}),
		assistantDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "assistant",
			Name:      "request_duration_seconds",
			Help:      "Assistant provider latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20},
		}, []string{"provider"}),
		closeOutRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "closeout",
			Name:      "runs_total",
			Help:      "Day close-out runs, by result.",
		}, []string{"result"}),
		closeOutMissed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "closeout",
			Name:      "missed_doses_total",
			Help:      "Missed events recorded by day close-out.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.dosesRecorded,
		m.medicationsAdded,
		m.medicationsRemoved,
		m.httpRequests,
		m.httpDuration,
		m.assistantRequests,
		m.assistantDuration,
		m.closeOutRuns,
		m.closeOutMissed,
	)

	return m
}

// Registry returns the registry the collectors are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// DoseRecorded counts a recorded dose event
func (m *Metrics) DoseRecorded(status model.DoseStatus) {
	m.dosesRecorded.WithLabelValues(string(status)).Inc()
}

// MedicationAdded counts an added medication
func (m *Metrics) MedicationAdded() {
	m.medicationsAdded.Inc()
}

// MedicationRemoved counts a removed medication
func (m *Metrics) MedicationRemoved() {
	m.medicationsRemoved.Inc()
}

// ObserveHTTP records one served request
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// AssistantRequest records one assistant request
func (m *Metrics) AssistantRequest(provider string, outcome assistant.Outcome, elapsed time.Duration) {
	m.assistantRequests.WithLabelValues(provider, string(outcome)).Inc()
	if elapsed > 0 {
		m.assistantDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
	}
}

// CloseOutCompleted records a day close-out run
func (m *Metrics) CloseOutCompleted(missed int, err error) {
	if err != nil {
		m.closeOutRuns.WithLabelValues("error").Inc()
		return
	}
	m.closeOutRuns.WithLabelValues("ok").Inc()
	m.closeOutMissed.Add(float64(missed))
}
