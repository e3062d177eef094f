// Package metrics provides Prometheus metrics for the frame pipeline and the verifier.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	framesProcessed prometheus.Counter
	frameErrors     prometheus.Counter
	detections      *prometheus.CounterVec
	frameDuration   prometheus.Histogram

	filesVerified *prometheus.CounterVec
	discrepancies *prometheus.CounterVec
	verifyRuns    prometheus.Counter

	collectors []prometheus.Collector
}

// NewMetrics creates the collectors and registers them on registry.
func NewMetrics(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}

	m.framesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "framecheck_frames_processed_total",
		Help: "Number of video frames written to disk",
	})
	m.frameErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "framecheck_detector_errors_total",
		Help: "Number of frames the detector failed on",
	})
	m.detections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "framecheck_detections_total",
		Help: "Number of detections per class label",
	}, []string{"label"})
	m.frameDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "framecheck_frame_duration_seconds",
		Help:    "Time spent detecting, annotating and persisting one frame",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	})
	m.filesVerified = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "framecheck_files_verified_total",
		Help: "Number of record files verified, by result",
	}, []string{"result"})
	m.discrepancies = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "framecheck_discrepancies_total",
		Help: "Number of missing or excess entries, by kind and label",
	}, []string{"kind", "label"})
	m.verifyRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "framecheck_verify_runs_total",
		Help: "Number of completed verification runs",
	})

	m.collectors = []prometheus.Collector{
		m.framesProcessed, m.frameErrors, m.detections, m.frameDuration,
		m.filesVerified, m.discrepancies, m.verifyRuns,
	}
	for _, c := range m.collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return m, nil
}

// Registry returns the registry the metrics were registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// FrameProcessed records one persisted frame with its detection labels.
func (m *Metrics) FrameProcessed(labels []string, took time.Duration) {
	if m == nil {
		return
	}
	m.framesProcessed.Inc()
	m.frameDuration.Observe(took.Seconds())
	for _, l := range labels {
		m.detections.WithLabelValues(l).Inc()
	}
}

// DetectorError records a failed detector call.
func (m *Metrics) DetectorError() {
	if m == nil {
		return
	}
	m.frameErrors.Inc()
}

// FileVerified records the outcome of one record file.
func (m *Metrics) FileVerified(correct bool, missing, excess []string) {
	if m == nil {
		return
	}
	result := "correct"
	if !correct {
		result = "incorrect"
	}
	m.filesVerified.WithLabelValues(result).Inc()
	for _, l := range missing {
		m.discrepancies.WithLabelValues("missing", l).Inc()
	}
	for _, l := range excess {
		m.discrepancies.WithLabelValues("excess", l).Inc()
	}
}

// RunCompleted records a finished verification run.
func (m *Metrics) RunCompleted() {
	if m == nil {
		return
	}
	m.verifyRuns.Inc()
}
