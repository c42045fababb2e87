// Package metrics exposes Prometheus collectors for rebuilds, index
// generations and generated unit writes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ruleforge"

// Rebuild results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds the collectors of one engine. A nil *Metrics records
// nothing.
type Metrics struct {
	// rebuilds counts rebuild attempts.
	// Labels: trigger, result (success, failure)
	rebuilds *prometheus.CounterVec

	// rebuildDuration measures complete compile-and-package cycles.
	rebuildDuration prometheus.Histogram

	// indexGeneration is the generation of the current classpath snapshot.
	indexGeneration prometheus.Gauge

	// unitWrites counts generated units written to the staging directory.
	// Labels: unit (fully-qualified class name)
	unitWrites *prometheus.CounterVec

	// archiveClasses is the number of classes in the published helper archive.
	archiveClasses prometheus.Gauge
}

// New registers the collectors with reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		rebuilds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rebuilds_total",
			Help:      "Rebuild attempts by trigger and result",
		}, []string{"trigger", "result"}),
		rebuildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rebuild_duration_seconds",
			Help:      "Duration of compile-and-package cycles",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		indexGeneration: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_generation",
			Help:      "Generation of the current classpath index",
		}),
		unitWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unit_writes_total",
			Help:      "Generated source units written to staging",
		}, []string{"unit"}),
		archiveClasses: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "archive_classes",
			Help:      "Classes in the published helper archive",
		}),
	}
}

// RecordRebuild records one rebuild attempt. classes is ignored for
// failed attempts, which leave the published archive as it was.
func (m *Metrics) RecordRebuild(trigger string, success bool, d time.Duration, classes int) {
	if m == nil {
		return
	}
	result := ResultFailure
	if success {
		result = ResultSuccess
		m.archiveClasses.Set(float64(classes))
	}
	m.rebuilds.WithLabelValues(trigger, result).Inc()
	m.rebuildDuration.Observe(d.Seconds())
}

// SetIndexGeneration records the generation of a newly published index.
func (m *Metrics) SetIndexGeneration(gen uint64) {
	if m == nil {
		return
	}
	m.indexGeneration.Set(float64(gen))
}

// RecordUnitWrite counts a generated unit written to staging.
func (m *Metrics) RecordUnitWrite(unit string) {
	if m == nil {
		return
	}
	m.unitWrites.WithLabelValues(unit).Inc()
}
