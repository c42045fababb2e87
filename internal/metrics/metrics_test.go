package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRebuild(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordRebuild("source", true, 2*time.Second, 12)
	m.RecordRebuild("source", false, time.Second, 0)
	m.RecordRebuild("devices", true, time.Second, 13)

	assert.Equal(t, 1.0, promtest.ToFloat64(m.rebuilds.WithLabelValues("source", ResultSuccess)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.rebuilds.WithLabelValues("source", ResultFailure)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.rebuilds.WithLabelValues("devices", ResultSuccess)))
	assert.Equal(t, 13.0, promtest.ToFloat64(m.archiveClasses))
	assert.Equal(t, 1, promtest.CollectAndCount(m.rebuildDuration))
}

func TestFailedRebuildKeepsArchiveClasses(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordRebuild("activation", true, time.Second, 5)
	m.RecordRebuild("source", false, time.Second, 0)
	assert.Equal(t, 5.0, promtest.ToFloat64(m.archiveClasses))
}

func TestIndexGenerationAndUnitWrites(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SetIndexGeneration(3)
	m.RecordUnitWrite("org.example.Items")
	m.RecordUnitWrite("org.example.Items")

	assert.Equal(t, 3.0, promtest.ToFloat64(m.indexGeneration))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.unitWrites.WithLabelValues("org.example.Items")))
}

func TestRegisteredNames(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.RecordRebuild("activation", true, time.Second, 1)
	m.RecordUnitWrite("org.example.Things")

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.ElementsMatch(t, []string{
		"ruleforge_rebuilds_total",
		"ruleforge_rebuild_duration_seconds",
		"ruleforge_index_generation",
		"ruleforge_unit_writes_total",
		"ruleforge_archive_classes",
	}, names)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRebuild("source", true, time.Second, 1)
		m.SetIndexGeneration(1)
		m.RecordUnitWrite("x")
	})
}

func TestDoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
