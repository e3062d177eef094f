package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_FrameProcessed(t *testing.T) {
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.FrameProcessed([]string{"car", "K", "K"}, 20*time.Millisecond)
	m.FrameProcessed(nil, 10*time.Millisecond)
	m.DetectorError()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.framesProcessed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.frameErrors))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.detections.WithLabelValues("K")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.detections.WithLabelValues("car")))
}

func TestMetrics_FileVerified(t *testing.T) {
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.FileVerified(true, nil, nil)
	m.FileVerified(false, []string{"K"}, []string{"car"})
	m.RunCompleted()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.filesVerified.WithLabelValues("correct")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.filesVerified.WithLabelValues("incorrect")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.discrepancies.WithLabelValues("missing", "K")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.discrepancies.WithLabelValues("excess", "car")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verifyRuns))
}

func TestMetrics_DoubleRegistrationFails(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewMetrics(registry)
	require.NoError(t, err)

	_, err = NewMetrics(registry)
	assert.Error(t, err)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.FrameProcessed([]string{"car"}, time.Second)
	m.DetectorError()
	m.FileVerified(false, []string{"K"}, nil)
	m.RunCompleted()
	assert.Nil(t, m.Registry())
}
