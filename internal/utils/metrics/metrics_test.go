package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	m := New("test", prometheus.NewRegistry())

	assert.NotNil(t, m.PollsTotal)
	assert.NotNil(t, m.TransitionsTotal)
	assert.NotNil(t, m.ProbesTotal)
}

func TestMetrics_Recorders(t *testing.T) {
	m := New("test", prometheus.NewRegistry())

	m.RecordSubmission("video", true)
	m.RecordSubmission("video", false)
	m.RecordPoll("video", "ok", 20*time.Millisecond)
	m.RecordPoll("video", "transport_error", time.Second)
	m.RecordTransition("video", "completed")
	m.AddActivePollers(2)
	m.AddActivePollers(-1)
	m.RecordProbe("luma", true)
	m.RecordRecovery("task_id", false)
	m.SetBreakerState("luma", 2)
	m.RecordHTTPRequest("GET", "/healthz", 204, time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.SubmissionsTotal.WithLabelValues("video", "accepted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SubmissionsTotal.WithLabelValues("video", "rejected")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PollsTotal.WithLabelValues("video", "transport_error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("video", "completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ActivePollers))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ProbesTotal.WithLabelValues("luma", "valid")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RecoveriesTotal.WithLabelValues("task_id", "exhausted")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ProviderBreakerState.WithLabelValues("luma")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/healthz", "2xx")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordPoll("image", "ok", time.Millisecond)
		m.RecordTransition("image", "failed")
		m.RecordProbe("x", false)
		m.AddActivePollers(1)
	})
}

func TestStatusCodeToString(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{200, "2xx"},
		{302, "3xx"},
		{404, "4xx"},
		{503, "5xx"},
		{0, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, statusCodeToString(tt.code))
	}
}
