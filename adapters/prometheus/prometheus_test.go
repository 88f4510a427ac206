package prometheus

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInvocationMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewInvocationMetrics(reg)

	require.NotNil(t, m)

	timer := m.Duration("map.get")
	assert.NotNil(t, timer)
	timer.ObserveDuration()

	m.AttemptStarted("map.get")
	m.RetryScheduled("map.get")
	m.OverloadRejected("map.put")
	m.Completed("map.get", true)
	m.Completed("map.get", false)

	// Verify metrics were registered
	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)

	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}

	assert.True(t, names["hzc_invocation_duration_seconds"])
	assert.True(t, names["hzc_invocation_attempts_total"])
	assert.True(t, names["hzc_invocation_retries_total"])
	assert.True(t, names["hzc_invocation_overload_rejections_total"])
	assert.True(t, names["hzc_invocations_total"])
}

func TestBoolToStr(t *testing.T) {
	assert.Equal(t, "true", boolToStr(true))
	assert.Equal(t, "false", boolToStr(false))
}
