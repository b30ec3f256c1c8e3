package pymetrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpcodeDispatchedIncrementsByMnemonic(t *testing.T) {
	c := New()
	c.OpcodeDispatched("LOAD_CONST")
	c.OpcodeDispatched("LOAD_CONST")
	c.OpcodeDispatched("BINARY_ADD")

	got := testutil.ToFloat64(c.opcodesDispatched.WithLabelValues("LOAD_CONST"))
	assert.Equal(t, float64(2), got)

	got = testutil.ToFloat64(c.opcodesDispatched.WithLabelValues("BINARY_ADD"))
	assert.Equal(t, float64(1), got)
}

func TestBreakpointHitKeyedByLine(t *testing.T) {
	c := New()
	c.BreakpointHit(42)
	c.BreakpointHit(42)
	c.BreakpointHit(-3)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.breakpointHits.WithLabelValues("42")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.breakpointHits.WithLabelValues("-3")))
}

func TestCallObservedRecordsLatency(t *testing.T) {
	c := New()
	c.CallObserved(10 * time.Millisecond)

	samples := testutil.CollectAndCount(c.callLatency)
	require.Equal(t, 1, samples)
}

func TestNewWithConfigAppliesNamespace(t *testing.T) {
	cfg := Config{Namespace: "custom", Subsystem: "vm", LatencyBuckets: []float64{0.1, 1}}
	c := NewWithConfig(cfg)
	c.OpcodeDispatched("NOP")
	assert.Equal(t, float64(1), testutil.ToFloat64(c.opcodesDispatched.WithLabelValues("NOP")))
}
