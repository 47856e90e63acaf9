package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegisterMetricsIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		RegisterMetrics()
		RegisterMetrics()
	})
}

func TestRecordState_OneHot(t *testing.T) {
	RecordState("probing")
	assert.Equal(t, 1.0, testutil.ToFloat64(bootstrapState.WithLabelValues("probing")))
	assert.Equal(t, 0.0, testutil.ToFloat64(bootstrapState.WithLabelValues("idle")))

	RecordState("running")
	assert.Equal(t, 0.0, testutil.ToFloat64(bootstrapState.WithLabelValues("probing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(bootstrapState.WithLabelValues("running")))
}

func TestRecordersIncrement(t *testing.T) {
	before := testutil.ToFloat64(bootstrapOutcomes.WithLabelValues("unsupported"))
	RecordOutcome("unsupported")
	assert.Equal(t, before+1, testutil.ToFloat64(bootstrapOutcomes.WithLabelValues("unsupported")))

	beforeReport := testutil.ToFloat64(reportDeliveries.WithLabelValues("redis", "false"))
	RecordReport("redis", false)
	assert.Equal(t, beforeReport+1, testutil.ToFloat64(reportDeliveries.WithLabelValues("redis", "false")))

	assert.NotPanics(t, func() {
		RecordProbeDuration(120 * time.Millisecond)
		RecordHTTPRequest("GET", "/ready", 503, 3*time.Millisecond)
	})
}
