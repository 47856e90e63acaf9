package orchestrator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arc-framework/xrboot/internal/sequencer"
)

func TestBootstrapReport_JSONShape(t *testing.T) {
	t.Parallel()

	r := BootstrapReport{
		Result: sequencer.Result{HandleID: "h-1", State: sequencer.StateFailed, Outcome: "unsupported"},
		Deliveries: map[string]DeliveryResult{
			"redis": {Name: "redis", Status: StatusOK},
		},
	}

	data, err := json.Marshal(&r)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))

	result, ok := got["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "failed", result["state"])
	assert.Equal(t, "unsupported", result["outcome"])

	deliveries, ok := got["deliveries"].(map[string]any)
	require.True(t, ok)
	redis, ok := deliveries["redis"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ok", redis["status"])
	_, hasError := redis["error"]
	assert.False(t, hasError)
}

func TestBootstrapReport_OmitsEmptyDeliveries(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(BootstrapReport{Result: sequencer.Result{State: sequencer.StateIdle}})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	_, has := got["deliveries"]
	assert.False(t, has)
}

func TestProbeResult_JSONShape(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		input       ProbeResult
		wantError   bool
		errorAbsent bool
	}{
		{
			name:        "healthy probe",
			input:       ProbeResult{Name: "redis", OK: true, LatencyMs: 3},
			errorAbsent: true,
		},
		{
			name:      "unhealthy probe with error",
			input:     ProbeResult{Name: "nats", OK: false, Error: "timeout"},
			wantError: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			data, err := json.Marshal(tc.input)
			require.NoError(t, err)

			var got map[string]any
			require.NoError(t, json.Unmarshal(data, &got))

			assert.Equal(t, tc.input.Name, got["name"])
			assert.Equal(t, tc.input.OK, got["ok"])
			assert.Equal(t, float64(tc.input.LatencyMs), got["latencyMs"])

			_, hasError := got["error"]
			if tc.wantError {
				assert.Equal(t, tc.input.Error, got["error"])
			}
			if tc.errorAbsent {
				assert.False(t, hasError)
			}
		})
	}
}
