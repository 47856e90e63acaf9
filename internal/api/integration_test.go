package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arc-framework/xrboot/internal/orchestrator"
	"arc-framework/xrboot/internal/sequencer"
	"arc-framework/xrboot/internal/xr"
)

// memReporter keeps delivered results in memory.
type memReporter struct {
	mu      sync.Mutex
	results []sequencer.Result
}

func (m *memReporter) Name() string { return "memory" }

func (m *memReporter) Report(_ context.Context, res sequencer.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, res)
	return nil
}

func (m *memReporter) Probe(_ context.Context) orchestrator.ProbeResult {
	return orchestrator.ProbeResult{Name: "memory", OK: true, LatencyMs: 1}
}

func (m *memReporter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.results)
}

func newStack(supported bool) (*httptest.Server, *memReporter, *xr.Simulated) {
	sim := xr.NewSimulated(supported, 30*time.Millisecond)
	seq := sequencer.New(xr.NewHandle(sim), sequencer.WithDiagnostics(sequencer.LogDiagnostics{Logger: noopLogger()}))
	rep := &memReporter{}
	o := orchestrator.New(seq, rep)
	return httptest.NewServer(NewRouter(o, 5*time.Second).Handler()), rep, sim
}

func pollReady(t *testing.T, client *http.Client, url string) int {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	var lastCode int
	for time.Now().Before(deadline) {
		r, err := client.Get(url + "/ready")
		require.NoError(t, err)
		r.Body.Close()

		lastCode = r.StatusCode
		if lastCode == http.StatusOK {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	return lastCode
}

// TestBootstrapFlow_202ThenReady covers the supported path:
//  1. POST /api/v1/bootstrap → 202 Accepted
//  2. GET /ready eventually → 200 once the runtime is started
//  3. a second POST → 409
func TestBootstrapFlow_202ThenReady(t *testing.T) {
	t.Parallel()

	srv, rep, sim := newStack(true)
	defer srv.Close()
	client := srv.Client()

	resp, err := client.Post(srv.URL+"/api/v1/bootstrap", "application/json", strings.NewReader(""))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	assert.Equal(t, http.StatusOK, pollReady(t, client, srv.URL), "GET /ready should return 200 after bootstrap")

	require.Eventually(t, func() bool { return rep.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	again, err := client.Post(srv.URL+"/api/v1/bootstrap", "application/json", strings.NewReader(""))
	require.NoError(t, err)
	defer again.Body.Close()
	assert.Equal(t, http.StatusConflict, again.StatusCode)

	initCalls, startCalls := sim.Calls()
	assert.Equal(t, 1, initCalls)
	assert.Equal(t, 1, startCalls)
}

// TestBootstrapFlow_UnsupportedNeverReady checks that an unsupported device
// settles as failed and /ready stays 503.
func TestBootstrapFlow_UnsupportedNeverReady(t *testing.T) {
	t.Parallel()

	srv, rep, sim := newStack(false)
	defer srv.Close()
	client := srv.Client()

	resp, err := client.Post(srv.URL+"/api/v1/bootstrap", "application/json", strings.NewReader(""))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool { return rep.count() == 1 }, 5*time.Second, 10*time.Millisecond)

	r, err := client.Get(srv.URL + "/ready")
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, r.StatusCode)

	st, err := client.Get(srv.URL + "/api/v1/status")
	require.NoError(t, err)
	defer st.Body.Close()

	var report orchestrator.BootstrapReport
	require.NoError(t, json.NewDecoder(st.Body).Decode(&report))
	assert.Equal(t, sequencer.StateFailed, report.Result.State)
	assert.Equal(t, "unsupported", report.Result.Outcome)
	assert.Equal(t, orchestrator.StatusOK, report.Deliveries["memory"].Status)

	_, startCalls := sim.Calls()
	assert.Zero(t, startCalls)
}
