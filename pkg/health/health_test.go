package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alwaysPass() CheckFunc {
	return func(_ context.Context) error { return nil }
}

func alwaysFail(msg string) CheckFunc {
	return func(_ context.Context) error { return errors.New(msg) }
}

func decodeReport(t *testing.T, w *httptest.ResponseRecorder) probeReport {
	t.Helper()
	var report probeReport
	require.NoError(t, json.NewDecoder(w.Body).Decode(&report))
	return report
}

func TestLiveEndpoint_AllPassing(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, alwaysPass())
	h.AddLivenessCheck("gc", time.Second, alwaysPass())

	w := httptest.NewRecorder()
	h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "ok", decodeReport(t, w).Status)
}

func TestLiveEndpoint_FailingProbe(t *testing.T) {
	h := New()
	h.AddLivenessCheck("db", time.Second, alwaysFail("connection refused"))

	// Probes start healthy; drive past the failure threshold of 3.
	ctx := t.Context()
	h.liveProbes[0].exec(ctx)
	h.liveProbes[0].exec(ctx)
	h.liveProbes[0].exec(ctx)

	w := httptest.NewRecorder()
	h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	report := decodeReport(t, w)
	assert.Equal(t, "unhealthy", report.Status)
	assert.Equal(t, "connection refused", report.Checks["db"])
}

func TestLiveEndpoint_FailureBelowThreshold(t *testing.T) {
	h := New()
	h.AddLivenessCheck("flaky", time.Second, alwaysFail("temporary"))

	// Two failures do not cross the threshold of three.
	h.liveProbes[0].exec(t.Context())
	h.liveProbes[0].exec(t.Context())

	w := httptest.NewRecorder()
	h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadyEndpoint_ReadyAndPassing(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, alwaysPass())
	h.SetReady(true)

	w := httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeReport(t, w).Status)
}

func TestReadyEndpoint_NotReadyByDefault(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, alwaysPass())

	w := httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	report := decodeReport(t, w)
	assert.Equal(t, "unhealthy", report.Status)
	assert.Contains(t, report.Checks, "_readiness")
}

func TestReadyEndpoint_GateClosesAgain(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, alwaysPass())
	h.SetReady(true)

	w := httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	h.SetReady(false)

	w = httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReadyEndpoint_OnlyFailingProbeReported(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, alwaysPass())
	h.AddReadinessCheck("cache", time.Second, alwaysFail("cache miss"))
	h.SetReady(true)

	ctx := t.Context()
	h.readyProbes[1].exec(ctx)
	h.readyProbes[1].exec(ctx)
	h.readyProbes[1].exec(ctx)

	w := httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	report := decodeReport(t, w)
	assert.Contains(t, report.Checks, "cache")
	assert.NotContains(t, report.Checks, "postgres")
}

func TestIsReady(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, alwaysPass())

	assert.False(t, h.IsReady(), "not ready before SetReady")

	h.SetReady(true)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestStopIsIdempotent(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, alwaysPass())

	h.Start(t.Context(), 100*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	h.Stop()
	h.Stop()
}

func TestEndpoints_NoProbesRegistered(t *testing.T) {
	h := New()

	w := httptest.NewRecorder()
	h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeReport(t, w).Status)

	h.SetReady(true)
	w = httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProbeRecovery(t *testing.T) {
	// After crossing the failure threshold, a single passing run is enough
	// to recover (passAfter is 1).
	failing := true
	h := New()
	h.AddLivenessCheck("flaky", time.Second, func(_ context.Context) error {
		if failing {
			return errors.New("down")
		}
		return nil
	})
	p := h.liveProbes[0]
	ctx := t.Context()

	p.exec(ctx)
	p.exec(ctx)
	p.exec(ctx)
	assert.False(t, p.passing())

	failing = false
	p.exec(ctx)
	assert.True(t, p.passing())
}

func TestProbeLastError(t *testing.T) {
	h := New()
	h.AddLivenessCheck("db", time.Second, alwaysFail("timeout"))
	p := h.liveProbes[0]

	assert.Nil(t, p.err(), "no error before the first run")

	p.exec(t.Context())
	assert.EqualError(t, p.err(), "timeout")
}

func TestConcurrentAccess(t *testing.T) {
	// exec() runs on a ticker while handlers read state from many goroutines.
	h := New()
	h.AddLivenessCheck("concurrent", time.Second, alwaysFail("err"))
	h.AddReadinessCheck("concurrent", time.Second, alwaysPass())
	h.SetReady(true)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	h.Start(ctx, 10*time.Millisecond)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				h.IsReady()

				w := httptest.NewRecorder()
				h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

				w = httptest.NewRecorder()
				h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			}
		}()
	}
	wg.Wait()
	h.Stop()
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(t.Context()))

	err := GoroutineCountCheck(0)(t.Context())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}

func TestGCMaxPauseCheck(t *testing.T) {
	assert.NoError(t, GCMaxPauseCheck(time.Hour)(t.Context()))
}
