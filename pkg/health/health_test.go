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

// --- Mock implementations ---

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

// --- Helpers ---

func pass(context.Context) error { return nil }

func fail(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func get(t *testing.T, handler http.HandlerFunc) (int, statusResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))

	var body statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	return w.Code, body
}

func runN(h *Health, kind Kind, n int) {
	for range n {
		for _, p := range h.probes[kind] {
			p.run(context.Background())
		}
	}
}

// --- Tests ---

func TestLiveEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		check      CheckFunc
		runs       int
		wantStatus int
		wantChecks map[string]string
	}{
		{name: "no runs yet", check: fail("db down"), runs: 0, wantStatus: http.StatusOK},
		{name: "passing", check: pass, runs: 3, wantStatus: http.StatusOK},
		{name: "below failure threshold", check: fail("db down"), runs: 2, wantStatus: http.StatusOK},
		{
			name:       "at failure threshold",
			check:      fail("db down"),
			runs:       3,
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"postgres": "db down"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			h.Add(Liveness, "postgres", tt.check)
			runN(h, Liveness, tt.runs)

			code, body := get(t, h.LiveEndpoint)
			assert.Equal(t, tt.wantStatus, code)
			assert.Equal(t, tt.wantChecks, body.Checks)
		})
	}
}

func TestReadyEndpoint_RequiresSwitch(t *testing.T) {
	h := New()
	h.Add(Readiness, "postgres", pass)

	code, body := get(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body.Checks, "server")
	assert.False(t, h.IsReady())

	h.SetReady(true)
	code, body = get(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestReadyEndpoint_OneFailingProbe(t *testing.T) {
	h := New()
	h.Add(Readiness, "postgres", pass)
	h.Add(Readiness, "kafka", fail("no route to host"), WithThresholds(1, 1))
	h.SetReady(true)
	runN(h, Readiness, 1)

	code, body := get(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, map[string]string{"kafka": "no route to host"}, body.Checks)
}

func TestProbeRecovers(t *testing.T) {
	failing := true
	h := New()
	h.Add(Liveness, "flaky", func(context.Context) error {
		if failing {
			return errors.New("down")
		}
		return nil
	}, WithThresholds(2, 2))
	p := h.probes[Liveness][0]

	runN(h, Liveness, 2)
	assert.Equal(t, "down", p.state())

	failing = false
	runN(h, Liveness, 1)
	assert.Equal(t, "down", p.state(), "one success is below the recovery threshold")
	runN(h, Liveness, 1)
	assert.Empty(t, p.state())
}

func TestProbeTimeout(t *testing.T) {
	h := New()
	h.Add(Readiness, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, WithTimeout(5*time.Millisecond), WithThresholds(1, 1))
	runN(h, Readiness, 1)

	assert.Equal(t, context.DeadlineExceeded.Error(), h.probes[Readiness][0].state())
}

func TestStartAndStop(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	h := New()
	h.Add(Liveness, "counter", func(context.Context) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	})

	h.Start(context.Background(), 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 2
	}, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop()
}

func TestConcurrentAccess(t *testing.T) {
	h := New()
	h.Add(Liveness, "live", fail("err"))
	h.Add(Readiness, "ready", pass)
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, time.Millisecond)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h.IsReady()
				h.LiveEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/livez", nil))
				h.ReadyEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
			}
		}()
	}
	wg.Wait()
	h.Stop()
}

func TestPingCheck(t *testing.T) {
	assert.NoError(t, PingCheck(pinger{})(context.Background()))

	err := PingCheck(pinger{err: errors.New("connection refused")})(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestBrokerCheck_NoBrokers(t *testing.T) {
	require.Error(t, BrokerCheck(nil)(context.Background()))
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))
	assert.ErrorContains(t, GoroutineCountCheck(0)(context.Background()), "exceeds threshold")
}
