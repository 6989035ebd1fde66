package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runProbe(p *probe, times int) {
	for i := 0; i < times; i++ {
		p.run(context.Background())
	}
}

func TestProbe_FailsOnlyAfterThreshold(t *testing.T) {
	p := &probe{
		name:    "db",
		timeout: time.Second,
		check:   func(context.Context) error { return errors.New("down") },
	}

	runProbe(p, failAfter-1)
	assert.NoError(t, p.failure(), "below the threshold the probe still passes")

	runProbe(p, 1)
	assert.Error(t, p.failure())
}

func TestProbe_RecoversOnFirstSuccess(t *testing.T) {
	var err error
	p := &probe{
		name:    "db",
		timeout: time.Second,
		check:   func(context.Context) error { return err },
	}

	err = errors.New("down")
	runProbe(p, failAfter)
	require.Error(t, p.failure())

	err = nil
	runProbe(p, 1)
	assert.NoError(t, p.failure())
}

func TestIsReady(t *testing.T) {
	h := New()
	assert.False(t, h.IsReady(), "not ready before SetReady")

	h.SetReady(true)
	assert.True(t, h.IsReady())

	h.AddReadinessCheck("db", time.Second, func(context.Context) error { return errors.New("down") })
	assert.True(t, h.IsReady(), "a probe that has not failed yet still passes")

	h.mu.Lock()
	p := h.readiness[0]
	h.mu.Unlock()
	runProbe(p, failAfter)
	assert.False(t, h.IsReady())

	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestEndpoints(t *testing.T) {
	h := New()
	h.SetReady(true)
	h.AddLivenessCheck("goroutines", time.Second, GoroutineCountCheck(1_000_000))

	rec := httptest.NewRecorder()
	h.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	h.SetReady(false)
	rec = httptest.NewRecorder()
	h.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "not ready")
}

func TestStartRunsProbes(t *testing.T) {
	h := New()
	h.SetReady(true)

	calls := make(chan struct{}, 16)
	h.AddReadinessCheck("dep", time.Second, func(context.Context) error {
		select {
		case calls <- struct{}{}:
		default:
		}
		return nil
	})

	h.Start(context.Background(), 10*time.Millisecond)
	defer h.Stop()

	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("probe never ran")
	}
	assert.True(t, h.IsReady())
}
