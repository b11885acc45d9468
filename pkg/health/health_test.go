package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probe(t *testing.T, fn http.HandlerFunc) (int, probeResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	fn(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var resp probeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestReadyEndpoint_GatedOnSetReady(t *testing.T) {
	svc := New()

	code, resp := probe(t, svc.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unavailable", resp.Status)

	svc.SetReady(true)
	code, resp = probe(t, svc.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Status)

	// Draining flips it back.
	svc.SetReady(false)
	code, _ = probe(t, svc.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestLiveEndpoint_ReportsFailingCheck(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := New()
	svc.AddLivenessCheck("always-ok", time.Second, func(context.Context) error {
		return nil
	})
	svc.AddLivenessCheck("broken", time.Second, func(context.Context) error {
		return errors.New("disk on fire")
	})
	svc.Start(ctx, 10*time.Millisecond)
	defer svc.Stop()

	require.Eventually(t, func() bool {
		code, _ := probe(t, svc.LiveEndpoint)
		return code == http.StatusServiceUnavailable
	}, 2*time.Second, 10*time.Millisecond)

	_, resp := probe(t, svc.LiveEndpoint)
	assert.Equal(t, "unavailable", resp.Status)
	assert.Equal(t, "ok", resp.Checks["always-ok"])
	assert.Equal(t, "disk on fire", resp.Checks["broken"])
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))
	assert.Error(t, GoroutineCountCheck(0)(context.Background()))
}
