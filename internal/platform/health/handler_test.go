package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readiness(t *testing.T, h *Handler) (int, ReadinessResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.HandleReadiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	var body ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHandleReadiness_AllChecksHealthy(t *testing.T) {
	h := New("test")
	h.RegisterCheck("store", func() error { return nil })

	code, body := readiness(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", body.Status)
	assert.Equal(t, "up", body.Checks["store"])
}

func TestHandleReadiness_FailingCheckReturns503(t *testing.T) {
	h := New("test")
	h.RegisterCheck("store", func() error { return errors.New("connection refused") })

	code, body := readiness(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not_ready", body.Status)
	assert.Contains(t, body.Checks["store"], "down")
}

func TestHandleReadiness_InfoCheckNeverFailsProbe(t *testing.T) {
	h := New("test")
	h.RegisterInfoCheck("ledger", func() error { return errors.New("rpc unreachable") })

	code, body := readiness(t, h)
	assert.Equal(t, http.StatusOK, code, "a degraded ledger must not take the service out of rotation")
	assert.Equal(t, "ready", body.Status)
	assert.Contains(t, body.Checks["ledger"], "degraded")
}
