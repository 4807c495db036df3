package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/modelrelay/modelrelay/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListProvidersHandler(t *testing.T) {
	deps := newTestDeps(t, "http://unused")
	handler := ListProvidersHandler(deps)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/providers", nil)
	rec := httptest.NewRecorder()

	handler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp utils.SuccessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)

	var statuses []ProviderStatus
	require.NoError(t, json.Unmarshal(raw, &statuses))

	require.Len(t, statuses, 1)
	assert.Equal(t, "primary", statuses[0].ID)
	assert.True(t, statuses[0].Configured)
	assert.True(t, statuses[0].Usable)
	assert.Equal(t, 1000, statuses[0].RemainingToday)
	assert.Contains(t, statuses[0].Capabilities, "chat")
}

func TestHealthCheck(t *testing.T) {
	deps := newTestDeps(t, "http://unused")

	rec := httptest.NewRecorder()
	HealthCheck(deps)(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadinessCheck(t *testing.T) {
	deps := newTestDeps(t, "http://unused")

	rec := httptest.NewRecorder()
	ReadinessCheck(deps)(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp["status"])

	checks := resp["checks"].(map[string]interface{})
	assert.Equal(t, "disabled", checks["database"])
	assert.Equal(t, "configured", checks["providers"])
}

func TestQuotaSnapshotHandler(t *testing.T) {
	deps := newTestDeps(t, "http://unused")
	deps.QuotaTracker.Record("primary")

	rec := httptest.NewRecorder()
	QuotaSnapshotHandler(deps)(rec, httptest.NewRequest(http.MethodGet, "/api/v1/usage/quota", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp utils.SuccessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	snap := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(1), snap["primary"])
}

func TestUsageSummaryHandler_NoDatabase(t *testing.T) {
	deps := newTestDeps(t, "http://unused")

	rec := httptest.NewRecorder()
	UsageSummaryHandler(deps)(rec, httptest.NewRequest(http.MethodGet, "/api/v1/usage/summary", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
