package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/conneroisu/ssrgate/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticCheck(name string, critical bool, status HealthStatus) HealthChecker {
	return NewHealthCheckFunc(name, critical, func(context.Context) HealthCheck {
		return HealthCheck{Status: status}
	})
}

func TestHealthMonitorStatus(t *testing.T) {
	tests := []struct {
		name     string
		checks   []HealthChecker
		expected HealthStatus
	}{
		{
			name:     "no checks",
			expected: HealthStatusHealthy,
		},
		{
			name: "all healthy",
			checks: []HealthChecker{
				staticCheck("a", true, HealthStatusHealthy),
				staticCheck("b", false, HealthStatusHealthy),
			},
			expected: HealthStatusHealthy,
		},
		{
			name: "non critical failure degrades",
			checks: []HealthChecker{
				staticCheck("a", true, HealthStatusHealthy),
				staticCheck("b", false, HealthStatusUnhealthy),
			},
			expected: HealthStatusDegraded,
		},
		{
			name: "critical failure",
			checks: []HealthChecker{
				staticCheck("a", true, HealthStatusUnhealthy),
				staticCheck("b", false, HealthStatusDegraded),
			},
			expected: HealthStatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hm := NewHealthMonitor(logging.Discard(), "v1", "abc")
			for _, c := range tt.checks {
				hm.RegisterCheck(c)
			}
			resp := hm.Check(context.Background())
			assert.Equal(t, tt.expected, resp.Status)
			assert.Len(t, resp.Checks, len(tt.checks))
			assert.Equal(t, "v1", resp.Version)
		})
	}
}

func TestHealthHTTPHandler(t *testing.T) {
	dir := t.TempDir()
	shell := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(shell, []byte("<html></html>"), 0o644))

	hm := NewHealthMonitor(logging.Discard(), "v1", "abc")
	hm.RegisterCheck(FileHealthChecker("shell", shell, true))
	hm.RegisterCheck(GoroutineHealthChecker())

	rec := httptest.NewRecorder()
	hm.HTTPHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, HealthStatusHealthy, body.Status)
	assert.Equal(t, "abc", body.Commit)
	assert.True(t, body.Checks["shell"].Critical)

	require.NoError(t, os.Remove(shell))
	rec = httptest.NewRecorder()
	hm.HTTPHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
