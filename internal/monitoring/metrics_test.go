package monitoring

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/conneroisu/ssrgate/internal/outcome"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsEmit(t *testing.T) {
	m := NewMetrics(MetricsConfig{Namespace: "test"})
	ctx := context.Background()

	m.Emit(ctx, outcome.Record{Kind: outcome.KindSuccess, Status: 200, Locale: "en", DurationMs: 12.5})
	m.Emit(ctx, outcome.Record{Kind: outcome.KindSuccess, Status: 200, Locale: "en", DurationMs: 1, Fallbacks: []string{"ru"}})
	m.Emit(ctx, outcome.Record{Kind: outcome.KindMiss, Status: 404, Locale: "ru"})
	m.Emit(ctx, outcome.Record{Kind: outcome.KindError, Status: 500, Locale: "ru"})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("success", "2xx", "en")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("miss", "404", "ru")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("error", "5xx", "ru")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallbacks))
	assert.Equal(t, 3, testutil.CollectAndCount(m.duration))
}

func TestMetricsRedirects(t *testing.T) {
	m := NewMetrics(MetricsConfig{})
	m.RecordRedirect("ru")
	m.RecordRedirect("ru")
	m.RecordRedirect("en")

	expected := `
# HELP ssrgate_locale_redirects_total Canonicalizing locale redirects by target locale
# TYPE ssrgate_locale_redirects_total counter
ssrgate_locale_redirects_total{locale="en"} 1
ssrgate_locale_redirects_total{locale="ru"} 2
`
	require.NoError(t, testutil.CollectAndCompare(m.redirects, strings.NewReader(expected)))
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics(MetricsConfig{Namespace: "gate", Runtime: true})
	m.RecordRedirect("en")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `gate_locale_redirects_total{locale="en"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestStatusLabel(t *testing.T) {
	tests := map[int]string{200: "2xx", 0: "2xx", 307: "3xx", 404: "404", 410: "4xx", 500: "5xx", 503: "5xx"}
	for status, want := range tests {
		assert.Equal(t, want, statusLabel(status), "status %d", status)
	}
}
