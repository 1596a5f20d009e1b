package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/conneroisu/ssrgate/internal/config"
	"github.com/conneroisu/ssrgate/internal/locale"
	"github.com/conneroisu/ssrgate/internal/logging"
	"github.com/conneroisu/ssrgate/internal/testutils"
	"github.com/conneroisu/ssrgate/internal/version"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func siteConfig(t *testing.T) *config.Config {
	t.Helper()
	return testutils.CreateTestConfig(t, testutils.CreateTempSite(t))
}

func TestBuildServerServesSite(t *testing.T) {
	cfg := siteConfig(t)
	srv, err := buildServer(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	defer func() { require.NoError(t, srv.Shutdown(context.Background())) }()

	handler := srv.Handler()

	t.Run("redirect", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/help", nil)
		req.Header.Set("Accept-Language", "en-GB,en;q=0.8")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
		assert.Equal(t, "/en/help", rec.Header().Get("Location"))
	})

	t.Run("page", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/en/help", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, `<html lang="en">`)
		assert.Contains(t, body, "<title>Help | Docs</title>")
		assert.Contains(t, body, `<h1 id="help">Help</h1>`)
		assert.Contains(t, body, `<script type="module" src="/assets/main-abc.js" crossorigin></script>`)
		assert.NotContains(t, body, "/src/main.tsx")
		assert.NotEmpty(t, rec.Header().Get("ETag"))
	})

	t.Run("fallback locale", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/en", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Привет")
	})

	t.Run("missing page", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ru/nowhere", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("static asset", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/main-abc.js", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "export {}", rec.Body.String())
	})

	t.Run("health", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"shell"`)
	})
}

func TestBuildServerRejectsInvalidLocales(t *testing.T) {
	cfg := siteConfig(t)
	cfg.Locales.Supported = []string{"not a locale!"}

	_, err := buildServer(context.Background(), cfg, logging.Discard())
	assert.Error(t, err)
}

func TestBuildServerMissingShell(t *testing.T) {
	cfg := siteConfig(t)
	cfg.Document.Shell = filepath.Join(t.TempDir(), "missing.html")

	_, err := buildServer(context.Background(), cfg, logging.Discard())
	assert.Error(t, err)
}

func TestBuildServerWatchesShellInDevelopment(t *testing.T) {
	cfg := siteConfig(t)
	cfg.Server.Environment = "development"
	cfg.Development.WatchShell = true

	srv, err := buildServer(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	assert.NoError(t, srv.Shutdown(context.Background()))
}

func TestFallbackLocale(t *testing.T) {
	registry, err := locale.NewRegistry([]string{"ru", "en"}, "de")
	require.NoError(t, err)

	tests := []struct {
		configured string
		want       string
	}{
		{configured: "", want: "ru"},
		{configured: "EN", want: "en"},
		{configured: "en", want: "en"},
		{configured: "de", want: "ru"},
	}

	for _, tt := range tests {
		t.Run(tt.configured, func(t *testing.T) {
			got := fallbackLocale(context.Background(), registry, tt.configured, logging.Discard())
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildServerFallsBackToNormalizedDefault(t *testing.T) {
	cfg := siteConfig(t)
	cfg.Locales.Default = "RU"
	cfg.Pages.FallbackLocale = "RU"

	srv, err := buildServer(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	defer func() { require.NoError(t, srv.Shutdown(context.Background())) }()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/en", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Привет")
}

func TestWriteConfig(t *testing.T) {
	cfg := siteConfig(t)

	var buf bytes.Buffer
	require.NoError(t, writeConfig(&buf, cfg, "yaml"))

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	locales, ok := decoded["locales"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"ru", "en"}, locales["supported"])
	assert.Equal(t, "ru", locales["default"])

	buf.Reset()
	require.NoError(t, writeConfig(&buf, cfg, "json"))
	assert.True(t, json.Valid(buf.Bytes()))

	assert.Error(t, writeConfig(&buf, cfg, "toml"))
}

func TestProbeHealth(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
		output  string
	}{
		{
			name:   "healthy",
			status: http.StatusOK,
			body:   `{"status":"healthy","version":"1.2.3","uptime":"1m","checks":{"shell":{"name":"shell","status":"healthy"}}}`,
			output: "healthy (version 1.2.3, uptime 1m)",
		},
		{
			name:   "degraded",
			status: http.StatusOK,
			body:   `{"status":"degraded","checks":{"content":{"name":"content","status":"unhealthy","message":"missing"}}}`,
			output: "content: unhealthy missing",
		},
		{
			name:    "unhealthy",
			status:  http.StatusServiceUnavailable,
			body:    `{"status":"unhealthy","checks":{}}`,
			wantErr: true,
		},
		{
			name:    "garbage",
			status:  http.StatusOK,
			body:    `not json`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/healthz", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			var out bytes.Buffer
			err := probeHealth(&out, ts.Client(), ts.URL+"/healthz", false)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out.String(), tt.output)
		})
	}
}

func TestProbeHealthUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	err := probeHealth(&bytes.Buffer{}, http.DefaultClient, url+"/healthz", false)
	assert.Error(t, err)
}

func TestValidatePort(t *testing.T) {
	assert.NoError(t, ValidatePort("3000"))
	assert.NoError(t, ValidatePort("65535"))
	assert.Error(t, ValidatePort("0"))
	assert.Error(t, ValidatePort("70000"))
	assert.Error(t, ValidatePort("http"))
}

func TestAddFlagValidation(t *testing.T) {
	c := &cobra.Command{Use: "x", RunE: func(*cobra.Command, []string) error { return nil }}
	c.Flags().Int("port", 3000, "")
	AddFlagValidation(c, "port", ValidatePort)
	AddFlagValidation(c, "missing", ValidatePort)

	require.Error(t, c.Flags().Set("port", "99999"))
	require.NoError(t, c.Flags().Set("port", "8080"))
	port, err := c.Flags().GetInt("port")
	require.NoError(t, err)
	assert.Equal(t, 8080, port)
}

func TestVersionJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, outputVersionJSON(&buf))

	var info version.BuildInfo
	require.NoError(t, json.Unmarshal(buf.Bytes(), &info))
	assert.Equal(t, version.GetVersion(), info.Version)
	assert.NotEmpty(t, info.GoVersion)
}
