// Package testutils provides fixtures shared by tests across packages.
package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/conneroisu/ssrgate/internal/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

// DevShell is a client build shell still pointing at the development entry.
const DevShell = `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"></head>` +
	`<body><div id="root"><!--app-html--></div><!--app-data-->` +
	`<script type="module" src="/src/main.tsx"></script></body></html>`

// Site is the on-disk layout created by CreateTempSite.
type Site struct {
	Dir        string
	Shell      string
	Manifest   string
	StaticDir  string
	ContentDir string
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// CreateTempSite lays out a client build and a content tree with
// en/help.md and ru/index.md.
func CreateTempSite(t *testing.T) Site {
	t.Helper()
	dir := t.TempDir()

	site := Site{
		Dir:        dir,
		Shell:      filepath.Join(dir, "dist", "client", "index.html"),
		Manifest:   filepath.Join(dir, "dist", "manifest.json"),
		StaticDir:  filepath.Join(dir, "dist", "client"),
		ContentDir: filepath.Join(dir, "content"),
	}

	WriteFile(t, site.Shell, DevShell)
	WriteFile(t, filepath.Join(site.StaticDir, "assets", "main-abc.js"), "export {}")
	WriteFile(t, site.Manifest,
		`{"src/main.tsx":{"file":"assets/main-abc.js","name":"main","isEntry":true}}`)
	WriteFile(t, filepath.Join(site.ContentDir, "en", "help.md"), "---\ntitle: Help\n---\n# Help\n\nAsk us.\n")
	WriteFile(t, filepath.Join(site.ContentDir, "ru", "index.md"), "---\ntitle: Главная\n---\nПривет\n")

	return site
}

// CreateTestConfig loads a validated configuration serving site with the
// locales ru (default) and en on an ephemeral port.
func CreateTestConfig(t *testing.T, site Site) *config.Config {
	t.Helper()

	v := viper.New()
	v.Set("server.host", "127.0.0.1")
	v.Set("server.port", 0)
	v.Set("locales.supported", "ru,en")
	v.Set("locales.default", "ru")
	v.Set("document.shell", site.Shell)
	v.Set("document.manifest", site.Manifest)
	v.Set("document.static_dir", site.StaticDir)
	v.Set("pages.content_dir", site.ContentDir)
	v.Set("pages.site_name", "Docs")

	cfg, err := config.LoadFrom(v)
	require.NoError(t, err)
	return cfg
}
