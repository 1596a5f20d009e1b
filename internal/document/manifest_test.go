package document

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `{
  "_vendor-abc.js": {
    "file": "assets/vendor-abc.js",
    "css": ["assets/vendor-abc.css"]
  },
  "src/main.tsx": {
    "file": "assets/main-123.js",
    "name": "main",
    "src": "src/main.tsx",
    "isEntry": true,
    "imports": ["_vendor-abc.js"],
    "css": ["assets/main-123.css"]
  },
  "src/admin.tsx": {
    "file": "assets/admin-9.js",
    "name": "admin",
    "src": "src/admin.tsx",
    "isEntry": true,
    "imports": ["_vendor-abc.js", "src/main.tsx"]
  }
}`

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(sampleManifest), "/")
	require.NoError(t, err)

	main, ok := m.Resolve("main")
	require.True(t, ok)
	assert.Equal(t, "/assets/main-123.js", main.Src)
	assert.Equal(t, []string{"/assets/vendor-abc.css", "/assets/main-123.css"}, main.CSS)

	byKey, ok := m.Resolve("src/main.tsx")
	require.True(t, ok)
	assert.Equal(t, main, byKey)

	admin, ok := m.Resolve("admin")
	require.True(t, ok)
	assert.Equal(t, "/assets/admin-9.js", admin.Src)
	// shared imports contribute their stylesheets once
	assert.Equal(t, []string{"/assets/vendor-abc.css", "/assets/main-123.css"}, admin.CSS)

	_, ok = m.Resolve("missing")
	assert.False(t, ok)
}

func TestManifestBase(t *testing.T) {
	m, err := ParseManifest([]byte(sampleManifest), "/static/")
	require.NoError(t, err)

	main, err := m.Require("main")
	require.NoError(t, err)
	assert.Equal(t, "/static/assets/main-123.js", main.Src)
	assert.Equal(t, "/static/assets/main-123.css", main.CSS[1])
}

func TestManifestResolveReturnsCopy(t *testing.T) {
	m, err := ParseManifest([]byte(sampleManifest), "")
	require.NoError(t, err)

	first, _ := m.Resolve("main")
	first.CSS[0] = "changed"

	second, _ := m.Resolve("main")
	assert.Equal(t, "/assets/vendor-abc.css", second.CSS[0])
}

func TestManifestRequireMissing(t *testing.T) {
	m, err := ParseManifest([]byte(`{}`), "/")
	require.NoError(t, err)

	_, err = m.Require("main")
	assert.ErrorIs(t, err, ErrEntryNotFound)

	var nilManifest *Manifest
	_, ok := nilManifest.Resolve("main")
	assert.False(t, ok)
}

func TestManifestImportCycle(t *testing.T) {
	data := `{
  "a": {"file": "a.js", "name": "a", "isEntry": true, "imports": ["b"], "css": ["a.css"]},
  "b": {"file": "b.js", "imports": ["a"], "css": ["b.css"]}
}`
	m, err := ParseManifest([]byte(data), "/")
	require.NoError(t, err)

	a, ok := m.Resolve("a")
	require.True(t, ok)
	assert.Equal(t, []string{"/b.css", "/a.css"}, a.CSS)
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleManifest), 0o644))

	m, err := LoadManifest(path, "/")
	require.NoError(t, err)
	_, ok := m.Resolve("admin")
	assert.True(t, ok)

	_, err = LoadManifest(filepath.Join(dir, "nope.json"), "/")
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err = LoadManifest(path, "/")
	assert.Error(t, err)
}
