package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

// ErrEntryNotFound is returned when a required client entry is missing from
// the build manifest.
var ErrEntryNotFound = errors.New("client entry not found in manifest")

// manifestChunk is one record of a Vite build manifest.
type manifestChunk struct {
	File    string   `json:"file"`
	Name    string   `json:"name"`
	Src     string   `json:"src"`
	IsEntry bool     `json:"isEntry"`
	CSS     []string `json:"css"`
	Imports []string `json:"imports"`
}

// Manifest maps client entry names to bundle assets. It is built once from
// the manifest file and is read-only afterwards.
type Manifest struct {
	entries map[string]ClientEntry
}

// LoadManifest reads a Vite-style manifest.json. base is the public URL
// prefix of the build output, "/" when empty.
func LoadManifest(path, base string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return ParseManifest(data, base)
}

// ParseManifest builds a Manifest from manifest JSON.
//
// Every chunk is addressable by its manifest key. Entry chunks are also
// addressable by their name; when two entries share a name the one whose
// key sorts first wins. An entry's stylesheets are those of its static
// imports, depth first, followed by its own, without duplicates.
func ParseManifest(data []byte, base string) (*Manifest, error) {
	var chunks map[string]manifestChunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	keys := make([]string, 0, len(chunks))
	for k := range chunks {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	m := &Manifest{entries: make(map[string]ClientEntry, len(chunks)*2)}
	for _, key := range keys {
		chunk := chunks[key]
		if chunk.File == "" {
			continue
		}
		entry := ClientEntry{
			Src: assetURL(base, chunk.File),
			CSS: collectCSS(chunks, key, base),
		}
		m.entries[key] = entry
	}
	for _, key := range keys {
		chunk := chunks[key]
		if !chunk.IsEntry || chunk.Name == "" || chunk.File == "" {
			continue
		}
		if _, taken := m.entries[chunk.Name]; !taken {
			m.entries[chunk.Name] = m.entries[key]
		}
	}

	return m, nil
}

// Resolve returns the assets for an entry name or manifest key.
func (m *Manifest) Resolve(name string) (ClientEntry, bool) {
	if m == nil {
		return ClientEntry{}, false
	}
	e, ok := m.entries[name]
	if !ok {
		return ClientEntry{}, false
	}
	css := make([]string, len(e.CSS))
	copy(css, e.CSS)
	return ClientEntry{Src: e.Src, CSS: css}, true
}

// Require resolves name or returns ErrEntryNotFound.
func (m *Manifest) Require(name string) (ClientEntry, error) {
	e, ok := m.Resolve(name)
	if !ok {
		return ClientEntry{}, fmt.Errorf("%q: %w", name, ErrEntryNotFound)
	}
	return e, nil
}

func collectCSS(chunks map[string]manifestChunk, root, base string) []string {
	var out []string
	seen := map[string]bool{}
	visited := map[string]bool{}

	var walk func(key string)
	walk = func(key string) {
		if visited[key] {
			return
		}
		visited[key] = true
		chunk, ok := chunks[key]
		if !ok {
			return
		}
		for _, imp := range chunk.Imports {
			walk(imp)
		}
		for _, css := range chunk.CSS {
			url := assetURL(base, css)
			if !seen[url] {
				seen[url] = true
				out = append(out, url)
			}
		}
	}
	walk(root)

	return out
}

func assetURL(base, file string) string {
	if base == "" {
		base = "/"
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(file, "/")
}
