// Package locale decides which locale variant of a page a request should be
// served in.
//
// The Registry holds the process-wide set of supported locale codes and the
// default locale. It is built once from configuration and never mutated, so
// it can be shared by every request without locking. The Resolver uses it to
// classify request paths and to pick a locale from the path, the locale
// cookie, or the Accept-Language header.
package locale

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// ErrNoLocales is returned when the configured locale set is empty.
var ErrNoLocales = errors.New("no supported locales configured")

// Registry is the immutable set of supported locales.
type Registry struct {
	codes []string
	index map[string]string // lowercased code -> configured spelling
	def   string
}

// NewRegistry normalizes the configured codes and default locale.
//
// Codes are trimmed, empty and duplicate entries (compared case-insensitively)
// are dropped, and every remaining code must parse as a BCP 47 tag. When def
// is not one of the supported codes the first supported code becomes the
// default.
func NewRegistry(codes []string, def string) (*Registry, error) {
	r := &Registry{
		codes: make([]string, 0, len(codes)),
		index: make(map[string]string, len(codes)),
	}

	for _, raw := range codes {
		code := strings.TrimSpace(raw)
		if code == "" {
			continue
		}
		key := strings.ToLower(code)
		if _, dup := r.index[key]; dup {
			continue
		}
		if _, err := language.Parse(code); err != nil {
			return nil, fmt.Errorf("invalid locale code %q: %w", code, err)
		}
		r.index[key] = code
		r.codes = append(r.codes, code)
	}

	if len(r.codes) == 0 {
		return nil, ErrNoLocales
	}

	if configured, ok := r.Lookup(def); ok {
		r.def = configured
	} else {
		r.def = r.codes[0]
	}

	return r, nil
}

// ParseList splits a comma-separated list of locale codes as found in
// environment variables, dropping blank entries.
func ParseList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Supported returns a copy of the supported codes in configuration order.
func (r *Registry) Supported() []string {
	out := make([]string, len(r.codes))
	copy(out, r.codes)
	return out
}

// Default returns the default locale.
func (r *Registry) Default() string {
	return r.def
}

// Lookup matches code case-insensitively and returns the configured spelling.
func (r *Registry) Lookup(code string) (string, bool) {
	if code == "" {
		return "", false
	}
	configured, ok := r.index[strings.ToLower(code)]
	return configured, ok
}

// IsSupported reports whether code is a supported locale.
func (r *Registry) IsSupported(code string) bool {
	_, ok := r.Lookup(code)
	return ok
}
