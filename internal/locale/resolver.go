package locale

import (
	"path"
	"strings"
)

// PathKind classifies a request path.
type PathKind int

const (
	KindPage PathKind = iota
	KindAsset
	KindAPI
	KindBypass
)

// String returns the string representation of the path kind
func (k PathKind) String() string {
	switch k {
	case KindPage:
		return "page"
	case KindAsset:
		return "asset"
	case KindAPI:
		return "api"
	case KindBypass:
		return "bypass"
	default:
		return "unknown"
	}
}

// Route is the result of classifying a request path.
type Route struct {
	Kind PathKind
	// PathLocale is the supported locale found in the first segment, or "".
	PathLocale string
	Segments   []string
}

// Action is what the request boundary should do with a request.
type Action int

const (
	// ActionPassthrough marks assets, API calls, and bypassed prefixes. They
	// are handed on untouched and never get a locale.
	ActionPassthrough Action = iota
	ActionProceed
	ActionRedirect
)

// String returns the string representation of the action
func (a Action) String() string {
	switch a {
	case ActionPassthrough:
		return "passthrough"
	case ActionProceed:
		return "proceed"
	case ActionRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decision is the outcome of locale resolution for one request.
type Decision struct {
	Route        Route
	Locale       string
	Action       Action
	RedirectPath string
	// CookieLocale is set only when the locale cookie must change. It is
	// empty when the inbound cookie already holds the resolved locale.
	CookieLocale string
}

// ResolverOptions configures path classification.
type ResolverOptions struct {
	APIPrefixes    []string
	BypassPrefixes []string
}

// Resolver classifies request paths and resolves their locale. It holds no
// mutable state and is safe for concurrent use.
type Resolver struct {
	registry       *Registry
	apiPrefixes    []string
	bypassPrefixes []string
}

// NewResolver creates a resolver backed by registry.
func NewResolver(registry *Registry, opts ResolverOptions) *Resolver {
	return &Resolver{
		registry:       registry,
		apiPrefixes:    normalizePrefixes(opts.APIPrefixes),
		bypassPrefixes: normalizePrefixes(opts.BypassPrefixes),
	}
}

// Classify computes the route for a request path. It never looks at cookies
// or headers.
func (r *Resolver) Classify(p string) Route {
	if p == "" {
		p = "/"
	}

	switch {
	case hasAnyPrefix(p, r.apiPrefixes):
		return Route{Kind: KindAPI}
	case hasAnyPrefix(p, r.bypassPrefixes):
		return Route{Kind: KindBypass}
	case hasFileExtension(p):
		return Route{Kind: KindAsset}
	}

	segments := splitSegments(p)
	route := Route{Kind: KindPage, Segments: segments}
	if len(segments) > 0 {
		if code, ok := r.registry.Lookup(segments[0]); ok {
			route.PathLocale = code
		}
	}
	return route
}

// Resolve decides the locale for a request from its path, the inbound locale
// cookie value ("" when absent), and the Accept-Language header.
//
// A locale-prefixed path always proceeds. Otherwise the locale comes from a
// supported cookie value, then the best Accept-Language match, then the
// default, and the request is redirected to the locale-prefixed path.
func (r *Resolver) Resolve(p, cookie, acceptLanguage string) Decision {
	route := r.Classify(p)
	if route.Kind != KindPage {
		return Decision{Route: route, Action: ActionPassthrough}
	}

	if route.PathLocale != "" {
		return Decision{
			Route:        route,
			Locale:       route.PathLocale,
			Action:       ActionProceed,
			CookieLocale: cookieUpdate(cookie, route.PathLocale),
		}
	}

	target := r.pick(cookie, acceptLanguage)
	return Decision{
		Route:        route,
		Locale:       target,
		Action:       ActionRedirect,
		RedirectPath: RedirectPath(target, p),
		CookieLocale: cookieUpdate(cookie, target),
	}
}

func (r *Resolver) pick(cookie, acceptLanguage string) string {
	if code, ok := r.registry.Lookup(strings.TrimSpace(cookie)); ok {
		return code
	}
	if code, ok := r.registry.MatchAcceptLanguage(acceptLanguage); ok {
		return code
	}
	return r.registry.Default()
}

// RedirectPath prefixes p with locale. Leading slashes of p are dropped so
// "/" becomes "/en" and "//help" becomes "/en/help".
func RedirectPath(locale, p string) string {
	rest := strings.TrimLeft(p, "/")
	if rest == "" {
		return "/" + locale
	}
	return "/" + locale + "/" + rest
}

func cookieUpdate(current, resolved string) string {
	if current == resolved {
		return ""
	}
	return resolved
}

func normalizePrefixes(prefixes []string) []string {
	out := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		if len(p) > 1 {
			p = strings.TrimRight(p, "/")
		}
		out = append(out, p)
	}
	return out
}

// hasAnyPrefix matches whole path segments: "/api" matches "/api" and
// "/api/x" but not "/apiary".
func hasAnyPrefix(p string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix == "/" || p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}
	return false
}

func hasFileExtension(p string) bool {
	last := path.Base(p)
	if last == "/" || last == "." {
		return false
	}
	ext := path.Ext(last)
	return len(ext) > 1 && len(ext) < len(last)
}

func splitSegments(p string) []string {
	parts := strings.Split(p, "/")
	segments := make([]string, 0, len(parts))
	for _, s := range parts {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}
