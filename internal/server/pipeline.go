package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/conneroisu/ssrgate/internal/document"
	"github.com/conneroisu/ssrgate/internal/locale"
	"github.com/conneroisu/ssrgate/internal/middleware"
	"github.com/conneroisu/ssrgate/internal/outcome"
	"github.com/conneroisu/ssrgate/internal/renderer"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	if s.health != nil {
		mux.Handle("/healthz", s.health.HTTPHandler())
	} else {
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
		})
	}

	if s.metrics != nil && s.cfg.Metrics.Enabled {
		p := s.cfg.Metrics.Path
		if p == "" {
			p = "/metrics"
		}
		mux.Handle(p, s.metrics.Handler())
	}

	mux.HandleFunc("/", s.handleRequest)
	return mux
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	var cookie string
	if c, err := r.Cookie(s.cookieName); err == nil {
		cookie = c.Value
	}

	decision := s.resolver.Resolve(r.URL.Path, cookie, r.Header.Get("Accept-Language"))

	if decision.Action == locale.ActionPassthrough {
		s.passthrough(w, r, decision.Route)
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	switch decision.Action {
	case locale.ActionRedirect:
		s.redirect(w, r, decision)
	case locale.ActionProceed:
		s.servePage(w, r, decision)
	}
}

func (s *Server) passthrough(w http.ResponseWriter, r *http.Request, route locale.Route) {
	if route.Kind == locale.KindAPI {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "not found",
			"path":  r.URL.Path,
		})
		return
	}
	if s.static == nil {
		http.NotFound(w, r)
		return
	}
	s.static.ServeHTTP(w, r)
}

func (s *Server) redirect(w http.ResponseWriter, r *http.Request, d locale.Decision) {
	// The redirect always refreshes the cookie so the locale sticks even
	// when the browser drops it before following the Location.
	s.setLocaleCookie(w, d.Locale)

	h := w.Header()
	h.Set("Vary", "Cookie, Accept-Language")
	h.Set("Cache-Control", "private, no-cache")

	// Built from the escaped path so encoded reserved characters stay encoded.
	target := locale.RedirectPath(d.Locale, r.URL.EscapedPath())
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	if s.metrics != nil {
		s.metrics.RecordRedirect(d.Locale)
	}
	http.Redirect(w, r, target, s.redirectStatus)
}

func (s *Server) servePage(w http.ResponseWriter, r *http.Request, d locale.Decision) {
	segments := d.Route.Segments[1:]
	rec := outcome.Start(r.Context(), outcome.Fields{
		Route:     r.URL.Path,
		Slug:      strings.Join(segments, "/"),
		Locale:    d.Locale,
		RequestID: middleware.RequestIDFrom(r.Context()),
	}, s.sink)

	// Set once a response has been started; a later panic must not write a
	// second one.
	wrote := false
	defer func() {
		v := recover()
		if v == nil {
			return
		}
		if v == http.ErrAbortHandler {
			rec.Error(errors.New("handler aborted"))
			panic(v)
		}
		rec.Error(&outcome.PanicError{Value: v, Stack: debug.Stack()})
		if !wrote {
			s.writeErrorPage(w, r, d.Locale, http.StatusInternalServerError)
		}
	}()

	if d.CookieLocale != "" {
		s.setLocaleCookie(w, d.CookieLocale)
	}

	result, err := s.renderer.Render(r.Context(), renderer.Request{
		Locale:   d.Locale,
		Segments: segments,
		Path:     r.URL.Path,
	})
	switch {
	case errors.Is(err, renderer.ErrNotFound):
		wrote = true
		s.writeErrorPage(w, r, d.Locale, http.StatusNotFound)
		rec.Miss()
		return
	case err != nil:
		wrote = true
		s.writeErrorPage(w, r, d.Locale, http.StatusInternalServerError)
		rec.Error(err)
		return
	}

	doc, err := s.engine.Assemble(s.shell.String(), result, s.resolveEntry())
	if err != nil {
		wrote = true
		s.writeErrorPage(w, r, d.Locale, http.StatusInternalServerError)
		rec.Error(err)
		return
	}

	wrote = true
	s.writeDocument(w, r, doc, d.Locale)

	if doc.Status == http.StatusNotFound {
		rec.Miss()
		return
	}
	extra := outcome.Extra{Status: doc.Status}
	if t := result.Trace; t != nil {
		extra.Source = t.Source
		extra.ETag = t.ETag
		extra.Blocks = t.Blocks
		extra.Fallbacks = t.Fallbacks
	}
	rec.Success(extra)
}

func (s *Server) writeDocument(w http.ResponseWriter, r *http.Request, doc *document.Document, lang string) {
	h := w.Header()
	for k, v := range doc.Headers {
		h.Set(k, v)
	}
	if lang != "" {
		h.Set("Content-Language", lang)
	}
	w.WriteHeader(doc.Status)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write([]byte(doc.HTML)); err != nil {
		s.logger.Debug(r.Context(), "Writing response failed", "error", err, "path", r.URL.Path)
	}
}

func (s *Server) resolveEntry() document.EntryResolver {
	if s.manifest == nil {
		return nil
	}
	return s.manifest.Resolve
}

func (s *Server) setLocaleCookie(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   s.cookieMaxAge,
		SameSite: http.SameSiteLaxMode,
	})
}

// staticHandler serves files from dir. Directory listings are never served.
func staticHandler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		full := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
		info, err := os.Stat(full)
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
