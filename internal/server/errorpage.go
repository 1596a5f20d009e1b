package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/conneroisu/ssrgate/internal/renderer"
)

// errorBody renders the fragment shown for a failed page request. Only the
// status text is shown; error details never reach the client.
func errorBody(status int) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<main class="error-page" data-status="%d"><h1>%d</h1><p>%s</p></main>`,
			status, status, templ.EscapeString(http.StatusText(status)))
		return err
	})
}

// standalonePage is used when the shell itself cannot be assembled.
func standalonePage(status int, lang string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w,
			`<!DOCTYPE html><html lang="%s"><head><meta charset="utf-8"><title>%s</title></head><body>`,
			templ.EscapeString(lang), templ.EscapeString(http.StatusText(status))); err != nil {
			return err
		}
		if err := errorBody(status).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</body></html>")
		return err
	})
}

// writeErrorPage responds with status using the application shell so error
// pages keep the site chrome.
func (s *Server) writeErrorPage(w http.ResponseWriter, r *http.Request, lang string, status int) {
	var body strings.Builder
	if err := errorBody(status).Render(r.Context(), &body); err != nil {
		s.logger.Error(r.Context(), err, "Rendering error page failed")
	}

	doc, err := s.engine.Assemble(s.shell.String(), &renderer.Result{
		HTML:        body.String(),
		Status:      status,
		EntryClient: s.cfg.Document.DefaultEntry,
		Head: &renderer.Head{
			HeadTags: "<title>" + templ.EscapeString(http.StatusText(status)) + "</title>",
		},
	}, s.resolveEntry())
	if err != nil {
		s.logger.Error(r.Context(), err, "Assembling error page failed")
		var page strings.Builder
		_ = standalonePage(status, lang).Render(r.Context(), &page)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		if r.Method != http.MethodHead {
			_, _ = io.WriteString(w, page.String())
		}
		return
	}

	s.writeDocument(w, r, doc, lang)
}
