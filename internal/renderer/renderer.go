// Package renderer defines the contract between the request boundary and
// the page renderer, and provides a markdown-backed implementation.
//
// A Renderer turns a locale and route into a Result: an HTML fragment, head
// metadata, initial client data and a status. The request boundary never
// looks inside a Result beyond these fields; it patches them into the shell
// through the document engine.
package renderer

import (
	"context"
	"errors"
)

// ErrNotFound signals that no page exists for the requested route.
var ErrNotFound = errors.New("page not found")

// Request identifies the page to render.
type Request struct {
	Locale string
	// Segments are the path segments after the locale prefix.
	Segments []string
	// Path is the full request path, locale prefix included.
	Path string
}

// Head carries document metadata produced alongside the fragment.
type Head struct {
	HeadTags       string
	HTMLAttributes string
	BodyAttributes string
}

// Trace describes how a page was produced, for the outcome record.
type Trace struct {
	Slug      string
	Source    string
	ETag      string
	Blocks    int
	Fallbacks []string
}

// Result is the output of a render. It is owned by the renderer and treated
// as read-only by everything downstream.
type Result struct {
	HTML        string
	Status      int
	Headers     map[string]string
	InitialData any
	Head        *Head
	EntryClient string
	Trace       *Trace
}

// Renderer renders pages. Render may block on I/O and must honor ctx.
type Renderer interface {
	Render(ctx context.Context, req Request) (*Result, error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(ctx context.Context, req Request) (*Result, error)

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}
