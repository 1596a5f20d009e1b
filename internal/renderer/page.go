package renderer

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/conneroisu/ssrgate/internal/pages"
)

// PageOptions configures a PageRenderer.
type PageOptions struct {
	// FallbackLocale serves pages missing in the requested locale.
	FallbackLocale string
	// DefaultEntry is the client bundle used when a page names none.
	DefaultEntry string
	// SiteName is appended to page titles.
	SiteName string
}

// PageRenderer renders content pages from a pages.Source.
type PageRenderer struct {
	source pages.Source
	opts   PageOptions
}

// NewPageRenderer creates a renderer over source.
func NewPageRenderer(source pages.Source, opts PageOptions) *PageRenderer {
	return &PageRenderer{source: source, opts: opts}
}

// Render looks the page up in the requested locale, then in the fallback
// locale. Locales that missed are listed in the result trace.
func (r *PageRenderer) Render(ctx context.Context, req Request) (*Result, error) {
	slug := strings.Join(req.Segments, "/")
	if slug == "" {
		slug = "index"
	}

	candidates := []string{req.Locale}
	if fb := r.opts.FallbackLocale; fb != "" && fb != req.Locale {
		candidates = append(candidates, fb)
	}

	var missed []string
	for _, loc := range candidates {
		page, err := r.source.Page(ctx, loc, slug)
		switch {
		case err == nil:
			return r.result(req, page, missed), nil
		case errors.Is(err, pages.ErrNotFound), errors.Is(err, pages.ErrInvalidSlug):
			missed = append(missed, loc)
		default:
			return nil, fmt.Errorf("loading page %s/%s: %w", loc, slug, err)
		}
	}

	return nil, fmt.Errorf("%s (tried %s): %w", slug, strings.Join(missed, ", "), ErrNotFound)
}

func (r *PageRenderer) result(req Request, page *pages.Page, missed []string) *Result {
	entry := page.Entry
	if entry == "" {
		entry = r.opts.DefaultEntry
	}

	headers := map[string]string{}
	if page.ETag != "" {
		headers["ETag"] = page.ETag
	}

	return &Result{
		HTML:        fragment(page),
		Status:      200,
		Headers:     headers,
		InitialData: initialData(req, page),
		Head: &Head{
			HeadTags:       r.headTags(page),
			HTMLAttributes: `lang="` + html.EscapeString(page.Locale) + `"`,
		},
		EntryClient: entry,
		Trace: &Trace{
			Slug:      page.Slug,
			Source:    "file",
			ETag:      page.ETag,
			Blocks:    page.Blocks,
			Fallbacks: missed,
		},
	}
}

func (r *PageRenderer) headTags(page *pages.Page) string {
	title := page.Title
	switch {
	case title == "":
		title = r.opts.SiteName
	case r.opts.SiteName != "":
		title += " | " + r.opts.SiteName
	}

	var b strings.Builder
	if title != "" {
		b.WriteString("<title>" + html.EscapeString(title) + "</title>")
	}
	desc := page.Description
	if desc == "" {
		desc = page.Summary
	}
	if desc != "" {
		b.WriteString(`<meta name="description" content="` + html.EscapeString(desc) + `">`)
	}
	return b.String()
}

func fragment(page *pages.Page) string {
	return `<article class="page" data-slug="` + html.EscapeString(page.Slug) + `">` + page.HTML + `</article>`
}

func initialData(req Request, page *pages.Page) map[string]any {
	return map[string]any{
		"locale": req.Locale,
		"slug":   page.Slug,
		"page": map[string]any{
			"locale":  page.Locale,
			"title":   page.Title,
			"summary": page.Summary,
		},
	}
}
