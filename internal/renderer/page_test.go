package renderer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/conneroisu/ssrgate/internal/pages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource serves pages from memory keyed by "locale/slug".
type fakeSource struct {
	pages map[string]*pages.Page
	err   error
	calls []string
}

func (f *fakeSource) Page(_ context.Context, locale, slug string) (*pages.Page, error) {
	f.calls = append(f.calls, locale+"/"+slug)
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.pages[locale+"/"+slug]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%s/%s: %w", locale, slug, pages.ErrNotFound)
}

func TestPageRendererRendersRequestedLocale(t *testing.T) {
	src := &fakeSource{pages: map[string]*pages.Page{
		"ru/help": {
			Locale: "ru", Slug: "help", Title: "Помощь", Summary: "<b>sum</b>",
			HTML: "<p>текст</p>", Blocks: 1, ETag: `"abc"`,
		},
	}}
	r := NewPageRenderer(src, PageOptions{FallbackLocale: "en", DefaultEntry: "main", SiteName: "Site"})

	res, err := r.Render(context.Background(), Request{Locale: "ru", Segments: []string{"help"}, Path: "/ru/help"})
	require.NoError(t, err)

	assert.Equal(t, 200, res.Status)
	assert.Equal(t, `<article class="page" data-slug="help"><p>текст</p></article>`, res.HTML)
	assert.Equal(t, `"abc"`, res.Headers["ETag"])
	assert.Equal(t, "main", res.EntryClient)
	require.NotNil(t, res.Head)
	assert.Equal(t, `lang="ru"`, res.Head.HTMLAttributes)
	assert.Contains(t, res.Head.HeadTags, "<title>Помощь | Site</title>")
	assert.Contains(t, res.Head.HeadTags, `content="&lt;b&gt;sum&lt;/b&gt;"`)

	data, ok := res.InitialData.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ru", data["locale"])
	assert.Equal(t, "help", data["slug"])

	require.NotNil(t, res.Trace)
	assert.Equal(t, "file", res.Trace.Source)
	assert.Equal(t, 1, res.Trace.Blocks)
	assert.Empty(t, res.Trace.Fallbacks)
	assert.Equal(t, []string{"ru/help"}, src.calls)
}

func TestPageRendererFallsBack(t *testing.T) {
	src := &fakeSource{pages: map[string]*pages.Page{
		"en/index": {Locale: "en", Slug: "index", Title: "Home", Entry: "landing"},
	}}
	r := NewPageRenderer(src, PageOptions{FallbackLocale: "en", DefaultEntry: "main"})

	res, err := r.Render(context.Background(), Request{Locale: "ru"})
	require.NoError(t, err)

	assert.Equal(t, []string{"ru/index", "en/index"}, src.calls)
	assert.Equal(t, []string{"ru"}, res.Trace.Fallbacks)
	assert.Equal(t, "landing", res.EntryClient)
	assert.Equal(t, `lang="en"`, res.Head.HTMLAttributes)
	assert.Equal(t, "<title>Home</title>", res.Head.HeadTags)
}

func TestPageRendererNotFound(t *testing.T) {
	src := &fakeSource{pages: map[string]*pages.Page{}}
	r := NewPageRenderer(src, PageOptions{FallbackLocale: "en"})

	_, err := r.Render(context.Background(), Request{Locale: "en", Segments: []string{"nope"}})
	assert.ErrorIs(t, err, ErrNotFound)
	// fallback equal to the requested locale is not tried twice
	assert.Equal(t, []string{"en/nope"}, src.calls)
}

func TestPageRendererSourceFailure(t *testing.T) {
	boom := errors.New("disk on fire")
	r := NewPageRenderer(&fakeSource{err: boom}, PageOptions{FallbackLocale: "en"})

	_, err := r.Render(context.Background(), Request{Locale: "ru", Segments: []string{"a"}})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestRendererFunc(t *testing.T) {
	var got Request
	var r Renderer = RendererFunc(func(_ context.Context, req Request) (*Result, error) {
		got = req
		return &Result{HTML: "x"}, nil
	})

	res, err := r.Render(context.Background(), Request{Locale: "en", Path: "/en"})
	require.NoError(t, err)
	assert.Equal(t, "x", res.HTML)
	assert.Equal(t, "/en", got.Path)
}
