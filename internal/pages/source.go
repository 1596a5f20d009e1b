// Package pages provides the page data source queried by the page renderer.
//
// FileSource reads markdown documents laid out as <root>/<locale>/<slug>.md,
// each with an optional YAML front matter block, and renders their bodies
// with goldmark. Nothing is cached: every lookup reads the file, so content
// edits show up on the next request.
package pages

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// ErrNotFound is returned when no page exists for a locale and slug.
var ErrNotFound = errors.New("page not found")

// ErrInvalidSlug is returned for slugs that would escape the content root.
var ErrInvalidSlug = errors.New("invalid slug")

// Page is a rendered content page.
type Page struct {
	Locale      string
	Slug        string
	Title       string
	Summary     string
	Description string
	// Entry names the client bundle that hydrates the page, if any.
	Entry   string
	HTML    string
	Blocks  int
	ETag    string
	ModTime time.Time
	Meta    map[string]any
}

// Source looks pages up by locale and slug.
type Source interface {
	Page(ctx context.Context, locale, slug string) (*Page, error)
}

type frontMatter struct {
	Title       string         `yaml:"title"`
	Summary     string         `yaml:"summary"`
	Description string         `yaml:"description"`
	Entry       string         `yaml:"entry"`
	Draft       bool           `yaml:"draft"`
	Custom      map[string]any `yaml:",inline"`
}

// FileSource serves pages from a directory tree.
type FileSource struct {
	root string
	md   goldmark.Markdown
}

// NewFileSource creates a source rooted at root.
func NewFileSource(root string) *FileSource {
	return &FileSource{
		root: filepath.Clean(root),
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
	}
}

// Root returns the content directory.
func (s *FileSource) Root() string {
	return s.root
}

// Page reads and renders <root>/<locale>/<slug>.md. Draft pages are reported
// as not found.
func (s *FileSource) Page(ctx context.Context, locale, slug string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, slug, err := s.pathFor(locale, slug)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s/%s: %w", locale, slug, ErrNotFound)
		}
		return nil, fmt.Errorf("stat page %s: %w", file, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s/%s: %w", locale, slug, ErrNotFound)
	}

	source, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading page %s: %w", file, err)
	}

	var meta frontMatter
	body, err := frontmatter.Parse(bytes.NewReader(source), &meta)
	if err != nil {
		return nil, fmt.Errorf("parse frontmatter in %s: %w", file, err)
	}
	if meta.Draft {
		return nil, fmt.Errorf("%s/%s is a draft: %w", locale, slug, ErrNotFound)
	}

	doc := s.md.Parser().Parse(text.NewReader(body))
	var buf bytes.Buffer
	if err := s.md.Renderer().Render(&buf, body, doc); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", file, err)
	}

	sum := sha256.Sum256(source)

	return &Page{
		Locale:      locale,
		Slug:        slug,
		Title:       meta.Title,
		Summary:     meta.Summary,
		Description: meta.Description,
		Entry:       meta.Entry,
		HTML:        buf.String(),
		Blocks:      doc.ChildCount(),
		ETag:        `"` + hex.EncodeToString(sum[:8]) + `"`,
		ModTime:     info.ModTime(),
		Meta:        meta.Custom,
	}, nil
}

// pathFor maps locale and slug to a file below the root and returns the
// normalized slug.
func (s *FileSource) pathFor(locale, slug string) (string, string, error) {
	if locale == "" || strings.ContainsAny(locale, `/\`) || locale == "." || locale == ".." {
		return "", "", fmt.Errorf("locale %q: %w", locale, ErrInvalidSlug)
	}

	slug = strings.Trim(slug, "/")
	if slug == "" {
		slug = "index"
	}
	for _, seg := range strings.Split(slug, "/") {
		if seg == "" || seg == "." || seg == ".." || strings.ContainsAny(seg, `\`+"\x00") {
			return "", "", fmt.Errorf("slug %q: %w", slug, ErrInvalidSlug)
		}
	}

	file := filepath.Join(s.root, locale, filepath.FromSlash(slug)+".md")
	rel, err := filepath.Rel(s.root, file)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", "", fmt.Errorf("slug %q: %w", slug, ErrInvalidSlug)
	}
	return file, slug, nil
}
