package pages

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePage(t *testing.T, root, locale, slug, content string) {
	t.Helper()
	file := filepath.Join(root, locale, filepath.FromSlash(slug)+".md")
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))
}

func TestFileSourcePage(t *testing.T) {
	root := t.TempDir()
	writePage(t, root, "en", "help", `---
title: Help
summary: How to get help
description: Support options
entry: main
audience: everyone
---
# Getting help

Write to support.

- one
- two
`)

	src := NewFileSource(root)
	page, err := src.Page(context.Background(), "en", "help")
	require.NoError(t, err)

	assert.Equal(t, "en", page.Locale)
	assert.Equal(t, "help", page.Slug)
	assert.Equal(t, "Help", page.Title)
	assert.Equal(t, "How to get help", page.Summary)
	assert.Equal(t, "Support options", page.Description)
	assert.Equal(t, "main", page.Entry)
	assert.Equal(t, "everyone", page.Meta["audience"])
	assert.Contains(t, page.HTML, `<h1 id="getting-help">Getting help</h1>`)
	assert.Contains(t, page.HTML, "<li>one</li>")
	assert.Equal(t, 3, page.Blocks)
	assert.Regexp(t, `^"[0-9a-f]{16}"$`, page.ETag)
	assert.False(t, page.ModTime.IsZero())
}

func TestFileSourceIndexAndNested(t *testing.T) {
	root := t.TempDir()
	writePage(t, root, "ru", "index", "# Главная\n")
	writePage(t, root, "ru", "docs/intro", "Intro\n")

	src := NewFileSource(root)

	page, err := src.Page(context.Background(), "ru", "")
	require.NoError(t, err)
	assert.Equal(t, "index", page.Slug)
	assert.Contains(t, page.HTML, "Главная")

	page, err = src.Page(context.Background(), "ru", "docs/intro")
	require.NoError(t, err)
	assert.Contains(t, page.HTML, "<p>Intro</p>")
}

func TestFileSourceNotFound(t *testing.T) {
	root := t.TempDir()
	writePage(t, root, "en", "draft", "---\ndraft: true\n---\nsoon\n")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "en", "folder.md"), 0o755))

	src := NewFileSource(root)

	for _, slug := range []string{"missing", "draft", "folder"} {
		_, err := src.Page(context.Background(), "en", slug)
		assert.ErrorIs(t, err, ErrNotFound, slug)
	}

	_, err := src.Page(context.Background(), "de", "help")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileSourceRejectsTraversal(t *testing.T) {
	src := NewFileSource(t.TempDir())

	for _, tc := range []struct{ locale, slug string }{
		{"en", "../secret"},
		{"en", "a/../../b"},
		{"..", "x"},
		{"en/..", "x"},
		{"", "x"},
	} {
		_, err := src.Page(context.Background(), tc.locale, tc.slug)
		assert.ErrorIs(t, err, ErrInvalidSlug, "%s %s", tc.locale, tc.slug)
	}
}

func TestFileSourceHonorsContext(t *testing.T) {
	root := t.TempDir()
	writePage(t, root, "en", "help", "hi\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFileSource(root).Page(ctx, "en", "help")
	assert.ErrorIs(t, err, context.Canceled)
}
