// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Get(t *testing.T) {
	reg := NewRegistry(Options{})

	r, err := reg.Get("goldmark")
	require.NoError(t, err)
	assert.Equal(t, "goldmark", r.Name())

	r, err = reg.Get(" CommonMark ")
	require.NoError(t, err)
	assert.Equal(t, "commonmark", r.Name())

	_, err = reg.Get("markdown-it")
	assert.ErrorIs(t, err, ErrUnknownRenderer)

	assert.Equal(t, []string{"commonmark", "goldmark"}, reg.Names())
}

func TestGoldmark_RenderTitleAndBody(t *testing.T) {
	r := NewGoldmark(Options{})
	src := []byte("---\ntitle: Weekly Plan\n---\n# Heading\n\n| a | b |\n|---|---|\n| 1 | 2 |\n")

	res, err := r.Render(context.Background(), Request{
		Source:     src,
		SourcePath: "/notes/plan.md",
	})
	require.NoError(t, err)

	assert.Equal(t, "Weekly Plan", res.Title)
	assert.Contains(t, res.HTML, `<h1 id="heading">Heading</h1>`)
	assert.Contains(t, res.HTML, "<table>")
	assert.NotContains(t, res.HTML, "title: Weekly Plan")
	assert.NotEmpty(t, res.Stylesheet)
}

func TestCommonMark_NoTables(t *testing.T) {
	r := NewCommonMark(Options{})
	res, err := r.Render(context.Background(), Request{
		Source:     []byte("| a | b |\n|---|---|\n| 1 | 2 |\n"),
		SourcePath: "/notes/t.md",
	})
	require.NoError(t, err)
	assert.NotContains(t, res.HTML, "<table>")
	assert.Equal(t, "t", res.Title)
}

func TestGoldmark_CodeBlocksUseClasses(t *testing.T) {
	r := NewGoldmark(Options{})
	res, err := r.Render(context.Background(), Request{
		Source:         []byte("```go\nfunc main() {}\n```\n"),
		SourcePath:     "/notes/code.md",
		CodeBlockStyle: "monokai",
	})
	require.NoError(t, err)
	assert.Contains(t, res.HTML, `class="chroma"`)
	assert.NotContains(t, res.HTML, "style=")
	assert.Contains(t, res.Stylesheet, ".chroma")
}

func TestGoldmark_Deterministic(t *testing.T) {
	r := NewGoldmark(Options{})
	req := Request{
		Source:     []byte("# A\n\nSome *text* and `code`.\n\n```python\nprint(1)\n```\n"),
		SourcePath: "/notes/a.md",
	}
	first, err := r.Render(context.Background(), req)
	require.NoError(t, err)
	second, err := r.Render(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGoldmark_Assets(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "img"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "img", "a.png"), []byte("png"), 0644))

	src := []byte("![a](img/a.png)\n![again](img/a.png)\n![gone](img/missing.png)\n" +
		"![remote](https://example.com/x.png)\n<img src=\"data:image/png;base64,AAAA\">\n")

	res, err := NewGoldmark(Options{}).Render(context.Background(), Request{
		Source:     src,
		SourcePath: filepath.Join(dir, "note.md"),
	})
	require.NoError(t, err)

	require.Len(t, res.Assets, 2)
	assert.Equal(t, "img/a.png", res.Assets[0].Ref)
	assert.Equal(t, filepath.Join(dir, "img", "a.png"), res.Assets[0].Path)
	assert.False(t, res.Assets[0].Missing)
	assert.Equal(t, "img/missing.png", res.Assets[1].Ref)
	assert.True(t, res.Assets[1].Missing)
}

func TestGoldmark_Sanitize(t *testing.T) {
	src := []byte("hello <script>alert(1)</script>\n\n```go\nx := 1\n```\n")

	unsafe, err := NewGoldmark(Options{}).Render(context.Background(), Request{Source: src, SourcePath: "/n.md"})
	require.NoError(t, err)
	assert.Contains(t, unsafe.HTML, "<script>")

	safe, err := NewGoldmark(Options{Sanitize: true}).Render(context.Background(), Request{Source: src, SourcePath: "/n.md"})
	require.NoError(t, err)
	assert.NotContains(t, safe.HTML, "<script>")
	assert.Contains(t, safe.HTML, `class="chroma"`)
}

func TestRender_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewGoldmark(Options{}).Render(ctx, Request{Source: []byte("x"), SourcePath: "/n.md"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalPath(t *testing.T) {
	base := filepath.FromSlash("/notes/folder")
	tests := []struct {
		ref  string
		want string
		ok   bool
	}{
		{"img/a.png", filepath.Join(base, "img", "a.png"), true},
		{"img/with%20space.png", filepath.Join(base, "img", "with space.png"), true},
		{"/abs/b.png", filepath.FromSlash("/abs/b.png"), true},
		{"file:///abs/c.png", filepath.FromSlash("/abs/c.png"), true},
		{"https://example.com/a.png", "", false},
		{"//cdn.example.com/a.png", "", false},
		{"data:image/png;base64,AAAA", "", false},
		{"#anchor", "", false},
	}
	for _, tt := range tests {
		got, ok := LocalPath(tt.ref, base)
		assert.Equal(t, tt.ok, ok, tt.ref)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.ref)
		}
	}
}
