// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
)

// Options configures the built-in engines.
type Options struct {
	// Theme resolves stylesheets; nil uses the embedded themes only
	Theme *Theme

	// Sanitize strips scripts and other active content from the output
	Sanitize bool

	// HardWraps renders single newlines as <br>
	HardWraps bool
}

// GoldmarkRenderer renders Markdown with goldmark. Code blocks are
// highlighted with chroma using CSS classes, so the palette is chosen by
// the stylesheet and not baked into the markup.
type GoldmarkRenderer struct {
	name     string
	md       goldmark.Markdown
	theme    *Theme
	sanitize *bluemonday.Policy
}

// NewGoldmark creates the "goldmark" engine: CommonMark plus GitHub
// extensions (tables, strikethrough, autolinks, task lists), footnotes and
// definition lists.
func NewGoldmark(opts Options) *GoldmarkRenderer {
	return newGoldmarkRenderer("goldmark", opts,
		extension.GFM,
		extension.Footnote,
		extension.DefinitionList,
	)
}

// NewCommonMark creates the "commonmark" engine with no syntax extensions
// beyond front matter and highlighting.
func NewCommonMark(opts Options) *GoldmarkRenderer {
	return newGoldmarkRenderer("commonmark", opts)
}

func newGoldmarkRenderer(name string, opts Options, exts ...goldmark.Extender) *GoldmarkRenderer {
	exts = append(exts,
		meta.Meta,
		highlighting.NewHighlighting(
			highlighting.WithFormatOptions(
				chromahtml.WithClasses(true),
			),
		),
	)

	// Notes routinely embed raw <img> and <div> tags
	htmlOpts := []renderer.Option{html.WithUnsafe()}
	if opts.HardWraps {
		htmlOpts = append(htmlOpts, html.WithHardWraps())
	}

	theme := opts.Theme
	if theme == nil {
		theme = NewTheme("")
	}

	r := &GoldmarkRenderer{
		name: name,
		md: goldmark.New(
			goldmark.WithExtensions(exts...),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(htmlOpts...),
		),
		theme: theme,
	}
	if opts.Sanitize {
		r.sanitize = newSanitizePolicy()
	}
	return r
}

// newSanitizePolicy allows user content plus the attributes the highlighter
// and heading IDs rely on.
func newSanitizePolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Globally()
	p.AllowAttrs("id").OnElements("h1", "h2", "h3", "h4", "h5", "h6", "li", "sup")
	p.AllowAttrs("checked", "disabled", "type").OnElements("input")
	return p
}

// Name returns the engine identifier.
func (r *GoldmarkRenderer) Name() string {
	return r.name
}

// Render converts req.Source into an HTML fragment.
func (r *GoldmarkRenderer) Render(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	css, err := r.theme.Stylesheet(req.Style, req.CodeBlockStyle, req.Background)
	if err != nil {
		return nil, err
	}

	pctx := parser.NewContext()
	var buf bytes.Buffer
	if err := r.md.Convert(req.Source, &buf, parser.WithContext(pctx)); err != nil {
		return nil, fmt.Errorf("render %s: %w", filepath.Base(req.SourcePath), err)
	}

	body := buf.Bytes()
	if r.sanitize != nil {
		body = r.sanitize.SanitizeBytes(body)
	}

	assets, err := collectAssets(body, filepath.Dir(req.SourcePath))
	if err != nil {
		return nil, fmt.Errorf("scan assets of %s: %w", filepath.Base(req.SourcePath), err)
	}

	return &Result{
		HTML:       string(body),
		Title:      documentTitle(meta.Get(pctx), req.SourcePath),
		Stylesheet: css,
		Assets:     assets,
	}, nil
}

// documentTitle prefers a front matter title over the file name stem.
func documentTitle(frontMatter map[string]interface{}, sourcePath string) string {
	if v, ok := frontMatter["title"]; ok {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	base := filepath.Base(sourcePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
