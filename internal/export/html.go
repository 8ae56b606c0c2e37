// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/eqio/vnote/internal/render"
	"github.com/eqio/vnote/internal/util"
)

// =============================================================================
// HTML PACKAGER
// =============================================================================

// stylesheetName is the linked stylesheet inside the <stem>_files folder.
const stylesheetName = "style.css"

// HTMLPackager writes rendered notes as HTML files or MIME archives.
type HTMLPackager struct {
	logger *zap.Logger
}

// NewHTMLPackager creates a packager. logger may be nil.
func NewHTMLPackager(logger *zap.Logger) *HTMLPackager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTMLPackager{logger: logger}
}

// Package writes doc to outputPath according to opts. Local assets are
// copied into a "<stem>_files" folder next to the output and their
// references rewritten; with MIMEHTML everything goes into the one archive
// instead. A missing asset produces a warning line on sink and keeps its
// original reference.
func (p *HTMLPackager) Package(doc *render.Result, opts HTMLOptions, outputPath string, sink Sink) error {
	if sink == nil {
		sink = NopSink{}
	}
	if opts.MIMEHTML {
		return p.packageMIME(doc, opts, outputPath, sink)
	}

	dir := filepath.Dir(outputPath)
	filesDir := outputStem(outputPath) + "_files"

	names := make(map[string]bool)
	linkCSS := opts.CompleteHTML && !opts.EmbedCSSStyle
	if linkCSS {
		names[strings.ToLower(stylesheetName)] = true
	}

	type assetCopy struct{ src, dst string }
	var copies []assetCopy
	refs := make(map[string]string)
	for _, a := range doc.Assets {
		if a.Missing {
			warnMissing(sink, a)
			continue
		}
		name := uniqueName(filepath.Base(a.Path), names)
		refs[a.Ref] = refPath(filesDir, name)
		copies = append(copies, assetCopy{src: a.Path, dst: filepath.Join(dir, filesDir, name)})
	}

	body, err := rewriteRefs(doc.HTML, refs)
	if err != nil {
		return fmt.Errorf("rewrite asset references: %w", err)
	}

	var out string
	switch {
	case !opts.CompleteHTML:
		out = body
	case opts.EmbedCSSStyle:
		out = buildDocument(doc.Title, body, doc.Stylesheet, "")
	default:
		out = buildDocument(doc.Title, body, "", refPath(filesDir, stylesheetName))
	}

	for _, c := range copies {
		if err := util.AtomicCopyFile(c.src, c.dst, 0644); err != nil {
			return fmt.Errorf("copy asset: %w", err)
		}
	}
	if linkCSS {
		if err := util.AtomicWriteFile(filepath.Join(dir, filesDir, stylesheetName), []byte(doc.Stylesheet), 0644); err != nil {
			return fmt.Errorf("write stylesheet: %w", err)
		}
	}
	if err := util.AtomicWriteFile(outputPath, []byte(out), 0644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(outputPath), err)
	}

	p.logger.Debug("packaged html",
		zap.String("output", outputPath),
		zap.Int("assets", len(copies)),
		zap.Bool("complete", opts.CompleteHTML),
		zap.Bool("embed_css", opts.EmbedCSSStyle),
	)
	return nil
}

// =============================================================================
// DOCUMENT HELPERS
// =============================================================================

// buildDocument wraps a body fragment in a standalone page. Exactly one of
// css (inlined) and cssHref (linked) is normally set.
func buildDocument(title, body, css, cssHref string) string {
	var sb strings.Builder

	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html>\n")
	sb.WriteString("<head>\n")
	sb.WriteString("<meta charset=\"utf-8\">\n")
	sb.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	sb.WriteString(fmt.Sprintf("<title>%s</title>\n", html.EscapeString(title)))
	if css != "" {
		sb.WriteString("<style type=\"text/css\">\n")
		sb.WriteString(strings.TrimRight(css, "\n"))
		sb.WriteString("\n</style>\n")
	}
	if cssHref != "" {
		sb.WriteString(fmt.Sprintf("<link rel=\"stylesheet\" type=\"text/css\" href=\"%s\">\n", html.EscapeString(cssHref)))
	}
	sb.WriteString("</head>\n")
	sb.WriteString("<body>\n")
	sb.WriteString("<article class=\"markdown-body\">\n")
	sb.WriteString(strings.TrimRight(body, "\n"))
	sb.WriteString("\n</article>\n")
	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")

	return sb.String()
}

// rewriteRefs replaces asset src attributes found in refs. The fragment is
// returned untouched when there is nothing to replace.
func rewriteRefs(fragment string, refs map[string]string) (string, error) {
	if len(refs) == 0 {
		return fragment, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", err
	}
	doc.Find(render.AssetSelector).Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if repl, ok := refs[strings.TrimSpace(src)]; ok {
			s.SetAttr("src", repl)
		}
	})

	return doc.Find("body").Html()
}

// uniqueName returns name, or name with a numeric suffix, not yet in
// taken. Comparison is case-insensitive.
func uniqueName(name string, taken map[string]bool) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for n := 1; taken[strings.ToLower(candidate)]; n++ {
		candidate = stem + "_" + strconv.Itoa(n) + ext
	}
	taken[strings.ToLower(candidate)] = true
	return candidate
}

// refPath joins URL path segments, escaping each one.
func refPath(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return strings.Join(escaped, "/")
}

// fileURL converts an absolute filesystem path to a file:// URL.
func fileURL(path string) string {
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p}).String()
}

func outputStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func warnMissing(sink Sink, a render.Asset) {
	sink.LogLine(fmt.Sprintf("Warning: asset %s not found, reference kept", a.Ref))
}
