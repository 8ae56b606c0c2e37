// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"path/filepath"
	"strings"
)

// =============================================================================
// SOURCE
// =============================================================================

// Source selects which kind of handle a run expands.
type Source int

const (
	// SourceCurrentNote exports a single note
	SourceCurrentNote Source = iota

	// SourceCurrentFolder exports the notes of one folder
	SourceCurrentFolder

	// SourceCurrentNotebook exports a whole notebook, recursively
	SourceCurrentNotebook

	// SourceCart exports an ad-hoc selection of notes
	SourceCart
)

// String returns the source name used in logs and configuration.
func (s Source) String() string {
	switch s {
	case SourceCurrentNote:
		return "note"
	case SourceCurrentFolder:
		return "folder"
	case SourceCurrentNotebook:
		return "notebook"
	case SourceCart:
		return "cart"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// ParseSource parses a source name. Both the short names ("folder") and the
// long ones ("current-folder") are accepted.
func ParseSource(s string) (Source, error) {
	switch normalizeName(s) {
	case "note", "currentnote", "file":
		return SourceCurrentNote, nil
	case "folder", "currentfolder", "directory", "dir":
		return SourceCurrentFolder, nil
	case "notebook", "currentnotebook":
		return SourceCurrentNotebook, nil
	case "cart":
		return SourceCart, nil
	default:
		return 0, fmt.Errorf("unknown source %q (expected note, folder, notebook or cart)", s)
	}
}

// =============================================================================
// FORMAT
// =============================================================================

// Format selects the converter chain.
type Format int

const (
	// FormatMarkdown copies notes unchanged
	FormatMarkdown Format = iota

	// FormatHTML renders notes to HTML documents
	FormatHTML

	// FormatPDF renders notes to PDF documents
	FormatPDF
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatMarkdown:
		return "markdown"
	case FormatHTML:
		return "html"
	case FormatPDF:
		return "pdf"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// ParseFormat parses a format name ("md", "markdown", "html", "pdf").
func ParseFormat(s string) (Format, error) {
	switch normalizeName(s) {
	case "md", "markdown":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	case "pdf":
		return FormatPDF, nil
	default:
		return 0, fmt.Errorf("unknown format %q (expected markdown, html or pdf)", s)
	}
}

// =============================================================================
// PAGE NUMBER
// =============================================================================

// PageNumber places page numbers in the footer of external-tool PDFs.
type PageNumber int

const (
	PageNumberNone PageNumber = iota
	PageNumberLeft
	PageNumberCenter
	PageNumberRight
)

// String returns the placement name.
func (p PageNumber) String() string {
	switch p {
	case PageNumberNone:
		return "none"
	case PageNumberLeft:
		return "left"
	case PageNumberCenter:
		return "center"
	case PageNumberRight:
		return "right"
	default:
		return fmt.Sprintf("pagenumber(%d)", int(p))
	}
}

// ParsePageNumber parses a placement name.
func ParsePageNumber(s string) (PageNumber, error) {
	switch normalizeName(s) {
	case "", "none", "off":
		return PageNumberNone, nil
	case "left":
		return PageNumberLeft, nil
	case "center", "centre":
		return PageNumberCenter, nil
	case "right":
		return PageNumberRight, nil
	default:
		return 0, fmt.Errorf("unknown page number position %q (expected none, left, center or right)", s)
	}
}

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "", "_", "", " ", "").Replace(s)
}

// =============================================================================
// TARGETS
// =============================================================================

// Target carries the options of one output format. It is implemented by
// MarkdownTarget, HTMLOptions and PDFOptions only; the concrete type decides
// which converter runs.
type Target interface {
	// Format reports which format the target produces.
	Format() Format

	// outputExt returns the extension of an output written for a source
	// file with extension srcExt.
	outputExt(srcExt string) string
}

// MarkdownTarget copies notes byte for byte.
type MarkdownTarget struct{}

// Format implements Target.
func (MarkdownTarget) Format() Format { return FormatMarkdown }

func (MarkdownTarget) outputExt(srcExt string) string { return srcExt }

// HTMLOptions configures HTML output.
type HTMLOptions struct {
	// EmbedCSSStyle inlines the stylesheet instead of linking a sibling file
	EmbedCSSStyle bool

	// CompleteHTML wraps the fragment in a standalone document
	CompleteHTML bool

	// MIMEHTML packs the document and its assets into one .mht archive
	MIMEHTML bool
}

// DefaultHTMLOptions returns embedded CSS, complete documents, no archive.
func DefaultHTMLOptions() HTMLOptions {
	return HTMLOptions{EmbedCSSStyle: true, CompleteHTML: true}
}

// Format implements Target.
func (HTMLOptions) Format() Format { return FormatHTML }

func (o HTMLOptions) outputExt(string) string {
	if o.MIMEHTML {
		return ".mht"
	}
	return ".html"
}

// PDFOptions configures PDF output.
type PDFOptions struct {
	// Layout is the page geometry. Nil means DefaultPageLayout for the
	// built-in printer and the tool's own defaults for the external tool.
	Layout *PageLayout

	// UseExternalTool selects wkhtmltopdf-style generation
	UseExternalTool bool

	// ExternalToolPath is the tool executable; a bare name is looked up
	// in PATH
	ExternalToolPath string

	EnableBackground      bool
	EnableTableOfContents bool
	PageNumber            PageNumber

	// ExtraArguments is passed to the tool after the generated options.
	// It is split like a shell would split it and never validated.
	ExtraArguments string
}

// DefaultPDFOptions returns built-in printing with backgrounds enabled.
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{EnableBackground: true}
}

// Format implements Target.
func (PDFOptions) Format() Format { return FormatPDF }

func (PDFOptions) outputExt(string) string { return ".pdf" }

// =============================================================================
// OPTIONS
// =============================================================================

// RenderOptions are forwarded to the Markdown renderer unchanged.
type RenderOptions struct {
	Renderer       string
	Background     string
	Style          string
	CodeBlockStyle string
}

// Options configures one run. The value is copied at Start; later changes
// by the caller do not affect a running export.
type Options struct {
	Source Source
	Render RenderOptions

	// ProcessSubfolders recurses into subfolders for SourceCurrentFolder.
	// Notebooks are always recursive; single notes and carts ignore it.
	ProcessSubfolders bool

	Target Target
}

// DefaultOptions returns a single-note Markdown export.
func DefaultOptions() Options {
	return Options{
		Source: SourceCurrentNote,
		Render: RenderOptions{Renderer: "goldmark"},
		Target: MarkdownTarget{},
	}
}

// Format returns the format produced by the target.
func (o Options) Format() Format {
	if o.Target == nil {
		return FormatMarkdown
	}
	return o.Target.Format()
}

// Validate checks the option values that need no filesystem access.
func (o Options) Validate() error {
	switch o.Source {
	case SourceCurrentNote, SourceCurrentFolder, SourceCurrentNotebook, SourceCart:
	default:
		return &ConfigError{Field: "source", Reason: fmt.Sprintf("unknown source %s", o.Source)}
	}
	if o.Target == nil {
		return &ConfigError{Field: "format", Reason: "no export target"}
	}
	if pdf, ok := o.Target.(PDFOptions); ok {
		if pdf.UseExternalTool && strings.TrimSpace(pdf.ExternalToolPath) == "" {
			return &ConfigError{Field: "pdf.tool_path", Reason: "external tool path is empty"}
		}
		if pdf.PageNumber < PageNumberNone || pdf.PageNumber > PageNumberRight {
			return &ConfigError{Field: "pdf.page_number", Reason: fmt.Sprintf("unknown page number position %s", pdf.PageNumber)}
		}
		if pdf.Layout != nil {
			if err := pdf.Layout.Validate(); err != nil {
				return &ConfigError{Field: "pdf.layout", Reason: "invalid page layout", Err: err}
			}
		}
	}
	return nil
}

// OutputRel maps a resolved relative path to the relative output path for
// target, rewriting the extension.
func OutputRel(rel string, target Target) string {
	ext := filepath.Ext(rel)
	if target == nil {
		return rel
	}
	return strings.TrimSuffix(rel, ext) + target.outputExt(ext)
}
