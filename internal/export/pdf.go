// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"

	"github.com/eqio/vnote/internal/render"
	"github.com/eqio/vnote/internal/util"
)

// =============================================================================
// PDF GENERATOR
// =============================================================================

// maxStderr caps the tool output quoted in an error message.
const maxStderr = 2048

// PDFGenerator produces PDFs through a Printer or an external tool.
type PDFGenerator struct {
	runner  ProcessRunner
	printer Printer
	logger  *zap.Logger

	// toolPath is the resolved external tool
	toolPath string
}

// NewPDFGenerator creates a generator. printer may be nil when only the
// external tool is used, runner may be nil when only the printer is used.
func NewPDFGenerator(runner ProcessRunner, printer Printer, logger *zap.Logger) *PDFGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PDFGenerator{runner: runner, printer: printer, logger: logger}
}

// Generate writes doc to outputPath as PDF and returns its page count.
//
// The built-in path prints with the Printer and honours Layout and
// EnableBackground; page numbers and the table of contents are not
// available there. It is not interrupted by ctx. The external path runs
// the tool under ctx, so cancelling ctx stops the tool.
func (g *PDFGenerator) Generate(ctx context.Context, doc *render.Result, opts PDFOptions, outputPath string, sink Sink) (int, error) {
	if sink == nil {
		sink = NopSink{}
	}

	input, err := writePrintDocument(doc, sink)
	if err != nil {
		return 0, err
	}
	defer os.Remove(input)

	if opts.UseExternalTool {
		return g.generateExternal(ctx, input, opts, outputPath)
	}
	return g.generateBuiltin(ctx, input, opts, outputPath)
}

func (g *PDFGenerator) generateBuiltin(ctx context.Context, input string, opts PDFOptions, outputPath string) (int, error) {
	if g.printer == nil {
		return 0, fmt.Errorf("no printer available")
	}

	data, err := g.printer.PrintPDF(context.WithoutCancel(ctx), fileURL(input), opts.Layout, opts.EnableBackground)
	if err != nil {
		return 0, err
	}

	pages, err := verifyPDF(bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	if err := util.AtomicWriteFile(outputPath, data, 0644); err != nil {
		return 0, fmt.Errorf("write %s: %w", filepath.Base(outputPath), err)
	}
	return pages, nil
}

func (g *PDFGenerator) generateExternal(ctx context.Context, input string, opts PDFOptions, outputPath string) (int, error) {
	if g.runner == nil {
		return 0, fmt.Errorf("no process runner available")
	}
	tool := g.toolPath
	if tool == "" {
		tool = opts.ExternalToolPath
	}

	tmp, err := util.TempSibling(outputPath, ".pdf")
	if err != nil {
		return 0, err
	}
	keep := false
	defer func() {
		if !keep {
			os.Remove(tmp)
		}
	}()

	// Extra arguments are never checked up front; a string the tool could
	// not be started with fails this note like any other tool failure
	args, err := ToolArgs(opts, input, tmp)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrToolFailed, err)
	}

	start := time.Now()
	res, err := g.runner.Run(ctx, tool, args)
	if err != nil {
		return 0, err
	}
	if res.ExitCode != 0 {
		return 0, fmt.Errorf("%w: exit status %d: %s", ErrToolFailed, res.ExitCode, stderrExcerpt(res.Stderr))
	}
	g.logger.Debug("external tool finished",
		zap.String("tool", tool),
		zap.Duration("duration", time.Since(start)),
	)

	f, err := os.Open(tmp)
	if err != nil {
		return 0, fmt.Errorf("%w: no output: %v", ErrToolFailed, err)
	}
	pages, err := verifyPDF(f)
	f.Close()
	if err != nil {
		return 0, err
	}

	keep = true
	if err := util.AtomicRename(tmp, outputPath, 0644); err != nil {
		return 0, fmt.Errorf("write %s: %w", filepath.Base(outputPath), err)
	}
	return pages, nil
}

// writePrintDocument writes a complete page with the stylesheet inlined
// and assets referenced by file URL, for the printer or tool to load.
func writePrintDocument(doc *render.Result, sink Sink) (string, error) {
	refs := make(map[string]string)
	for _, a := range doc.Assets {
		if a.Missing {
			warnMissing(sink, a)
			continue
		}
		refs[a.Ref] = fileURL(a.Path)
	}
	body, err := rewriteRefs(doc.HTML, refs)
	if err != nil {
		return "", fmt.Errorf("rewrite asset references: %w", err)
	}
	page := buildDocument(doc.Title, body, doc.Stylesheet, "")

	f, err := os.CreateTemp("", "vnote-print-*.html")
	if err != nil {
		return "", fmt.Errorf("create print document: %w", err)
	}
	if _, err := io.WriteString(f, page); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write print document: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write print document: %w", err)
	}
	return f.Name(), nil
}

// verifyPDF validates the structure of a PDF and returns its page count.
func verifyPDF(rs io.ReadSeeker) (int, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(rs, conf)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	if ctx.PageCount < 1 {
		return 0, fmt.Errorf("%w: no pages", ErrInvalidPDF)
	}
	return ctx.PageCount, nil
}

func stderrExcerpt(stderr []byte) string {
	s := strings.TrimSpace(string(stderr))
	if s == "" {
		return "no error output"
	}
	if len(s) > maxStderr {
		s = s[:maxStderr] + "..."
	}
	return s
}
