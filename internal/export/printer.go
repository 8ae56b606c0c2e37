// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// =============================================================================
// BUILT-IN PRINTER
// =============================================================================

// Printer turns an HTML document into PDF bytes.
type Printer interface {
	// PrintPDF loads the document at url and prints it with layout.
	PrintPDF(ctx context.Context, url string, layout *PageLayout, background bool) ([]byte, error)

	// Close releases the printer.
	Close() error
}

// PrinterFactory starts a printer. The exporter calls it before the first
// note of a built-in PDF run, so a missing browser fails the whole run.
type PrinterFactory func(ctx context.Context) (Printer, error)

// BrowserOptions configures ChromePrinter.
type BrowserOptions struct {
	// ExecPath is the Chrome/Chromium binary; empty uses CHROME_PATH or
	// chromedp's search
	ExecPath string

	// Timeout bounds the printing of one document
	Timeout time.Duration

	Logger *zap.Logger
}

// DefaultPrintTimeout bounds one document when BrowserOptions.Timeout is
// zero.
const DefaultPrintTimeout = 60 * time.Second

// ChromePrinter prints with a headless Chrome kept alive for the whole run.
type ChromePrinter struct {
	opts BrowserOptions

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewChromePrinter launches the browser. The returned printer must be
// closed.
func NewChromePrinter(ctx context.Context, opts BrowserOptions) (*ChromePrinter, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultPrintTimeout
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("allow-file-access-from-files", true),
		chromedp.Flag("headless", true),
		chromedp.WSURLReadTimeout(opts.Timeout),
	)
	execPath := opts.ExecPath
	if execPath == "" {
		execPath = os.Getenv("CHROME_PATH")
	}
	if execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(execPath))
	}

	// The browser outlives the caller's context; Close ends it
	base := context.WithoutCancel(ctx)
	allocCtx, allocCancel := chromedp.NewExecAllocator(base, allocOpts...)
	logger := opts.Logger
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			logger.Debug(fmt.Sprintf("chromedp: "+format, args...))
		}),
	)

	// Running an empty task list starts the browser
	launchCtx, cancel := context.WithTimeout(browserCtx, opts.Timeout)
	defer cancel()
	if err := chromedp.Run(launchCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	opts.Logger.Debug("browser started", zap.String("exec_path", execPath))

	return &ChromePrinter{
		opts:          opts,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// ChromeFactory returns a PrinterFactory launching ChromePrinter with opts.
func ChromeFactory(opts BrowserOptions) PrinterFactory {
	return func(ctx context.Context) (Printer, error) {
		return NewChromePrinter(ctx, opts)
	}
}

// PrintPDF implements Printer. Each document gets its own tab.
func (p *ChromePrinter) PrintPDF(ctx context.Context, url string, layout *PageLayout, background bool) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.browserCtx == nil {
		return nil, fmt.Errorf("printer closed")
	}
	if layout == nil {
		layout = DefaultPageLayout()
	}

	tabCtx, tabCancel := chromedp.NewContext(p.browserCtx)
	defer tabCancel()
	tabCtx, cancel := context.WithTimeout(tabCtx, p.opts.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	width, height := layout.PaperSizeInches()
	top, bottom, left, right := layout.MarginsInches()

	start := time.Now()
	var data []byte
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			data, _, err = page.PrintToPDF().
				WithPaperWidth(width).
				WithPaperHeight(height).
				WithMarginTop(top).
				WithMarginBottom(bottom).
				WithMarginLeft(left).
				WithMarginRight(right).
				WithPrintBackground(background).
				WithPreferCSSPageSize(false).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print to PDF: %w", err)
	}

	p.opts.Logger.Debug("printed document",
		zap.String("url", url),
		zap.Int("bytes", len(data)),
		zap.Duration("duration", time.Since(start)),
	)
	return data, nil
}

// Close shuts the browser down. It is safe to call more than once.
func (p *ChromePrinter) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.browserCtx == nil {
		return nil
	}
	p.browserCancel()
	p.allocCancel()
	p.browserCtx = nil
	return nil
}
