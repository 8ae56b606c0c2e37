// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// =============================================================================
// RENDERER INTERFACE
// =============================================================================

var (
	// ErrUnknownRenderer is returned when no engine is registered under a name.
	ErrUnknownRenderer = errors.New("unknown renderer")

	// ErrUnknownStyle is returned for a render style with no stylesheet.
	ErrUnknownStyle = errors.New("unknown render style")
)

// Request is one Markdown document to render.
type Request struct {
	// Source is the raw Markdown text
	Source []byte

	// SourcePath is the absolute path of the note; relative asset
	// references are resolved against its directory
	SourcePath string

	// Style names the document stylesheet (e.g. "default", "github")
	Style string

	// CodeBlockStyle names the syntax highlighting palette (a chroma style)
	CodeBlockStyle string

	// Background names the page background ("none", "white", "sepia", or
	// a CSS colour)
	Background string
}

// Result is a rendered HTML fragment plus what a packager needs to turn it
// into a standalone document.
type Result struct {
	// HTML is the body fragment, without html/head/body wrappers
	HTML string

	// Title comes from front matter, falling back to the file name stem
	Title string

	// Stylesheet is the resolved CSS for Style, CodeBlockStyle and Background
	Stylesheet string

	// Assets lists local resources referenced by HTML, in document order
	Assets []Asset
}

// Asset is a local resource referenced from rendered HTML.
type Asset struct {
	// Ref is the reference exactly as it appears in the HTML attribute
	Ref string

	// Path is the absolute filesystem path Ref resolves to
	Path string

	// Missing is set when Path does not exist or is not a regular file
	Missing bool
}

// Renderer converts Markdown into an HTML fragment.
type Renderer interface {
	// Name returns the identifier the renderer is registered under.
	Name() string

	// Render converts one document.
	Render(ctx context.Context, req Request) (*Result, error)
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry maps renderer identifiers to engines.
type Registry struct {
	mu        sync.RWMutex
	renderers map[string]Renderer
	theme     *Theme
}

// NewRegistry creates a registry with the built-in engines:
// "goldmark" (GitHub flavoured) and "commonmark" (strict CommonMark).
func NewRegistry(opts Options) *Registry {
	if opts.Theme == nil {
		opts.Theme = NewTheme("")
	}
	r := &Registry{
		renderers: make(map[string]Renderer),
		theme:     opts.Theme,
	}
	r.Register(NewGoldmark(opts))
	r.Register(NewCommonMark(opts))
	return r
}

// Register adds or replaces a renderer.
func (r *Registry) Register(renderer Renderer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderers[strings.ToLower(renderer.Name())] = renderer
}

// Get looks up a renderer by identifier (case-insensitive).
func (r *Registry) Get(name string) (Renderer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	renderer, ok := r.renderers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownRenderer, name, strings.Join(r.namesLocked(), ", "))
	}
	return renderer, nil
}

// Names returns the registered identifiers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.renderers))
	for name := range r.renderers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Theme returns the stylesheet resolver shared by the registered engines.
func (r *Registry) Theme() *Theme {
	return r.theme
}
