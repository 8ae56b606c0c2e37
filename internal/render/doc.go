// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns Markdown notes into HTML fragments.
//
// Engines are looked up by identifier in a Registry. Both built-in engines
// are goldmark based and highlight fenced code with chroma; the highlight
// colours, document style and page background are resolved to CSS by a
// Theme, so the HTML itself carries no presentation.
//
// # Key Types
//
//   - Renderer: engine interface (Render returns a Result)
//   - Registry: identifier -> engine ("goldmark", "commonmark")
//   - Theme: style/code-block-style/background -> stylesheet
//   - Result, Asset: fragment, title, CSS and referenced local files
//
// # Usage
//
//	reg := render.NewRegistry(render.Options{Theme: render.NewTheme(styleDir)})
//	r, err := reg.Get("goldmark")
//	res, err := r.Render(ctx, render.Request{
//	    Source:         data,
//	    SourcePath:     "/notes/today.md",
//	    Style:          "github",
//	    CodeBlockStyle: "monokai",
//	})
package render
