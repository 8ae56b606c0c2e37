// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
)

//go:embed themes/*.css
var builtinThemes embed.FS

const (
	// DefaultStyle is the document stylesheet used when none is named.
	DefaultStyle = "default"

	// DefaultCodeBlockStyle is the chroma palette used when none is named.
	DefaultCodeBlockStyle = "github"

	// DefaultBackground leaves the page background to the stylesheet.
	DefaultBackground = "none"
)

// namedBackgrounds maps background identifiers to CSS colours.
var namedBackgrounds = map[string]string{
	"white":       "#ffffff",
	"transparent": "transparent",
	"sepia":       "#f4ecd8",
	"grey":        "#f5f5f5",
	"gray":        "#f5f5f5",
	"dark":        "#1e1e2e",
}

var cssColorPattern = regexp.MustCompile(`^(#[0-9a-fA-F]{3,8}|rgba?\([0-9.,%\s]+\)|hsla?\([0-9.,%\s]+\)|[a-zA-Z]+)$`)

// Theme resolves style, code block style and background identifiers into
// one stylesheet. Document styles come from a user directory first
// (<dir>/<name>.css) and then from the embedded set.
type Theme struct {
	styleDir string

	mu    sync.Mutex
	cache map[string]string
}

// NewTheme creates a resolver. styleDir may be empty.
func NewTheme(styleDir string) *Theme {
	return &Theme{
		styleDir: styleDir,
		cache:    make(map[string]string),
	}
}

// Styles lists every available document style in sorted order.
func (t *Theme) Styles() []string {
	seen := make(map[string]bool)
	entries, _ := fs.ReadDir(builtinThemes, "themes")
	for _, e := range entries {
		seen[strings.TrimSuffix(e.Name(), ".css")] = true
	}
	if t.styleDir != "" {
		if user, err := os.ReadDir(t.styleDir); err == nil {
			for _, e := range user {
				if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".css") {
					seen[strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))] = true
				}
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CodeBlockStyles lists the chroma palettes.
func (t *Theme) CodeBlockStyles() []string {
	return styles.Names()
}

// Check validates the three identifiers without building the stylesheet.
func (t *Theme) Check(style, codeBlockStyle, background string) error {
	if _, err := t.baseCSS(style); err != nil {
		return err
	}
	if _, err := codeStyle(codeBlockStyle); err != nil {
		return err
	}
	if _, err := backgroundCSS(background); err != nil {
		return err
	}
	return nil
}

// Stylesheet returns the combined CSS. Results are cached per combination.
func (t *Theme) Stylesheet(style, codeBlockStyle, background string) (string, error) {
	key := style + "\x00" + codeBlockStyle + "\x00" + background

	t.mu.Lock()
	if css, ok := t.cache[key]; ok {
		t.mu.Unlock()
		return css, nil
	}
	t.mu.Unlock()

	base, err := t.baseCSS(style)
	if err != nil {
		return "", err
	}
	code, err := codeCSS(codeBlockStyle)
	if err != nil {
		return "", err
	}
	bg, err := backgroundCSS(background)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(base))
	sb.WriteString("\n")
	sb.WriteString(code)
	if bg != "" {
		sb.WriteString(bg)
	}
	css := sb.String()

	t.mu.Lock()
	t.cache[key] = css
	t.mu.Unlock()
	return css, nil
}

func (t *Theme) baseCSS(style string) (string, error) {
	name := strings.TrimSpace(style)
	if name == "" {
		name = DefaultStyle
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("%w: %q", ErrUnknownStyle, style)
	}

	if t.styleDir != "" {
		data, err := os.ReadFile(filepath.Join(t.styleDir, name+".css"))
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("read style %s: %w", name, err)
		}
	}

	data, err := builtinThemes.ReadFile("themes/" + name + ".css")
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownStyle, style)
	}
	return string(data), nil
}

func codeStyle(name string) (*chroma.Style, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = DefaultCodeBlockStyle
	}
	style, ok := styles.Registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: code block style %q", ErrUnknownStyle, name)
	}
	return style, nil
}

// codeCSS writes the class based rules matching the highlighter's markup.
func codeCSS(name string) (string, error) {
	style, err := codeStyle(name)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	formatter := chromahtml.New(chromahtml.WithClasses(true))
	if err := formatter.WriteCSS(&buf, style); err != nil {
		return "", fmt.Errorf("code block style %s: %w", name, err)
	}
	return buf.String(), nil
}

func backgroundCSS(background string) (string, error) {
	name := strings.TrimSpace(background)
	if name == "" || strings.EqualFold(name, DefaultBackground) {
		return "", nil
	}
	color, ok := namedBackgrounds[strings.ToLower(name)]
	if !ok {
		if !cssColorPattern.MatchString(name) {
			return "", fmt.Errorf("%w: background %q", ErrUnknownStyle, background)
		}
		color = name
	}
	return fmt.Sprintf("body { background-color: %s; }\n", color), nil
}
