// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/eqio/vnote/internal/render"
	"github.com/eqio/vnote/internal/util"
)

// =============================================================================
// MARKDOWN PASSTHROUGH
// =============================================================================

// mdParser only builds the AST used to find image references.
var mdParser = goldmark.New().Parser()

// exportMarkdown copies the note unchanged and copies the local images it
// references next to the copy, keeping their relative locations. Images
// outside the note's folder are left alone. Nothing is written when one of
// the images would replace a different image copied earlier in the run.
func exportMarkdown(src []byte, item Item, outputPath string, claims imageClaims, sink Sink) (int, error) {
	srcDir := filepath.Dir(item.SourcePath)
	dstDir := filepath.Dir(outputPath)

	type imageCopy struct{ ref, from, to string }
	var copies []imageCopy
	for _, ref := range imageRefs(src) {
		path, ok := render.LocalPath(ref, srcDir)
		if !ok {
			continue
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			sink.LogLine(fmt.Sprintf("Warning: image %s is outside the note folder, not copied", ref))
			continue
		}
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			sink.LogLine(fmt.Sprintf("Warning: image %s not found, not copied", ref))
			continue
		}
		to := filepath.Join(dstDir, rel)
		if owner, ok := claims.conflict(path, to); ok {
			return 0, fmt.Errorf("%w: %s is already taken by %s", ErrImageConflict, ref, owner)
		}
		copies = append(copies, imageCopy{ref: ref, from: path, to: to})
	}

	if err := util.AtomicWriteFile(outputPath, src, 0644); err != nil {
		return 0, fmt.Errorf("write %s: %w", filepath.Base(outputPath), err)
	}
	copied := 0
	for _, c := range copies {
		if err := util.AtomicCopyFile(c.from, c.to, 0644); err != nil {
			return copied, fmt.Errorf("copy image %s: %w", c.ref, err)
		}
		claims.claim(c.from, c.to, item.RelPath)
		copied++
	}
	return copied, nil
}

// imageClaims records, per destination path, which image was copied there
// during the run and for which note. It is only used by the run loop.
type imageClaims map[string]imageClaim

type imageClaim struct {
	source string
	note   string
}

func (c imageClaims) claim(source, dest, note string) {
	if _, ok := c[dest]; !ok {
		c[dest] = imageClaim{source: source, note: note}
	}
}

// conflict reports the note that owns dest when copying source there would
// replace different content.
func (c imageClaims) conflict(source, dest string) (string, bool) {
	prev, ok := c[dest]
	if !ok || prev.source == source {
		return "", false
	}
	a, errA := os.ReadFile(prev.source)
	b, errB := os.ReadFile(source)
	if errA == nil && errB == nil && bytes.Equal(a, b) {
		return "", false
	}
	return prev.note, true
}

// imageRefs returns the distinct image destinations of a Markdown
// document in document order.
func imageRefs(src []byte) []string {
	doc := mdParser.Parse(text.NewReader(src))

	var refs []string
	seen := make(map[string]bool)
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		img, ok := n.(*ast.Image)
		if !ok {
			return ast.WalkContinue, nil
		}
		ref := strings.TrimSpace(string(img.Destination))
		if ref != "" && !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
		return ast.WalkContinue, nil
	})
	return refs
}
