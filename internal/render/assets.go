// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"bytes"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// AssetSelector matches elements whose src points at an embeddable file.
const AssetSelector = "img[src], video[src], audio[src], source[src]"

// collectAssets returns the local files referenced by a rendered fragment.
// Remote URLs, data URIs and in-page anchors are ignored. Each distinct
// reference is reported once, in document order.
func collectAssets(fragment []byte, baseDir string) ([]Asset, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(fragment))
	if err != nil {
		return nil, err
	}

	var assets []Asset
	seen := make(map[string]bool)
	doc.Find(AssetSelector).Each(func(_ int, s *goquery.Selection) {
		ref, _ := s.Attr("src")
		ref = strings.TrimSpace(ref)
		if ref == "" || seen[ref] {
			return
		}
		path, ok := LocalPath(ref, baseDir)
		if !ok {
			return
		}
		seen[ref] = true

		missing := true
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			missing = false
		}
		assets = append(assets, Asset{Ref: ref, Path: path, Missing: missing})
	})
	return assets, nil
}

// LocalPath resolves an HTML reference to a filesystem path. It reports
// false for anything that is not a local file reference.
func LocalPath(ref, baseDir string) (string, bool) {
	if strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "//") {
		return "", false
	}

	// Windows drive paths parse as a one-letter scheme
	if len(ref) > 2 && ref[1] == ':' && (ref[2] == '\\' || ref[2] == '/') {
		return filepath.Clean(ref), true
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	switch strings.ToLower(u.Scheme) {
	case "":
	case "file":
		return filepath.FromSlash(u.Path), u.Path != ""
	default:
		return "", false
	}

	p := u.Path
	if p == "" {
		return "", false
	}
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) {
		return filepath.Clean(p), true
	}
	return filepath.Join(baseDir, p), true
}
