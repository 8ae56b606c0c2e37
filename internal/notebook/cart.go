// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notebook

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eqio/vnote/internal/util"
)

// Cart is an ordered, ad-hoc selection of notes that may come from any
// folders or notebooks.
type Cart struct {
	// Files holds absolute note paths in the order they were added
	Files []string
}

// cartFile is the on-disk manifest:
//
//	files:
//	  - projects/plan.md
//	  - /home/me/notes/todo.md
//
// Relative entries are resolved against the manifest's directory.
type cartFile struct {
	Files []string `yaml:"files"`
}

// NewCart builds a cart from paths, resolving them to absolute paths.
func NewCart(paths ...string) (*Cart, error) {
	c := &Cart{}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("cart entry %q: %w", p, err)
		}
		c.Files = append(c.Files, abs)
	}
	return c, nil
}

// LoadCart reads a YAML cart manifest.
func LoadCart(path string) (*Cart, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}

	var cf cartFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse cart %s: %w", path, err)
	}

	base := filepath.Dir(path)
	c := &Cart{}
	for _, entry := range cf.Files {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !filepath.IsAbs(entry) {
			entry = filepath.Join(base, entry)
		}
		abs, err := filepath.Abs(entry)
		if err != nil {
			return nil, fmt.Errorf("cart entry %q: %w", entry, err)
		}
		c.Files = append(c.Files, abs)
	}
	return c, nil
}

// Save writes the cart as a YAML manifest. Entries below the manifest's
// directory are stored relative to it.
func (c *Cart) Save(path string) error {
	absManifest, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	base := filepath.Dir(absManifest)

	cf := cartFile{Files: make([]string, 0, len(c.Files))}
	for _, f := range c.Files {
		if rel, err := filepath.Rel(base, f); err == nil && !strings.HasPrefix(rel, "..") {
			f = filepath.ToSlash(rel)
		}
		cf.Files = append(cf.Files, f)
	}

	data, err := yaml.Marshal(&cf)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	return util.AtomicWriteFile(absManifest, data, 0644)
}

// Len returns the number of entries.
func (c *Cart) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Files)
}
