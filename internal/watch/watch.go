// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/eqio/vnote/internal/util"
)

// DefaultDebounce is the quiet period after the last change before a batch
// is reported.
const DefaultDebounce = 500 * time.Millisecond

// =============================================================================
// WATCHER
// =============================================================================

// Config describes what to watch.
type Config struct {
	// Paths are folders or single notes. A note is watched through its
	// folder and only its own changes are reported.
	Paths []string

	// Recursive also watches every subfolder of each folder in Paths
	Recursive bool

	// IsNote filters reported files by name; nil reports every file
	IsNote func(name string) bool

	// Ignore lists folders whose changes are never reported, typically the
	// export output root when it lies inside the watched tree
	Ignore []string

	Debounce time.Duration
	Logger   *zap.Logger
}

// Watcher reports batches of changed notes.
type Watcher struct {
	cfg     Config
	watcher *fsnotify.Watcher
	files   map[string]bool
	ignore  []string

	mu        sync.Mutex
	pending   map[string]bool
	lastEvent time.Time
}

// New starts watching cfg.Paths. Changes made after New returns are
// reported by Run.
func New(cfg Config) (*Watcher, error) {
	if len(cfg.Paths) == 0 {
		return nil, errors.New("nothing to watch")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		cfg:     cfg,
		watcher: fw,
		files:   make(map[string]bool),
		pending: make(map[string]bool),
	}
	for _, dir := range cfg.Ignore {
		if abs, err := filepath.Abs(dir); err == nil {
			w.ignore = append(w.ignore, abs)
		}
	}

	for _, p := range cfg.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch %s: %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch %s: %w", p, err)
		}
		if !info.IsDir() {
			w.files[abs] = true
			if err := fw.Add(filepath.Dir(abs)); err != nil {
				fw.Close()
				return nil, fmt.Errorf("watch %s: %w", p, err)
			}
			continue
		}
		if err := w.addDir(abs); err != nil {
			fw.Close()
			return nil, err
		}
	}
	return w, nil
}

// addDir watches dir and, when recursive, its subfolders. Hidden folders
// and ignored folders are skipped.
func (w *Watcher) addDir(dir string) error {
	if !w.cfg.Recursive {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		return nil
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != dir && (strings.HasPrefix(d.Name(), ".") || w.ignored(path)) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.cfg.Logger.Debug("cannot watch folder", zap.String("dir", path), zap.Error(err))
		}
		return nil
	})
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Run delivers each batch of changed notes to onChange until ctx is done.
// onChange runs on the watcher goroutine; events arriving meanwhile are
// batched for the next call.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, changed []string)) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.cfg.Logger.Warn("watch error", zap.Error(err))

		case <-ticker.C:
			if batch := w.due(time.Now()); len(batch) > 0 {
				onChange(ctx, batch)
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	path := event.Name
	if w.ignored(path) || util.IsTempName(filepath.Base(path)) {
		return
	}

	if event.Op&fsnotify.Create == fsnotify.Create && w.cfg.Recursive {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.addDir(path); err != nil {
				w.cfg.Logger.Debug("cannot watch new folder", zap.String("dir", path), zap.Error(err))
			}
			return
		}
	}

	if len(w.files) > 0 && !w.files[path] && !w.underWatchedDir(path) {
		return
	}
	if w.cfg.IsNote != nil && !w.cfg.IsNote(filepath.Base(path)) {
		return
	}

	w.mu.Lock()
	w.pending[path] = true
	w.lastEvent = time.Now()
	w.mu.Unlock()
}

// underWatchedDir reports whether path belongs to a folder listed in Paths
// rather than to the folder of a single watched note.
func (w *Watcher) underWatchedDir(path string) bool {
	for _, p := range w.cfg.Paths {
		abs, err := filepath.Abs(p)
		if err != nil || w.files[abs] {
			continue
		}
		if within(path, abs) {
			return true
		}
	}
	return false
}

// due returns the pending batch once no event arrived for the debounce
// period.
func (w *Watcher) due(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) == 0 || now.Sub(w.lastEvent) < w.cfg.Debounce {
		return nil
	}
	batch := make([]string, 0, len(w.pending))
	for path := range w.pending {
		batch = append(batch, path)
	}
	sort.Strings(batch)
	w.pending = make(map[string]bool)
	return batch
}

func (w *Watcher) ignored(path string) bool {
	for _, dir := range w.ignore {
		if within(path, dir) {
			return true
		}
	}
	return false
}

func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
