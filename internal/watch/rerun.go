// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package watch

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/eqio/vnote/internal/export"
)

// StartFunc starts one export run.
type StartFunc func(ctx context.Context) (*export.Run, error)

// Rerunner keeps at most one export in flight and restarts it on change.
type Rerunner struct {
	start  StartFunc
	logger *zap.Logger

	mu      sync.Mutex
	current *export.Run
}

// NewRerunner creates a Rerunner around start.
func NewRerunner(start StartFunc, logger *zap.Logger) *Rerunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rerunner{start: start, logger: logger}
}

// Trigger cancels the run in flight, waits for it to end and starts a new
// one. The returned run may already be Failed if its configuration check
// did not pass; err is then its configuration error.
func (r *Rerunner) Trigger(ctx context.Context, changed []string) (*export.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev := r.current; prev != nil && !prev.State().Terminal() {
		r.logger.Debug("cancelling export for changed notes", zap.String("run_id", prev.ID), zap.Strings("changed", changed))
		prev.Cancel()
		prev.Wait()
	}

	run, err := r.start(ctx)
	if run != nil {
		r.current = run
	}
	return run, err
}

// Current returns the latest run, or nil.
func (r *Rerunner) Current() *export.Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Stop cancels the run in flight and waits for it.
func (r *Rerunner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil {
		r.current.Cancel()
		r.current.Wait()
	}
}
