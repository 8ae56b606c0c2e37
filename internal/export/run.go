// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// RUN STATE
// =============================================================================

// State is the lifecycle state of a run.
type State string

const (
	StateIdle      State = "Idle"
	StateRunning   State = "Running"
	StateCompleted State = "Completed"
	StateCancelled State = "Cancelled"
	StateFailed    State = "Failed"
)

// String returns the state name.
func (s State) String() string {
	return string(s)
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// isValidTransition enforces Idle -> Running -> Completed/Cancelled/Failed.
func isValidTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StateRunning
	case StateRunning:
		return to == StateCompleted || to == StateCancelled || to == StateFailed
	default:
		return false
	}
}

// =============================================================================
// SUMMARY AND PROGRESS
// =============================================================================

// Summary is the immutable record of a finished run.
type Summary struct {
	ID         string
	State      State
	Source     Source
	Format     Format
	OutputRoot string

	// FilesTotal is the number of notes the scope resolved to
	FilesTotal     int
	FilesAttempted int
	FilesSucceeded int

	// Errors lists per-note failures in the order they happened, including
	// notes that could not be read during resolution
	Errors []FileError

	// Err is the configuration error of a failed run
	Err error

	StartedAt  time.Time
	FinishedAt time.Time
}

// FilesFailed is the number of per-note errors.
func (s Summary) FilesFailed() int {
	return len(s.Errors)
}

// Duration is the wall time of the run.
func (s Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Line is the one-line summary written to the sink at the end of a run.
func (s Summary) Line() string {
	switch s.State {
	case StateFailed:
		return fmt.Sprintf("Export failed: %v", s.Err)
	case StateCancelled:
		return fmt.Sprintf("Export cancelled: %d of %d note(s) attempted, %d exported, %d failed",
			s.FilesAttempted, s.FilesTotal, s.FilesSucceeded, s.FilesFailed())
	default:
		return fmt.Sprintf("Export finished: %d note(s) exported, %d failed, to %s",
			s.FilesSucceeded, s.FilesFailed(), s.OutputRoot)
	}
}

// Progress is a point-in-time view of a running export. Counters only grow
// but are read independently, so a snapshot may be between two updates.
type Progress struct {
	State     State
	Total     int
	Attempted int
	Succeeded int
	Failed    int

	// Current is the relative path of the note being exported
	Current string
}

// Fraction is Attempted/Total in [0, 1].
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		if p.State.Terminal() {
			return 1
		}
		return 0
	}
	f := float64(p.Attempted) / float64(p.Total)
	if f > 1 {
		f = 1
	}
	return f
}

// =============================================================================
// RUN
// =============================================================================

// Run is one export. It is created by Exporter.Start and owns all mutable
// state of the export; readers use Snapshot, Wait or Result.
type Run struct {
	// ID is a unique identifier for this run
	ID string

	opts       Options
	outputRoot string
	startedAt  time.Time

	total     atomic.Int64
	attempted atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64

	cancelRequested atomic.Bool
	cancelOnce      sync.Once
	cancel          context.CancelFunc

	mu         sync.RWMutex
	state      State
	current    string
	errs       []FileError
	err        error
	finishedAt time.Time
	summary    Summary

	done chan struct{}
}

// newRun creates an idle run. cancel stops the run's context; it is set
// once here and never replaced.
func newRun(opts Options, outputRoot string, now time.Time, cancel context.CancelFunc) *Run {
	if cancel == nil {
		cancel = func() {}
	}
	return &Run{
		ID:         uuid.New().String(),
		opts:       opts,
		outputRoot: outputRoot,
		startedAt:  now,
		state:      StateIdle,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Options returns the options the run was started with.
func (r *Run) Options() Options {
	return r.opts
}

// State returns the current lifecycle state.
func (r *Run) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Cancel asks the run to stop. The worker notices at the next file
// boundary; an external PDF tool that is running is interrupted. Cancel is
// idempotent and does nothing once the run has ended.
func (r *Run) Cancel() {
	if r.State().Terminal() {
		return
	}
	r.cancelOnce.Do(func() {
		r.cancelRequested.Store(true)
		r.cancel()
	})
}

// CancelRequested reports whether Cancel has been called.
func (r *Run) CancelRequested() bool {
	return r.cancelRequested.Load()
}

// Done is closed when the run reaches a terminal state.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run ends and returns its summary.
func (r *Run) Wait() Summary {
	<-r.done
	return r.summary
}

// Result returns the summary of a finished run, or ErrRunNotFinished.
func (r *Run) Result() (Summary, error) {
	select {
	case <-r.done:
		return r.summary, nil
	default:
		return Summary{}, ErrRunNotFinished
	}
}

// Snapshot returns the current counters.
func (r *Run) Snapshot() Progress {
	r.mu.RLock()
	state, current := r.state, r.current
	r.mu.RUnlock()
	return Progress{
		State:     state,
		Total:     int(r.total.Load()),
		Attempted: int(r.attempted.Load()),
		Succeeded: int(r.succeeded.Load()),
		Failed:    int(r.failed.Load()),
		Current:   current,
	}
}

// setState validates and applies a transition.
func (r *Run) setState(to State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !isValidTransition(r.state, to) {
		return fmt.Errorf("invalid run state transition from %s to %s", r.state, to)
	}
	r.state = to
	return nil
}

func (r *Run) setOutputRoot(root string) {
	r.mu.Lock()
	r.outputRoot = root
	r.mu.Unlock()
}

func (r *Run) setCurrent(rel string) {
	r.mu.Lock()
	r.current = rel
	r.mu.Unlock()
}

func (r *Run) addError(fe FileError) {
	r.mu.Lock()
	r.errs = append(r.errs, fe)
	r.mu.Unlock()
	r.failed.Add(1)
}

// finish moves the run to its terminal state and freezes the summary.
// Waiters are released by markDone, so final sink lines can be delivered
// first. finish must be called exactly once.
func (r *Run) finish(state State, err error, now time.Time) Summary {
	if setErr := r.setState(state); setErr != nil {
		panic(setErr)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
	r.current = ""
	r.finishedAt = now
	r.summary = Summary{
		ID:             r.ID,
		State:          state,
		Source:         r.opts.Source,
		Format:         r.opts.Format(),
		OutputRoot:     r.outputRoot,
		FilesTotal:     int(r.total.Load()),
		FilesAttempted: int(r.attempted.Load()),
		FilesSucceeded: int(r.succeeded.Load()),
		Errors:         append([]FileError(nil), r.errs...),
		Err:            err,
		StartedAt:      r.startedAt,
		FinishedAt:     now,
	}
	return r.summary
}

// markDone releases Wait and Done.
func (r *Run) markDone() {
	r.cancel()
	close(r.done)
}
