// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import "sync"

// =============================================================================
// PROGRESS SINK
// =============================================================================

// Sink receives human readable status lines from a run: one per file
// outcome, warnings, and a final summary line. Lines are delivered from the
// run's worker goroutine.
type Sink interface {
	LogLine(line string)
}

// ProgressSink is a Sink that also wants a counter snapshot after every
// file.
type ProgressSink interface {
	Sink
	Progress(p Progress)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(line string)

// LogLine implements Sink.
func (f SinkFunc) LogLine(line string) { f(line) }

// NopSink discards everything.
type NopSink struct{}

// LogLine implements Sink.
func (NopSink) LogLine(string) {}

// MemorySink keeps every line. It is safe for concurrent use.
type MemorySink struct {
	mu    sync.Mutex
	lines []string
}

// LogLine implements Sink.
func (s *MemorySink) LogLine(line string) {
	s.mu.Lock()
	s.lines = append(s.lines, line)
	s.mu.Unlock()
}

// Lines returns a copy of the lines received so far.
func (s *MemorySink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

// multiSink fans out to several sinks in order.
type multiSink []Sink

// Tee returns a sink that forwards to each non-nil sink. Progress is
// forwarded to those that implement ProgressSink.
func Tee(sinks ...Sink) Sink {
	var out multiSink
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multiSink) LogLine(line string) {
	for _, s := range m {
		s.LogLine(line)
	}
}

func (m multiSink) Progress(p Progress) {
	for _, s := range m {
		if ps, ok := s.(ProgressSink); ok {
			ps.Progress(p)
		}
	}
}
