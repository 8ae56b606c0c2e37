// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package exportview

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/eqio/vnote/internal/export"
)

// Sender delivers messages to a running program; *tea.Program implements it.
type Sender interface {
	Send(msg tea.Msg)
}

// Sink forwards run output to the view. Messages are queued and delivered
// in order by one goroutine, so the run never waits on the terminal.
type Sink struct {
	queue chan tea.Msg
	done  chan struct{}
}

var _ export.ProgressSink = (*Sink)(nil)

// NewSink starts forwarding to s. Close stops it.
func NewSink(s Sender) *Sink {
	sink := &Sink{
		queue: make(chan tea.Msg, 1024),
		done:  make(chan struct{}),
	}
	go func() {
		defer close(sink.done)
		for msg := range sink.queue {
			s.Send(msg)
		}
	}()
	return sink
}

// LogLine implements export.Sink.
func (s *Sink) LogLine(line string) {
	s.queue <- LineMsg(line)
}

// Progress implements export.ProgressSink.
func (s *Sink) Progress(p export.Progress) {
	s.queue <- ProgressMsg(p)
}

// Finish queues the final summary after every earlier message and waits
// until all of them were delivered.
func (s *Sink) Finish(sum export.Summary) {
	s.queue <- DoneMsg(sum)
	close(s.queue)
	<-s.done
}
