// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// PROCESS RUNNER
// =============================================================================

// ProcessResult is the outcome of a finished child process.
type ProcessResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// ProcessRunner runs an executable to completion. Cancelling ctx must stop
// the process and Run must not return before it has exited.
type ProcessRunner interface {
	Run(ctx context.Context, name string, args []string) (ProcessResult, error)
}

// DefaultKillDelay is how long an interrupted process may take to exit
// before it is killed.
const DefaultKillDelay = 3 * time.Second

// ExecRunner runs processes with os/exec.
type ExecRunner struct {
	// KillDelay bounds the wait between interrupt and kill on cancellation
	KillDelay time.Duration

	Logger *zap.Logger
}

// NewExecRunner returns a runner with the default kill delay.
func NewExecRunner(logger *zap.Logger) *ExecRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecRunner{KillDelay: DefaultKillDelay, Logger: logger}
}

// Run starts name with args and collects its output. A non-zero exit is
// reported in ProcessResult.ExitCode with a nil error; the error is set
// when the process could not be started, was cancelled, or its output
// could not be read.
func (r *ExecRunner) Run(ctx context.Context, name string, args []string) (ProcessResult, error) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	// Interrupt first so the tool can remove its partial output
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = r.KillDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultKillDelay
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return ProcessResult{}, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return ProcessResult{}, fmt.Errorf("stderr pipe: %w", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return ProcessResult{}, fmt.Errorf("start %s: %w", name, err)
	}
	logger.Debug("process started", zap.String("name", name), zap.Int("pid", cmd.Process.Pid), zap.Strings("args", args))

	// A grandchild can keep the pipes open after the tool is killed
	stopWatch := context.AfterFunc(ctx, func() {
		time.AfterFunc(2*cmd.WaitDelay, func() {
			stdout.Close()
			stderr.Close()
		})
	})
	defer stopWatch()

	var outBuf, errBuf bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(&outBuf, stdout)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(&errBuf, stderr)
		return err
	})

	// Pipes must be drained before Wait closes them
	readErr := g.Wait()
	waitErr := cmd.Wait()

	res := ProcessResult{
		ExitCode: -1,
		Stdout:   outBuf.Bytes(),
		Stderr:   errBuf.Bytes(),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	logger.Debug("process exited",
		zap.String("name", name),
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("duration", res.Duration),
	)

	if ctx.Err() != nil {
		return res, fmt.Errorf("%s interrupted: %w", name, ctx.Err())
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return res, fmt.Errorf("wait %s: %w", name, waitErr)
		}
	}
	if readErr != nil && !errors.Is(readErr, os.ErrClosed) {
		return res, fmt.Errorf("read %s output: %w", name, readErr)
	}
	return res, nil
}
