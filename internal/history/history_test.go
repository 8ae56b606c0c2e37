// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eqio/vnote/internal/export"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "history.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func summary(id string, finished time.Time) export.Summary {
	return export.Summary{
		ID:             id,
		State:          export.StateCompleted,
		Source:         export.SourceCurrentFolder,
		Format:         export.FormatHTML,
		OutputRoot:     "/tmp/out",
		FilesTotal:     3,
		FilesAttempted: 3,
		FilesSucceeded: 1,
		Errors: []export.FileError{
			{RelPath: "b.md", Message: "render: boom"},
			{RelPath: "sub/c.md", Message: "cannot read note"},
		},
		StartedAt:  finished.Add(-2 * time.Second),
		FinishedAt: finished,
	}
}

func TestStore_RecordAndGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	now := time.UnixMilli(time.Now().UnixMilli())

	require.NoError(t, s.Record(ctx, summary("run-1", now)))

	rec, err := s.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, export.StateCompleted, rec.State)
	assert.Equal(t, "folder", rec.Source)
	assert.Equal(t, "html", rec.Format)
	assert.Equal(t, 2, rec.Failed)
	assert.Equal(t, 2*time.Second, rec.Duration())
	assert.True(t, now.Equal(rec.FinishedAt))
	require.Len(t, rec.Errors, 2)
	assert.Equal(t, "b.md", rec.Errors[0].RelPath)
	assert.Equal(t, "sub/c.md", rec.Errors[1].RelPath)
}

func TestStore_FailedRunKeepsError(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	sum := summary("run-f", time.Now())
	sum.State = export.StateFailed
	sum.Errors = nil
	sum.Err = &export.ConfigError{Field: "pdf.tool_path", Reason: "not found"}
	require.NoError(t, s.Record(ctx, sum))

	rec, err := s.Get(ctx, "run-f")
	require.NoError(t, err)
	assert.Equal(t, export.StateFailed, rec.State)
	assert.Contains(t, rec.Error, "pdf.tool_path")
	assert.Empty(t, rec.Errors)
}

func TestStore_RejectsRunningRun(t *testing.T) {
	s := openStore(t)
	sum := summary("run-r", time.Now())
	sum.State = export.StateRunning
	assert.Error(t, s.Record(context.Background(), sum))
}

func TestStore_RecentAndPrune(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record(ctx, summary(fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Minute))))
	}

	recent, err := s.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "run-4", recent[0].ID)
	assert.Equal(t, "run-2", recent[2].ID)

	removed, err := s.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	_, err = s.Get(ctx, "run-0")
	assert.True(t, errors.Is(err, ErrNotFound))

	all, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
