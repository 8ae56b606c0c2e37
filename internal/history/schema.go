// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

const (
	// SchemaVersion tracks the database schema version for migrations
	SchemaVersion = 1
)

// Schema is the run history schema.
const Schema = `
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

-- One row per finished run
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    state TEXT NOT NULL,        -- Completed, Cancelled, Failed
    source TEXT NOT NULL,       -- note, folder, notebook, cart
    format TEXT NOT NULL,       -- markdown, html, pdf
    output_root TEXT NOT NULL,
    files_total INTEGER NOT NULL,
    files_attempted INTEGER NOT NULL,
    files_succeeded INTEGER NOT NULL,
    files_failed INTEGER NOT NULL,
    error TEXT,                 -- configuration error of a failed run
    started_at INTEGER NOT NULL,  -- Unix milliseconds
    finished_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_finished_at ON runs(finished_at);

-- Per-note failures of a run, in the order they happened
CREATE TABLE IF NOT EXISTS run_errors (
    run_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    rel_path TEXT NOT NULL,
    message TEXT NOT NULL,
    PRIMARY KEY (run_id, seq),
    FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
) WITHOUT ROWID;
`

// InitMetadata seeds the metadata table.
const InitMetadata = `
INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '1');
`
