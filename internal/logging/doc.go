// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the zap logger used for diagnostics.
//
// Diagnostics are separate from the per-run log lines shown to the user:
// they go to stderr at the configured level and, optionally, to a JSON file
// rotated by lumberjack.
package logging
