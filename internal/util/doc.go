// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides file and string helpers shared by the exporter and
// the terminal front ends.
//
// # Key Functions
//
// File Operations:
//   - AtomicWrite: Crash-safe streaming write (temp file, fsync, rename)
//   - AtomicWriteFile, AtomicCopyFile: Convenience wrappers
//   - TempSibling, AtomicRename: Two-phase writes for external producers
//
// String Utilities:
//   - TruncateWidth: Display-width aware truncation with ellipsis
//   - TruncatePathLeft: Keeps the tail of a long path visible
//
// # Usage
//
//	// Write an export result atomically
//	err := util.AtomicWriteFile(path, data, 0644)
//
//	// Let wkhtmltopdf write to a temp file, then publish it
//	tmp, _ := util.TempSibling(path, ".pdf")
//	// ... run the tool with tmp as output ...
//	err = util.AtomicRename(tmp, path, 0644)
package util
