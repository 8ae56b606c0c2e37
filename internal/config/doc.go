// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for
// vnote-export.
//
// Supports both TOML and JSON configuration formats, with defaults,
// environment variable overrides, and validation. The file also keeps the
// last used export options and output folder, written back by the CLI when
// export.remember_last is set.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - ExportConfig, HTMLConfig, PDFConfig: default export options
//   - LogConfig, HistoryConfig, BrowserConfig: ambient services
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (VNOTE_EXPORT_*, CHROME_PATH)
//   - ~/.vnote-export/config.toml
//   - ~/.vnote-export/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	opts, err := cfg.ExportOptions()
package config
