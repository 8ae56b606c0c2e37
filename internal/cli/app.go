// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Per-invocation environment shared by the command handlers.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/eqio/vnote/internal/config"
	"github.com/eqio/vnote/internal/history"
	"github.com/eqio/vnote/internal/logging"
)

// App is what every command needs: the loaded configuration, where it came
// from, a logger and the output streams.
type App struct {
	Config     *config.Config
	ConfigPath string // empty when running on defaults
	Logger     *zap.Logger

	Stdout io.Writer
	Stderr io.Writer

	closeLog func()

	// brokenFile is set when the default config file could not be loaded;
	// it is then never overwritten
	brokenFile error
}

// NewApp loads the configuration named by args (or the default location)
// and builds the logger. A broken file named by --config is an error; a
// broken default file is reported and defaults are used.
func NewApp(args Args) (*App, error) {
	app := &App{Stdout: os.Stdout, Stderr: os.Stderr}
	var loadErr error

	if args.ConfigPath != "" {
		cfg, err := config.LoadFromPath(args.ConfigPath)
		if err != nil {
			return nil, err
		}
		app.Config = cfg
		app.ConfigPath = args.ConfigPath
	} else {
		cfg, err := config.Load()
		if cfg == nil {
			return nil, err
		}
		loadErr = err
		app.Config = cfg
		if path, err := config.ConfigPathTOML(); err == nil {
			if _, statErr := os.Stat(path); statErr == nil {
				app.ConfigPath = path
			}
		}
	}
	config.SetGlobal(app.Config)

	logCfg := app.Config.Log
	switch {
	case args.Verbose:
		logCfg.Level = "debug"
	case args.Quiet:
		logCfg.Level = "error"
	}
	logger, closeLog, err := logging.New(logCfg, app.Stderr)
	if err != nil {
		return nil, err
	}
	app.Logger = logger
	app.closeLog = closeLog

	if loadErr != nil {
		logger.Warn("config file ignored, using defaults", zap.Error(loadErr))
		app.ConfigPath = ""
		app.brokenFile = loadErr
	}
	return app, nil
}

// Close flushes the logger.
func (a *App) Close() {
	if a.closeLog != nil {
		a.closeLog()
	}
}

// OpenHistory opens the run history, or returns nil when it is disabled.
func (a *App) OpenHistory() (*history.Store, error) {
	if !a.Config.History.Enabled {
		return nil, nil
	}
	if err := config.EnsureConfigDir(); err != nil {
		return nil, err
	}
	return history.Open(a.Config.History.Path, a.Logger)
}

// SaveConfig writes the configuration back to where it was loaded from,
// or to the default TOML path.
func (a *App) SaveConfig() error {
	if a.brokenFile != nil {
		return fmt.Errorf("not overwriting unreadable config: %w", a.brokenFile)
	}
	path := a.ConfigPath
	if path == "" {
		var err error
		path, err = config.ConfigPathTOML()
		if err != nil {
			return err
		}
	}
	if err := config.SaveTOML(a.Config, path); err != nil {
		return err
	}
	a.ConfigPath = path
	return nil
}

// Run dispatches cmd. main calls it once per invocation.
func Run(ctx context.Context, cmd Command, args Args) error {
	switch cmd {
	case CmdHelp:
		PrintUsage()
		return nil
	case CmdVersion:
		PrintVersion()
		return nil
	case CmdUnknown:
		return UnknownCommandError(args)
	}

	app, err := NewApp(args)
	if err != nil {
		var verrs config.ValidateErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("config: %w", err)
		}
		return err
	}
	defer app.Close()

	switch cmd {
	case CmdExport:
		return HandleExport(ctx, app, args)
	case CmdPreview:
		return HandlePreview(ctx, app, args)
	case CmdWatch:
		return HandleWatch(ctx, app, args)
	case CmdHistory:
		return HandleHistory(ctx, app, args)
	case CmdConfig:
		return HandleConfig(app, args)
	default:
		return UnknownCommandError(args)
	}
}
