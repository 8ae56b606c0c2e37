// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation for vnote-export.
//
// Command: config [subcommand]
// Short:   View and modify the export defaults
// Aliases: cfg
//
// Subcommands:
//   show (default)      Display the effective configuration
//   init                Write the defaults to the config file
//   path                Show configuration file path
//   get <key>           Print one value
//   set <key> <value>   Set a value and save
//   keys                List every key
//
// Examples:
//   vnote-export config set export.format pdf
//   vnote-export config set pdf.tool_path /usr/local/bin/wkhtmltopdf
//   vnote-export config set pdf.extra_args "--dpi 300"
//   vnote-export config set notebook.extensions .md,.txt
//   vnote-export config get export.output_dir
//
// Flags:
//   --json              Output in JSON format
//   --force             Let init overwrite an existing file
//
// Everything after the key of "config set" is the value, flags included;
// put global flags before the command.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/eqio/vnote/internal/config"
)

// HandleConfig handles the "config" command.
func HandleConfig(app *App, args Args) error {
	p := args.Parser
	switch sub := strings.ToLower(p.Subcommand()); sub {
	case "", "show":
		if args.JSON {
			return NewJSONResponse("config show", app.Config).Encode(app.Stdout)
		}
		showConfig(app)
		return nil

	case "init":
		return initConfig(app, args)

	case "path":
		return configPath(app, args.JSON)

	case "get":
		key := p.Positional(1)
		if key == "" {
			return ErrMissingArgument("key", "vnote-export config get pdf.tool_path")
		}
		val, err := app.Config.Get(key)
		if err != nil {
			return NewValidationErrorWithExample("key", key, err.Error(), "vnote-export config keys")
		}
		if args.JSON {
			return NewJSONResponse("config get", map[string]interface{}{"key": key, "value": val}).Encode(app.Stdout)
		}
		fmt.Fprintln(app.Stdout, formatValue(val))
		return nil

	case "set":
		key, words := setArgs(args.Raw)
		return setConfig(app, key, words)

	case "keys":
		keys := config.GetAllKeys()
		if args.JSON {
			return NewJSONResponse("config keys", keys).Encode(app.Stdout)
		}
		for _, k := range keys {
			fmt.Fprintln(app.Stdout, k)
		}
		return nil

	default:
		return NewValidationErrorWithExample("config subcommand", sub, "unknown subcommand", "show, init, path, get, set or keys")
	}
}

// showConfig prints every key grouped by section.
func showConfig(app *App) {
	w := app.Stdout
	fmt.Fprintln(w, TitleStyle.Render("vnote-export Configuration"))
	fmt.Fprintln(w, RenderSeparator(41))

	section := ""
	for _, key := range config.GetAllKeys() {
		sec, name, ok := strings.Cut(key, ".")
		if !ok {
			continue
		}
		if sec != section {
			section = sec
			fmt.Fprintln(w, SectionStyle.Render("["+sec+"]"))
		}
		val, _ := app.Config.Get(key)
		fmt.Fprintf(w, "  %s %s\n", RenderLabel(name+":", 20), ValueStyle.Render(formatValue(val)))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, SeparatorStyle.Render(strings.Repeat("-", 41)))
	if app.ConfigPath != "" {
		fmt.Fprintf(w, "Config file: %s\n", app.ConfigPath)
	} else {
		fmt.Fprintln(w, DimStyle.Render("No config file; showing defaults (vnote-export config init writes one)"))
	}
}

func initConfig(app *App, args Args) error {
	path := app.ConfigPath
	if path == "" {
		var err error
		if path, err = config.ConfigPathTOML(); err != nil {
			return err
		}
	}
	if _, err := os.Stat(path); err == nil && !args.Parser.BoolFlag("force") {
		return NewValidationErrorWithExample("config", path, "already exists", "vnote-export config init --force")
	}

	fresh := config.Default()
	fresh.SetDefaults()
	if err := config.SaveTOML(fresh, path); err != nil {
		return NewCommandError("config", "init", "cannot write "+path, err)
	}
	app.Config = fresh
	app.ConfigPath = path

	if args.JSON {
		return NewJSONResponse("config init", map[string]string{"path": path}).Encode(app.Stdout)
	}
	fmt.Fprintln(app.Stdout, SuccessStyle.Render("Wrote "+path))
	return nil
}

func configPath(app *App, jsonMode bool) error {
	path := app.ConfigPath
	if path == "" {
		var err error
		if path, err = config.ConfigPathTOML(); err != nil {
			return err
		}
	}
	_, err := os.Stat(path)
	exists := err == nil

	if jsonMode {
		return NewJSONResponse("config path", map[string]interface{}{"path": path, "exists": exists}).Encode(app.Stdout)
	}
	fmt.Fprintln(app.Stdout, path)
	if !exists {
		fmt.Fprintln(os.Stderr, DimStyle.Render("(not created yet)"))
	}
	return nil
}

// setArgs takes the key and value of "config set" from the raw arguments,
// so values that look like flags ("--dpi 300") are kept. Global flags must
// come before the command.
func setArgs(raw []string) (key string, words []string) {
	for i, arg := range raw {
		if strings.EqualFold(arg, "set") {
			rest := raw[i+1:]
			if len(rest) == 0 {
				return "", nil
			}
			return rest[0], rest[1:]
		}
	}
	return "", nil
}

// setConfig sets one key, validates the result and saves it. The value
// words are joined so unquoted "--dpi 300" style values survive.
func setConfig(app *App, key string, words []string) error {
	if key == "" || len(words) == 0 {
		return ErrMissingArgument("key and value", "vnote-export config set export.format html")
	}
	value := strings.Join(words, " ")

	updated := app.Config.Clone()
	if err := updated.Set(key, value); err != nil {
		return NewValidationErrorWithExample("key", key, err.Error(), "vnote-export config keys")
	}
	if err := updated.Validate(); err != nil {
		return flagValidationError(err)
	}

	app.Config = updated
	if err := app.SaveConfig(); err != nil {
		return NewCommandError("config", "set", "cannot save", err)
	}
	fmt.Fprintf(app.Stdout, "%s %s = %s\n", SuccessStyle.Render("[OK]"), key, value)
	return nil
}

// formatValue prints lists comma separated and everything else with %v.
func formatValue(v interface{}) string {
	if list, ok := v.([]string); ok {
		return strings.Join(list, ",")
	}
	return fmt.Sprintf("%v", v)
}
