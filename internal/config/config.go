// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/eqio/vnote/internal/export"
	"github.com/eqio/vnote/internal/render"
	"github.com/eqio/vnote/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete vnote-export configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Export holds the default options of a run and the last used output folder
	Export ExportConfig `toml:"export" json:"export"`

	HTML     HTMLConfig     `toml:"html" json:"html"`
	PDF      PDFConfig      `toml:"pdf" json:"pdf"`
	Render   RenderConfig   `toml:"render" json:"render"`
	Notebook NotebookConfig `toml:"notebook" json:"notebook"`
	Browser  BrowserConfig  `toml:"browser" json:"browser"`
	Log      LogConfig      `toml:"log" json:"log"`
	History  HistoryConfig  `toml:"history" json:"history"`
}

// ExportConfig contains the default export options.
type ExportConfig struct {
	// Source is one of "note", "folder", "notebook", "cart"
	Source string `toml:"source" json:"source"`
	// Format is one of "markdown", "html", "pdf"
	Format string `toml:"format" json:"format"`

	Renderer       string `toml:"renderer" json:"renderer"`
	Style          string `toml:"style" json:"style"`
	CodeBlockStyle string `toml:"code_block_style" json:"code_block_style"`
	Background     string `toml:"background" json:"background"`

	ProcessSubfolders bool `toml:"process_subfolders" json:"process_subfolders"`

	// OutputDir is the last output folder; used when none is given
	OutputDir string `toml:"output_dir" json:"output_dir"`
	// RememberLast writes the options of each started run back to the file
	RememberLast bool `toml:"remember_last" json:"remember_last"`
}

// HTMLConfig contains HTML output settings.
type HTMLConfig struct {
	EmbedCSS     bool `toml:"embed_css" json:"embed_css"`
	CompleteHTML bool `toml:"complete_html" json:"complete_html"`
	MIMEHTML     bool `toml:"mime_html" json:"mime_html"`
}

// PDFConfig contains PDF output settings.
type PDFConfig struct {
	UseExternalTool bool   `toml:"use_external_tool" json:"use_external_tool"`
	ToolPath        string `toml:"tool_path" json:"tool_path"`

	EnableBackground bool `toml:"enable_background" json:"enable_background"`
	TableOfContents  bool `toml:"table_of_contents" json:"table_of_contents"`
	// PageNumber is "none", "left", "center" or "right"
	PageNumber string `toml:"page_number" json:"page_number"`
	ExtraArgs  string `toml:"extra_args" json:"extra_args"`

	PageSize    string  `toml:"page_size" json:"page_size"`
	Orientation string  `toml:"orientation" json:"orientation"`
	MarginMM    float64 `toml:"margin_mm" json:"margin_mm"`
}

// RenderConfig contains renderer settings.
type RenderConfig struct {
	// StyleDir holds user stylesheets named <style>.css
	StyleDir  string `toml:"style_dir" json:"style_dir"`
	Sanitize  bool   `toml:"sanitize" json:"sanitize"`
	HardWraps bool   `toml:"hard_wraps" json:"hard_wraps"`
}

// NotebookConfig controls which files count as notes.
type NotebookConfig struct {
	Extensions []string `toml:"extensions" json:"extensions"`
}

// BrowserConfig configures the headless browser used for built-in PDF.
type BrowserConfig struct {
	// ChromePath is the browser executable; empty lets chromedp search
	ChromePath  string `toml:"chrome_path" json:"chrome_path"`
	TimeoutSecs int    `toml:"timeout_secs" json:"timeout_secs"`
}

// LogConfig configures diagnostic logging.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error"
	Level string `toml:"level" json:"level"`
	// File receives JSON logs; empty disables file logging
	File       string `toml:"file" json:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days"`
}

// HistoryConfig configures the run history database.
type HistoryConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled"`
	Path    string `toml:"path" json:"path"`
}

// Default returns a new Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Export: ExportConfig{
			Source:         "note",
			Format:         "markdown",
			Renderer:       "goldmark",
			Style:          render.DefaultStyle,
			CodeBlockStyle: render.DefaultCodeBlockStyle,
			Background:     render.DefaultBackground,
			RememberLast:   true,
		},

		HTML: HTMLConfig{
			EmbedCSS:     true,
			CompleteHTML: true,
		},

		PDF: PDFConfig{
			EnableBackground: true,
			PageNumber:       "none",
			PageSize:         string(export.PageA4),
			Orientation:      "portrait",
			MarginMM:         20,
		},

		Notebook: NotebookConfig{
			Extensions: []string{".md", ".markdown", ".mkd"},
		},

		Browser: BrowserConfig{
			TimeoutSecs: 60,
		},

		Log: LogConfig{
			Level:      "warn",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},

		History: HistoryConfig{
			Enabled: true,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the vnote-export configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".vnote-export"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	var loadErr error

	for _, candidate := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := candidate()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		cfg, err := LoadFromPath(path)
		if err == nil {
			return cfg, nil
		}
		loadErr = err
		break
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Defaults, plus the load error for informational purposes
	return cfg, loadErr
}

// LoadTOML loads configuration from a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON loads configuration from a JSON file into cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file with full
// validation. Keys missing from the file keep their default values.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration to path atomically with 0600
// permissions.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# vnote-export configuration file\n")
	b.WriteString("# Generated by vnote-export - edit with care\n\n")
	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes the configuration as indented JSON.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every enumerated value and numeric range. Renderer and
// style names are checked when a run starts, since user styles can appear
// at any time.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field string, err error) {
		errs = append(errs, ValidationError{Field: field, Message: err.Error()})
	}

	if _, err := export.ParseSource(c.Export.Source); err != nil {
		add("export.source", err)
	}
	if _, err := export.ParseFormat(c.Export.Format); err != nil {
		add("export.format", err)
	}
	if _, err := export.ParsePageNumber(c.PDF.PageNumber); err != nil {
		add("pdf.page_number", err)
	}
	if _, err := export.ParsePageSize(c.PDF.PageSize); err != nil {
		add("pdf.page_size", err)
	}
	if _, err := export.ParseOrientation(c.PDF.Orientation); err != nil {
		add("pdf.orientation", err)
	}
	if c.PDF.MarginMM < 0 {
		add("pdf.margin_mm", errors.New("must not be negative"))
	}
	if _, err := export.SplitArgs(c.PDF.ExtraArgs); err != nil {
		add("pdf.extra_args", err)
	}
	if c.Browser.TimeoutSecs <= 0 {
		add("browser.timeout_secs", errors.New("must be positive"))
	}
	for _, ext := range c.Notebook.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			add("notebook.extensions", fmt.Errorf("%q must start with a dot", ext))
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("log.level", fmt.Errorf("unknown level %q", c.Log.Level))
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		add("log", errors.New("rotation limits must not be negative"))
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills empty values that have a computed default.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Export.Renderer == "" {
		c.Export.Renderer = d.Export.Renderer
	}
	if c.PDF.PageNumber == "" {
		c.PDF.PageNumber = d.PDF.PageNumber
	}
	if c.PDF.PageSize == "" {
		c.PDF.PageSize = d.PDF.PageSize
	}
	if c.PDF.Orientation == "" {
		c.PDF.Orientation = d.PDF.Orientation
	}
	if c.Browser.TimeoutSecs == 0 {
		c.Browser.TimeoutSecs = d.Browser.TimeoutSecs
	}
	if len(c.Notebook.Extensions) == 0 {
		c.Notebook.Extensions = d.Notebook.Extensions
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.History.Path == "" {
		if dir, err := ConfigDir(); err == nil {
			c.History.Path = filepath.Join(dir, "history.db")
		}
	}
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	// VNOTE_EXPORT_OUTPUT
	if out := os.Getenv("VNOTE_EXPORT_OUTPUT"); out != "" {
		c.Export.OutputDir = out
	}

	// VNOTE_EXPORT_FORMAT
	if format := os.Getenv("VNOTE_EXPORT_FORMAT"); format != "" {
		c.Export.Format = format
	}

	// VNOTE_EXPORT_TOOL selects the external PDF tool
	if tool := os.Getenv("VNOTE_EXPORT_TOOL"); tool != "" {
		c.PDF.ToolPath = tool
		c.PDF.UseExternalTool = true
	}

	// VNOTE_EXPORT_LOG_LEVEL
	if level := os.Getenv("VNOTE_EXPORT_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}

	// CHROME_PATH
	if chrome := os.Getenv("CHROME_PATH"); chrome != "" {
		c.Browser.ChromePath = chrome
	}
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// ExportOptions converts the configured defaults into run options.
func (c *Config) ExportOptions() (export.Options, error) {
	opts := export.DefaultOptions()

	src, err := export.ParseSource(c.Export.Source)
	if err != nil {
		return opts, err
	}
	format, err := export.ParseFormat(c.Export.Format)
	if err != nil {
		return opts, err
	}

	opts.Source = src
	opts.ProcessSubfolders = c.Export.ProcessSubfolders
	opts.Render = export.RenderOptions{
		Renderer:       c.Export.Renderer,
		Style:          c.Export.Style,
		CodeBlockStyle: c.Export.CodeBlockStyle,
		Background:     c.Export.Background,
	}

	switch format {
	case export.FormatHTML:
		opts.Target = export.HTMLOptions{
			EmbedCSSStyle: c.HTML.EmbedCSS,
			CompleteHTML:  c.HTML.CompleteHTML,
			MIMEHTML:      c.HTML.MIMEHTML,
		}
	case export.FormatPDF:
		pdf, err := c.pdfOptions()
		if err != nil {
			return opts, err
		}
		opts.Target = pdf
	default:
		opts.Target = export.MarkdownTarget{}
	}
	return opts, nil
}

func (c *Config) pdfOptions() (export.PDFOptions, error) {
	pn, err := export.ParsePageNumber(c.PDF.PageNumber)
	if err != nil {
		return export.PDFOptions{}, err
	}
	size, err := export.ParsePageSize(c.PDF.PageSize)
	if err != nil {
		return export.PDFOptions{}, err
	}
	orientation, err := export.ParseOrientation(c.PDF.Orientation)
	if err != nil {
		return export.PDFOptions{}, err
	}

	layout := export.DefaultPageLayout()
	layout.PageSize = size
	layout.Orientation = orientation
	layout.UniformMargins(c.PDF.MarginMM)

	return export.PDFOptions{
		Layout:                layout,
		UseExternalTool:       c.PDF.UseExternalTool,
		ExternalToolPath:      c.PDF.ToolPath,
		EnableBackground:      c.PDF.EnableBackground,
		EnableTableOfContents: c.PDF.TableOfContents,
		PageNumber:            pn,
		ExtraArguments:        c.PDF.ExtraArgs,
	}, nil
}

// Remember stores opts and outputDir as the new defaults.
func (c *Config) Remember(opts export.Options, outputDir string) {
	c.Export.Source = opts.Source.String()
	c.Export.Format = opts.Format().String()
	c.Export.Renderer = opts.Render.Renderer
	c.Export.Style = opts.Render.Style
	c.Export.CodeBlockStyle = opts.Render.CodeBlockStyle
	c.Export.Background = opts.Render.Background
	c.Export.ProcessSubfolders = opts.ProcessSubfolders
	if outputDir != "" {
		c.Export.OutputDir = outputDir
	}

	switch t := opts.Target.(type) {
	case export.HTMLOptions:
		c.HTML = HTMLConfig{EmbedCSS: t.EmbedCSSStyle, CompleteHTML: t.CompleteHTML, MIMEHTML: t.MIMEHTML}
	case export.PDFOptions:
		c.PDF.UseExternalTool = t.UseExternalTool
		if t.ExternalToolPath != "" {
			c.PDF.ToolPath = t.ExternalToolPath
		}
		c.PDF.EnableBackground = t.EnableBackground
		c.PDF.TableOfContents = t.EnableTableOfContents
		c.PDF.PageNumber = t.PageNumber.String()
		c.PDF.ExtraArgs = t.ExtraArguments
		if t.Layout != nil {
			c.PDF.PageSize = string(t.Layout.PageSize)
			c.PDF.Orientation = strings.ToLower(t.Layout.Orientation.String())
			c.PDF.MarginMM = t.Layout.MarginTop
		}
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "pdf.tool_path").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// fieldByTag finds the field whose toml tag is name.
func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	name = strings.ReplaceAll(strings.ToLower(name), "-", "_")
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("toml") == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strVal)
			if err != nil {
				boolVal = strings.EqualFold(strVal, "yes") || strings.EqualFold(strVal, "on")
			}
			field.SetBool(boolVal)
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				var items []string
				for _, s := range strings.Split(strVal, ",") {
					if s = strings.TrimSpace(s); s != "" {
						items = append(items, s)
					}
				}
				field.Set(reflect.ValueOf(items))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all leaf configuration keys in dot notation.
func GetAllKeys() []string {
	var keys []string
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name := prefix + f.Tag.Get("toml")
			if f.Type.Kind() == reflect.Struct {
				walk(f.Type, name+".")
				continue
			}
			keys = append(keys, name)
		}
	}
	walk(reflect.TypeOf(Config{}), "")
	return keys
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Notebook.Extensions = append([]string(nil), c.Notebook.Extensions...)
	return &clone
}

// String renders the configuration as TOML.
func (c *Config) String() string {
	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(c); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return b.String()
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
			cfg.SetDefaults()
		}
		globalConfigMu.Lock()
		globalConfig = cfg
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigOnce.Do(func() {})
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
