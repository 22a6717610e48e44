// FILE: config.go
package linelog

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/lixenwraith/config"
	"github.com/lixenwraith/linelog/sanitizer"
)

// Config holds all manager configuration values
type Config struct {
	// Buffers
	LogLines           bool   `toml:"log_lines"`           // Enable the per-line log
	LogKeystrokes      bool   `toml:"log_keystrokes"`      // Enable the raw keystroke log
	LineLogName        string `toml:"line_log_name"`       // Base name of the per-line log file
	KeystrokeLogName   string `toml:"keystroke_log_name"`  // Base name of the keystroke log file
	CursorJitter       int64  `toml:"cursor_jitter"`       // Cursor report tolerance in characters
	StrictRegistration bool   `toml:"strict_registration"` // Panic on unregistered buffer use

	// Storage locations
	Directory          string `toml:"directory"`            // Private storage, terminal fallback
	UseExternalStorage bool   `toml:"use_external_storage"` // Prefer externally visible storage
	ExternalDirectory  string `toml:"external_directory"`   // Must already exist to be used
	FallbackDirectory  string `toml:"fallback_directory"`   // Created on demand
	Extension          string `toml:"extension"`

	// Records
	RecordFormat string `toml:"record_format"` // "txt" or "json"
	Sanitization string `toml:"sanitization"`  // Sanitizer preset applied to line text
	Encrypt      bool   `toml:"encrypt"`       // Require an encrypting writer wrapper

	// Size and retention limits
	MaxSizeKB          int64   `toml:"max_size_kb"`          // Rotate above this size (0=disabled)
	MinDiskFreeKB      int64   `toml:"min_disk_free_kb"`     // Location rejected below this (0=disabled)
	RetentionPeriodHrs float64 `toml:"retention_period_hrs"` // Hours to keep archives (0=disabled)

	// Diagnostics
	Level           int64  `toml:"level"`
	EnableConsole   bool   `toml:"enable_console"` // Write diagnostics to the console
	ConsoleTarget   string `toml:"console_target"` // "stdout" or "stderr"
	Format          string `toml:"format"`         // Diagnostic format: "txt", "json", or "raw"
	ShowTimestamp   bool   `toml:"show_timestamp"`
	ShowLevel       bool   `toml:"show_level"`
	TimestampFormat string `toml:"timestamp_format"`
}

// defaultConfig is the single source for all configurable default values
var defaultConfig = Config{
	// Buffers
	LogLines:           true,
	LogKeystrokes:      false,
	LineLogName:        DefaultLineLogName,
	KeystrokeLogName:   DefaultKeystrokeLogName,
	CursorJitter:       1,
	StrictRegistration: false,

	// Storage locations
	Directory:          "./log",
	UseExternalStorage: false,
	ExternalDirectory:  "",
	FallbackDirectory:  "./log_fallback",
	Extension:          "log",

	// Records
	RecordFormat: "txt",
	Sanitization: "raw",
	Encrypt:      false,

	// Size and retention limits
	MaxSizeKB:          1000,
	MinDiskFreeKB:      0,
	RetentionPeriodHrs: 0.0,

	// Diagnostics
	Level:           LevelInfo,
	EnableConsole:   false,
	ConsoleTarget:   "stderr",
	Format:          "txt",
	ShowTimestamp:   true,
	ShowLevel:       true,
	TimestampFormat: time.RFC3339Nano,
}

// DefaultConfig returns a copy of the default configuration
func DefaultConfig() *Config {
	copiedConfig := defaultConfig
	return &copiedConfig
}

// NewConfigFromFile loads the [linelog] table of a TOML file and returns a validated Config.
// A missing file yields the defaults.
func NewConfigFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	loader := config.New()

	if err := loader.RegisterStruct("linelog.", *cfg); err != nil {
		return nil, fmt.Errorf("failed to register config struct: %w", err)
	}

	if err := loader.Load(path, nil); err != nil && !errors.Is(err, config.ErrConfigNotFound) {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	if err := extractConfig(loader, "linelog.", cfg); err != nil {
		return nil, fmt.Errorf("failed to extract config values: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewConfigFromDefaults creates a Config with default values and applies typed overrides
func NewConfigFromDefaults(overrides map[string]any) (*Config, error) {
	cfg := DefaultConfig()

	if err := applyOverrides(cfg, overrides); err != nil {
		return nil, fmt.Errorf("failed to apply overrides: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// extractConfig copies loader values into cfg, keyed by toml tag
func extractConfig(loader *config.Config, prefix string, cfg *Config) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tomlTag := field.Tag.Get("toml")
		if tomlTag == "" {
			continue
		}

		val, found := loader.Get(prefix + tomlTag)
		if !found {
			continue
		}

		if err := setFieldValue(v.Field(i), val); err != nil {
			return fmt.Errorf("failed to set field %s: %w", field.Name, err)
		}
	}

	return nil
}

// applyOverrides applies a map of overrides to the Config struct
func applyOverrides(cfg *Config, overrides map[string]any) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()

	fieldMap := make(map[string]reflect.Value)
	for i := 0; i < t.NumField(); i++ {
		if tomlTag := t.Field(i).Tag.Get("toml"); tomlTag != "" {
			fieldMap[tomlTag] = v.Field(i)
		}
	}

	for key, value := range overrides {
		fieldValue, exists := fieldMap[key]
		if !exists {
			return fmt.Errorf("unknown config key: %s", key)
		}

		if err := setFieldValue(fieldValue, value); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}

	return nil
}

// setFieldValue sets a reflect.Value with proper type conversion
func setFieldValue(field reflect.Value, value any) error {
	switch field.Kind() {
	case reflect.String:
		strVal, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		field.SetString(strVal)

	case reflect.Int64:
		switch v := value.(type) {
		case int64:
			field.SetInt(v)
		case int:
			field.SetInt(int64(v))
		default:
			return fmt.Errorf("expected int64, got %T", value)
		}

	case reflect.Float64:
		switch v := value.(type) {
		case float64:
			field.SetFloat(v)
		case int64:
			field.SetFloat(float64(v))
		case int:
			field.SetFloat(float64(v))
		default:
			return fmt.Errorf("expected float64, got %T", value)
		}

	case reflect.Bool:
		boolVal, ok := value.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", value)
		}
		field.SetBool(boolVal)

	default:
		return fmt.Errorf("unsupported field type: %v", field.Kind())
	}

	return nil
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if strings.TrimSpace(c.LineLogName) == "" || strings.TrimSpace(c.KeystrokeLogName) == "" {
		return fmtErrorf("log names cannot be empty")
	}

	if c.LineLogName == c.KeystrokeLogName {
		return fmtErrorf("line_log_name and keystroke_log_name must differ: '%s'", c.LineLogName)
	}

	if strings.ContainsAny(c.LineLogName+c.KeystrokeLogName, `/\`) {
		return fmtErrorf("log names cannot contain path separators")
	}

	if strings.TrimSpace(c.Directory) == "" {
		return fmtErrorf("directory cannot be empty")
	}

	if c.UseExternalStorage && strings.TrimSpace(c.ExternalDirectory) == "" {
		return fmtErrorf("external_directory is required when use_external_storage is set")
	}

	if strings.HasPrefix(c.Extension, ".") {
		return fmtErrorf("extension should not start with dot: %s", c.Extension)
	}

	if c.RecordFormat != "txt" && c.RecordFormat != "json" {
		return fmtErrorf("invalid record_format: '%s' (use txt or json)", c.RecordFormat)
	}

	if !sanitizer.IsPolicy(c.Sanitization) {
		return fmtErrorf("invalid sanitization: '%s' (use raw, txt, json, or line)", c.Sanitization)
	}

	if c.Format != "txt" && c.Format != "json" && c.Format != "raw" {
		return fmtErrorf("invalid format: '%s' (use txt, json, or raw)", c.Format)
	}

	if c.ConsoleTarget != "stdout" && c.ConsoleTarget != "stderr" {
		return fmtErrorf("invalid console_target: '%s' (use stdout or stderr)", c.ConsoleTarget)
	}

	if strings.TrimSpace(c.TimestampFormat) == "" {
		return fmtErrorf("timestamp_format cannot be empty")
	}

	if c.CursorJitter < 0 {
		return fmtErrorf("cursor_jitter cannot be negative: %d", c.CursorJitter)
	}

	if c.MaxSizeKB < 0 || c.MinDiskFreeKB < 0 {
		return fmtErrorf("size limits cannot be negative")
	}

	if c.RetentionPeriodHrs < 0 {
		return fmtErrorf("retention_period_hrs cannot be negative")
	}

	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	copiedConfig := *c
	return &copiedConfig
}

// maxSizeBytes returns the rotation threshold in bytes
func (c *Config) maxSizeBytes() int64 {
	return c.MaxSizeKB * sizeMultiplier
}

// minDiskFreeBytes returns the free space a location must keep
func (c *Config) minDiskFreeBytes() int64 {
	return c.MinDiskFreeKB * sizeMultiplier
}

// retention returns the archive retention period
func (c *Config) retention() time.Duration {
	return time.Duration(c.RetentionPeriodHrs * float64(time.Hour))
}
