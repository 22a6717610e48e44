// FILE: lixenwraith/linelog/config_test.go
package linelog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.True(t, cfg.LogLines)
	assert.False(t, cfg.LogKeystrokes)
	assert.Equal(t, "lines", cfg.LineLogName)
	assert.Equal(t, "keystrokes", cfg.KeystrokeLogName)
	assert.Equal(t, int64(1), cfg.CursorJitter)
	assert.Equal(t, "./log", cfg.Directory)
	assert.Equal(t, "./log_fallback", cfg.FallbackDirectory)
	assert.False(t, cfg.UseExternalStorage)
	assert.Equal(t, "log", cfg.Extension)
	assert.Equal(t, "txt", cfg.RecordFormat)
	assert.Equal(t, "raw", cfg.Sanitization)
	assert.Equal(t, LevelInfo, cfg.Level)
	assert.Equal(t, "stderr", cfg.ConsoleTarget)
	assert.Equal(t, time.RFC3339Nano, cfg.TimestampFormat)
	assert.NoError(t, cfg.validate())

	// Defaults are copies
	cfg.Directory = "/changed"
	assert.Equal(t, "./log", DefaultConfig().Directory)
}

func TestConfigClone(t *testing.T) {
	cfg1 := DefaultConfig()
	cfg1.Level = LevelDebug
	cfg1.Directory = "/custom/path"

	cfg2 := cfg1.Clone()

	assert.Equal(t, cfg1.Level, cfg2.Level)
	assert.Equal(t, cfg1.Directory, cfg2.Directory)

	cfg1.Level = LevelError
	assert.Equal(t, LevelDebug, cfg2.Level)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		wantError string
	}{
		{
			name:      "valid config",
			modify:    func(c *Config) {},
			wantError: "",
		},
		{
			name:      "empty line log name",
			modify:    func(c *Config) { c.LineLogName = " " },
			wantError: "log names cannot be empty",
		},
		{
			name:      "same log names",
			modify:    func(c *Config) { c.KeystrokeLogName = c.LineLogName },
			wantError: "must differ",
		},
		{
			name:      "path in log name",
			modify:    func(c *Config) { c.LineLogName = "../lines" },
			wantError: "path separators",
		},
		{
			name:      "empty directory",
			modify:    func(c *Config) { c.Directory = "" },
			wantError: "directory cannot be empty",
		},
		{
			name:      "external without directory",
			modify:    func(c *Config) { c.UseExternalStorage = true },
			wantError: "external_directory is required",
		},
		{
			name:      "extension with dot",
			modify:    func(c *Config) { c.Extension = ".log" },
			wantError: "extension should not start with dot",
		},
		{
			name:      "invalid record format",
			modify:    func(c *Config) { c.RecordFormat = "csv" },
			wantError: "invalid record_format",
		},
		{
			name:      "invalid sanitization",
			modify:    func(c *Config) { c.Sanitization = "scrub" },
			wantError: "invalid sanitization",
		},
		{
			name:      "invalid format",
			modify:    func(c *Config) { c.Format = "invalid" },
			wantError: "invalid format",
		},
		{
			name:      "invalid console target",
			modify:    func(c *Config) { c.ConsoleTarget = "invalid" },
			wantError: "invalid console_target",
		},
		{
			name:      "empty timestamp format",
			modify:    func(c *Config) { c.TimestampFormat = "" },
			wantError: "timestamp_format cannot be empty",
		},
		{
			name:      "negative jitter",
			modify:    func(c *Config) { c.CursorJitter = -1 },
			wantError: "cursor_jitter cannot be negative",
		},
		{
			name:      "negative size",
			modify:    func(c *Config) { c.MinDiskFreeKB = -1 },
			wantError: "size limits cannot be negative",
		},
		{
			name:      "negative retention",
			modify:    func(c *Config) { c.RetentionPeriodHrs = -0.5 },
			wantError: "retention_period_hrs cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.validate()

			if tt.wantError == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantError)
			}
		})
	}
}

func TestConfigUnits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSizeKB = 5
	cfg.MinDiskFreeKB = 2
	cfg.RetentionPeriodHrs = 1.5

	assert.Equal(t, int64(5000), cfg.maxSizeBytes())
	assert.Equal(t, int64(2000), cfg.minDiskFreeBytes())
	assert.Equal(t, 90*time.Minute, cfg.retention())
}

func TestNewConfigFromDefaults(t *testing.T) {
	cfg, err := NewConfigFromDefaults(map[string]any{
		"log_keystrokes":       true,
		"cursor_jitter":        3,
		"retention_period_hrs": 2,
		"record_format":        "json",
	})
	require.NoError(t, err)
	assert.True(t, cfg.LogKeystrokes)
	assert.Equal(t, int64(3), cfg.CursorJitter)
	assert.Equal(t, 2.0, cfg.RetentionPeriodHrs)
	assert.Equal(t, "json", cfg.RecordFormat)

	_, err = NewConfigFromDefaults(map[string]any{"unknown_key": 1})
	assert.Error(t, err)

	_, err = NewConfigFromDefaults(map[string]any{"log_lines": "yes"})
	assert.Error(t, err)

	_, err = NewConfigFromDefaults(map[string]any{"record_format": "xml"})
	assert.Error(t, err)
}

func TestNewConfigFromFile(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := NewConfigFromFile(filepath.Join(t.TempDir(), "absent.toml"))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("values from linelog table", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "linelog.toml")
		content := "[linelog]\n" +
			"directory = \"/var/lib/app/linelog\"\n" +
			"log_keystrokes = true\n" +
			"record_format = \"json\"\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg, err := NewConfigFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, "/var/lib/app/linelog", cfg.Directory)
		assert.True(t, cfg.LogKeystrokes)
		assert.Equal(t, "json", cfg.RecordFormat)
		assert.Equal(t, "lines", cfg.LineLogName)
	})
}

func TestParseOverrides(t *testing.T) {
	base := DefaultConfig()

	cfg, err := ParseOverrides(base,
		"log_keystrokes=true",
		"cursor_jitter=4",
		"directory = /tmp/linelog ",
		"retention_period_hrs=0.5",
		"level=warn",
		"use_external_storage=true",
		"external_directory=/mnt/sdcard",
	)
	require.NoError(t, err)
	assert.True(t, cfg.LogKeystrokes)
	assert.Equal(t, int64(4), cfg.CursorJitter)
	assert.Equal(t, "/tmp/linelog", cfg.Directory)
	assert.Equal(t, 0.5, cfg.RetentionPeriodHrs)
	assert.Equal(t, LevelWarn, cfg.Level)
	assert.True(t, cfg.UseExternalStorage)

	// Base is untouched
	assert.False(t, base.LogKeystrokes)

	cfg, err = ParseOverrides(base, "level=-4")
	require.NoError(t, err)
	assert.Equal(t, LevelDebug, cfg.Level)
}

func TestParseOverridesErrors(t *testing.T) {
	tests := []struct {
		name      string
		overrides []string
		wantError string
	}{
		{"missing equals", []string{"log_lines"}, "expected key=value"},
		{"empty key", []string{"=true"}, "key cannot be empty"},
		{"unknown key", []string{"colour=blue"}, "unknown configuration key"},
		{"bad bool", []string{"log_lines=maybe"}, "invalid boolean value"},
		{"bad int", []string{"cursor_jitter=far"}, "invalid integer value"},
		{"bad float", []string{"retention_period_hrs=long"}, "invalid float value"},
		{"bad level", []string{"level=loud"}, "invalid level value"},
		{"fails validation", []string{"record_format=xml"}, "invalid record_format"},
		{"multiple", []string{"a=1", "b=2"}, "multiple configuration errors"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOverrides(DefaultConfig(), tt.overrides...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantError)
		})
	}
}
