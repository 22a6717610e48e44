// FILE: override.go
package linelog

import (
	"fmt"
	"strconv"
	"strings"
)

// ApplyOverride applies string key-value overrides to the manager's current configuration.
// Each override should be in the format "key=value".
//
// Example:
//
//	m := linelog.NewManager()
//	err := m.ApplyOverride(
//	    "directory=/var/lib/app/linelog",
//	    "log_keystrokes=true",
//	    "record_format=json",
//	)
func (m *Manager) ApplyOverride(overrides ...string) error {
	cfg := m.GetConfig()

	if err := applyOverrideStrings(cfg, overrides); err != nil {
		return err
	}

	return m.ApplyConfig(cfg)
}

// ParseOverrides applies "key=value" strings on top of cfg and validates the result
func ParseOverrides(cfg *Config, overrides ...string) (*Config, error) {
	out := cfg.Clone()
	if err := applyOverrideStrings(out, overrides); err != nil {
		return nil, err
	}
	if err := out.validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func applyOverrideStrings(cfg *Config, overrides []string) error {
	var errors []error

	for _, override := range overrides {
		key, value, err := parseKeyValue(override)
		if err != nil {
			errors = append(errors, err)
			continue
		}

		if err := applyConfigField(cfg, key, value); err != nil {
			errors = append(errors, err)
		}
	}

	return combineConfigErrors(errors)
}

// combineConfigErrors combines multiple configuration errors into a single error.
func combineConfigErrors(errors []error) error {
	if len(errors) == 0 {
		return nil
	}
	if len(errors) == 1 {
		return errors[0]
	}

	var sb strings.Builder
	sb.WriteString("linelog: multiple configuration errors:")
	for i, err := range errors {
		errMsg := strings.TrimPrefix(err.Error(), "linelog: ")
		sb.WriteString(fmt.Sprintf("\n  %d. %s", i+1, errMsg))
	}
	return fmt.Errorf("%s", sb.String())
}

// applyConfigField applies a single key-value override to a Config.
func applyConfigField(cfg *Config, key, value string) error {
	switch key {
	// Buffers
	case "log_lines":
		return setBool(&cfg.LogLines, key, value)
	case "log_keystrokes":
		return setBool(&cfg.LogKeystrokes, key, value)
	case "line_log_name":
		cfg.LineLogName = value
	case "keystroke_log_name":
		cfg.KeystrokeLogName = value
	case "cursor_jitter":
		return setInt(&cfg.CursorJitter, key, value)
	case "strict_registration":
		return setBool(&cfg.StrictRegistration, key, value)

	// Storage locations
	case "directory":
		cfg.Directory = value
	case "use_external_storage":
		return setBool(&cfg.UseExternalStorage, key, value)
	case "external_directory":
		cfg.ExternalDirectory = value
	case "fallback_directory":
		cfg.FallbackDirectory = value
	case "extension":
		cfg.Extension = value

	// Records
	case "record_format":
		cfg.RecordFormat = value
	case "sanitization":
		cfg.Sanitization = value
	case "encrypt":
		return setBool(&cfg.Encrypt, key, value)

	// Size and retention limits
	case "max_size_kb":
		return setInt(&cfg.MaxSizeKB, key, value)
	case "min_disk_free_kb":
		return setInt(&cfg.MinDiskFreeKB, key, value)
	case "retention_period_hrs":
		floatVal, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmtErrorf("invalid float value for retention_period_hrs '%s': %w", value, err)
		}
		cfg.RetentionPeriodHrs = floatVal

	// Diagnostics
	case "level":
		// Accept both numeric and named values
		if numVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			cfg.Level = numVal
		} else {
			levelVal, err := Level(value)
			if err != nil {
				return fmtErrorf("invalid level value '%s': %w", value, err)
			}
			cfg.Level = levelVal
		}
	case "enable_console":
		return setBool(&cfg.EnableConsole, key, value)
	case "console_target":
		cfg.ConsoleTarget = value
	case "format":
		cfg.Format = value
	case "show_timestamp":
		return setBool(&cfg.ShowTimestamp, key, value)
	case "show_level":
		return setBool(&cfg.ShowLevel, key, value)
	case "timestamp_format":
		cfg.TimestampFormat = value

	default:
		return fmtErrorf("unknown configuration key '%s'", key)
	}

	return nil
}

func setBool(dst *bool, key, value string) error {
	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return fmtErrorf("invalid boolean value for %s '%s': %w", key, value, err)
	}
	*dst = boolVal
	return nil
}

func setInt(dst *int64, key, value string) error {
	intVal, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmtErrorf("invalid integer value for %s '%s': %w", key, value, err)
	}
	*dst = intVal
	return nil
}
