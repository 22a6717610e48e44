// FILE: lixenwraith/linelog/builder.go
package linelog

// Builder provides a fluent API for building managers.
// It wraps a Config instance and the collaborators the manager is wired to.
type Builder struct {
	cfg       *Config
	err       error // Accumulate errors for deferred handling
	logger    Logger
	notifier  Notifier
	clock     Clock
	wrapper   WriterWrapper
	locations []Location
}

// NewBuilder creates a new configuration builder with default values.
func NewBuilder() *Builder {
	return &Builder{
		cfg: DefaultConfig(),
	}
}

// Build creates an initialized Manager with the specified configuration.
func (b *Builder) Build() (*Manager, error) {
	if b.err != nil {
		return nil, b.err
	}

	m := NewManager()
	if b.logger != nil {
		m.logger = b.logger
		m.customLogger = true
	}
	m.notifier = b.notifier
	if b.clock != nil {
		m.clock = b.clock
	}
	m.wrapper = b.wrapper
	m.locations = b.locations

	// ApplyConfig validates and rebuilds the collaborators set above
	if err := m.ApplyConfig(b.cfg); err != nil {
		return nil, err
	}
	if err := m.Init(); err != nil {
		return nil, err
	}

	return m, nil
}

// Config replaces the whole configuration.
func (b *Builder) Config(cfg *Config) *Builder {
	if cfg != nil {
		b.cfg = cfg.Clone()
	}
	return b
}

// Override applies "key=value" strings to the configuration.
func (b *Builder) Override(overrides ...string) *Builder {
	if b.err != nil {
		return b
	}
	b.err = applyOverrideStrings(b.cfg, overrides)
	return b
}

// Directory sets the private storage directory.
func (b *Builder) Directory(dir string) *Builder {
	b.cfg.Directory = dir
	return b
}

// ExternalDirectory enables external storage rooted at dir.
func (b *Builder) ExternalDirectory(dir string) *Builder {
	b.cfg.UseExternalStorage = true
	b.cfg.ExternalDirectory = dir
	return b
}

// FallbackDirectory sets the directory tried when external storage fails.
func (b *Builder) FallbackDirectory(dir string) *Builder {
	b.cfg.FallbackDirectory = dir
	return b
}

// Extension sets the log file extension.
func (b *Builder) Extension(ext string) *Builder {
	b.cfg.Extension = ext
	return b
}

// LogLines enables the per-line log.
func (b *Builder) LogLines(enable bool) *Builder {
	b.cfg.LogLines = enable
	return b
}

// LogKeystrokes enables the raw keystroke log.
func (b *Builder) LogKeystrokes(enable bool) *Builder {
	b.cfg.LogKeystrokes = enable
	return b
}

// RecordFormat sets the persisted record format.
func (b *Builder) RecordFormat(format string) *Builder {
	b.cfg.RecordFormat = format
	return b
}

// Sanitization sets the sanitizer preset for line text.
func (b *Builder) Sanitization(policy string) *Builder {
	b.cfg.Sanitization = policy
	return b
}

// CursorJitter sets the cursor report tolerance.
func (b *Builder) CursorJitter(jitter int64) *Builder {
	b.cfg.CursorJitter = jitter
	return b
}

// MaxSizeKB sets the maximum log file size in KB.
func (b *Builder) MaxSizeKB(size int64) *Builder {
	b.cfg.MaxSizeKB = size
	return b
}

// MinDiskFreeKB sets the free space a location must keep.
func (b *Builder) MinDiskFreeKB(size int64) *Builder {
	b.cfg.MinDiskFreeKB = size
	return b
}

// RetentionPeriodHrs sets how long archives are kept.
func (b *Builder) RetentionPeriodHrs(hours float64) *Builder {
	b.cfg.RetentionPeriodHrs = hours
	return b
}

// StrictRegistration makes use of unregistered buffers panic.
func (b *Builder) StrictRegistration(strict bool) *Builder {
	b.cfg.StrictRegistration = strict
	return b
}

// Encrypt requires every log file to be written through wrapper.
func (b *Builder) Encrypt(wrapper WriterWrapper) *Builder {
	b.cfg.Encrypt = true
	b.wrapper = wrapper
	return b
}

// Level sets the diagnostics level.
func (b *Builder) Level(level int64) *Builder {
	b.cfg.Level = level
	return b
}

// LevelString sets the diagnostics level from a string.
func (b *Builder) LevelString(level string) *Builder {
	if b.err != nil {
		return b
	}
	levelVal, err := Level(level)
	if err != nil {
		b.err = err
		return b
	}
	b.cfg.Level = levelVal
	return b
}

// EnableConsole writes diagnostics to the console.
func (b *Builder) EnableConsole(enable bool) *Builder {
	b.cfg.EnableConsole = enable
	return b
}

// Logger replaces the diagnostics logger.
func (b *Builder) Logger(l Logger) *Builder {
	b.logger = l
	return b
}

// Notifier sets the operator notification collaborator.
func (b *Builder) Notifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// Clock sets the time source of session timestamps and archive names.
func (b *Builder) Clock(c Clock) *Builder {
	b.clock = c
	return b
}

// Locations replaces the fallback chain derived from the configuration.
func (b *Builder) Locations(locations ...Location) *Builder {
	b.locations = locations
	return b
}

// Example usage:
// m, err := linelog.NewBuilder().
//
//	Directory("/var/lib/app/linelog").
//	LogKeystrokes(true).
//	RecordFormat("json").
//	Build()
//
// if err == nil {
//
//	 defer m.Shutdown()
//	 lines := m.NewLineBuffer()
//	 m.StartLine(linelog.FieldClassification{Class: linelog.ClassText})
//	 lines.InsertCommittedText("hello")
//	 m.FinishLine()
//
// }
