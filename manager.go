// FILE: lixenwraith/linelog/manager.go
package linelog

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/linelog/formatter"
	"github.com/lixenwraith/linelog/sanitizer"
)

// Manager coordinates line sessions, privacy and persistence for its registered
// buffers. It is owned by the host and follows a single writer model: session and
// buffer calls must come from one goroutine. GetConfig may be called concurrently.
type Manager struct {
	currentConfig atomic.Value // stores *Config
	state         State

	logger       Logger
	customLogger bool
	notifier     Notifier
	clock        Clock
	wrapper      WriterWrapper
	locations    []Location // nil means derived from config

	resolver  *Resolver
	formatter *formatter.Formatter

	buffers []Buffer
	owned   []Buffer // created by NewLineBuffer and NewKeystrokeBuffer
	entries map[Buffer]*registration
	sinks   map[string]*Sink
	session *lineSession
}

// lineSession is one episode of entry into a focused field
type lineSession struct {
	start   time.Time
	private bool
	field   FieldClassification
}

// registration binds a buffer to its sink. A nil sink means storage was
// unavailable and the buffer's records are dropped.
type registration struct {
	sink *Sink
	err  error
}

// NewManager creates a Manager with default settings. It must be initialized with Init.
func NewManager() *Manager {
	m := &Manager{
		clock:   time.Now,
		entries: make(map[Buffer]*registration),
		sinks:   make(map[string]*Sink),
	}
	cfg := DefaultConfig()
	m.currentConfig.Store(cfg)
	m.rebuild(cfg)
	return m
}

// ApplyConfig validates and applies cfg. Buffers created by the manager pick up the
// new log switches, names and cursor jitter: disabled ones are cleared and
// unregistered, enabled ones are registered. On an initialized manager all sinks
// are closed and every registered buffer's destination is resolved again.
func (m *Manager) ApplyConfig(cfg *Config) error {
	if cfg == nil {
		return fmtErrorf("configuration cannot be nil")
	}
	if err := cfg.validate(); err != nil {
		return fmt.Errorf("linelog: invalid configuration: %w", err)
	}

	cfg = cfg.Clone()
	m.currentConfig.Store(cfg)
	m.rebuild(cfg)

	if !m.state.IsInitialized.Load() {
		return nil
	}
	enabled := m.applyBufferConfig(cfg)
	err := m.reresolve()
	for _, b := range enabled {
		m.RegisterBuffer(b)
	}
	return err
}

// applyBufferConfig updates the buffers the manager created and unregisters the
// disabled ones. It returns the enabled buffers that are not registered yet.
func (m *Manager) applyBufferConfig(cfg *Config) []Buffer {
	var enabled []Buffer
	for _, b := range m.owned {
		switch buf := b.(type) {
		case *LineBuffer:
			buf.filename = cfg.LineLogName
			buf.jitter = max(int(cfg.CursorJitter), 0)
			buf.SetAllowed(cfg.LogLines)
		case *KeystrokeBuffer:
			buf.filename = cfg.KeystrokeLogName
			buf.SetAllowed(cfg.LogKeystrokes)
		}

		_, registered := m.entries[b]
		switch {
		case registered && !b.Allowed():
			b.Clear()
			_ = m.UnregisterBuffer(b)
		case !registered && b.Allowed():
			enabled = append(enabled, b)
		}
	}
	return enabled
}

// GetConfig returns a copy of current configuration
func (m *Manager) GetConfig() *Config {
	return m.getConfig().Clone()
}

func (m *Manager) getConfig() *Config {
	return m.currentConfig.Load().(*Config)
}

// rebuild derives the logger, record formatter and resolver from cfg
func (m *Manager) rebuild(cfg *Config) {
	if !m.customLogger {
		m.logger = NewConsoleLogger(cfg, nil)
	}
	notifier := m.notifier
	if notifier == nil {
		notifier = logNotifier{logger: m.logger}
	}

	san := sanitizer.New().Policy(sanitizer.PolicyPreset(cfg.Sanitization))
	m.formatter = formatter.New(san).Type(cfg.RecordFormat)

	opts := []ResolverOption{
		WithLogger(m.logger),
		WithNotifier(notifier),
		WithClock(m.clock),
		WithWriterWrapper(m.wrapper),
		withState(&m.state),
	}
	if m.locations != nil {
		opts = append(opts, WithLocations(m.locations...))
	}
	m.resolver = NewResolver(cfg, opts...)
}

// Init starts the manager's lifecycle. Calling it again is a no-op.
func (m *Manager) Init() error {
	if m.state.IsInitialized.Load() {
		return nil
	}
	if len(m.resolver.locations) == 0 {
		return fmtErrorf("no storage locations configured")
	}
	m.state.ShutdownCalled.Store(false)
	m.state.IsInitialized.Store(true)
	m.logger.Debug("linelog manager initialized")
	return nil
}

// Shutdown closes every open sink and unregisters all buffers. Pending buffer
// content is not flushed. Sinks that failed to open are skipped.
func (m *Manager) Shutdown() error {
	if !m.state.IsInitialized.Load() {
		return nil
	}
	m.state.ShutdownCalled.Store(true)

	err := m.closeSinks()

	m.buffers = nil
	m.owned = nil
	m.entries = make(map[Buffer]*registration)
	m.session = nil
	m.state.IsInitialized.Store(false)
	return err
}

func (m *Manager) closeSinks() error {
	var finalErr error
	for name, sink := range m.sinks {
		if err := sink.Close(); err != nil {
			finalErr = combineErrors(finalErr, err)
		}
		delete(m.sinks, name)
	}
	return finalErr
}

// reresolve reopens destinations after a configuration change
func (m *Manager) reresolve() error {
	err := m.closeSinks()
	for _, b := range m.buffers {
		reg := m.entries[b]
		reg.sink, reg.err = m.ResolveLogDestination(b.Filename())
		if reg.err != nil {
			m.reportUnavailable(b, reg.err)
		}
	}
	return err
}

// ResolveLogDestination returns the sink for a logical log name, resolving it through
// the fallback chain on first use. Resolution failures wrap ErrStorageUnavailable.
func (m *Manager) ResolveLogDestination(name string) (*Sink, error) {
	if !m.state.IsInitialized.Load() {
		return nil, ErrNotInitialized
	}
	if sink, ok := m.sinks[name]; ok && !sink.closed {
		return sink, nil
	}

	sink, err := m.resolver.Open(name)
	if err != nil {
		return nil, err
	}
	m.sinks[name] = sink
	return sink, nil
}

// RegisterBuffer adds buf to the registry if it reports itself allowed. Its
// destination is resolved right away. A buffer whose storage is unavailable stays
// registered and silently drops its records.
func (m *Manager) RegisterBuffer(buf Buffer) bool {
	if buf == nil || !buf.Allowed() {
		return false
	}
	if !m.state.IsInitialized.Load() {
		m.logger.Warn("buffer registration before init", "buffer", buf.Filename())
		return false
	}
	if _, ok := m.entries[buf]; ok {
		return true
	}

	reg := &registration{}
	reg.sink, reg.err = m.ResolveLogDestination(buf.Filename())
	if reg.err != nil {
		m.reportUnavailable(buf, reg.err)
	}

	m.entries[buf] = reg
	m.buffers = append(m.buffers, buf)
	return true
}

func (m *Manager) reportUnavailable(buf Buffer, err error) {
	m.logger.Error("log storage unavailable, records will be dropped", "buffer", buf.Filename(), "error", err)
	if m.notifier != nil {
		m.notifier.NotifyFailure(buf.Filename(), err)
	}
}

// UnregisterBuffer removes buf from the registry. Its sink stays open until Shutdown.
func (m *Manager) UnregisterBuffer(buf Buffer) error {
	if _, ok := m.entries[buf]; !ok {
		if m.getConfig().StrictRegistration {
			panic(ErrBufferNotRegistered)
		}
		return ErrBufferNotRegistered
	}

	delete(m.entries, buf)
	for i, b := range m.buffers {
		if b == buf {
			m.buffers = append(m.buffers[:i], m.buffers[i+1:]...)
			break
		}
	}
	return nil
}

// NewLineBuffer creates a line buffer gated by the manager and registers it when
// line logging is enabled
func (m *Manager) NewLineBuffer() *LineBuffer {
	cfg := m.getConfig()
	b := NewLineBuffer(m, cfg.LineLogName, int(cfg.CursorJitter))
	b.SetAllowed(cfg.LogLines)
	m.owned = append(m.owned, b)
	m.RegisterBuffer(b)
	return b
}

// NewKeystrokeBuffer creates a keystroke buffer gated by the manager and registers
// it when keystroke logging is enabled
func (m *Manager) NewKeystrokeBuffer() *KeystrokeBuffer {
	cfg := m.getConfig()
	b := NewKeystrokeBuffer(m, cfg.KeystrokeLogName)
	b.SetAllowed(cfg.LogKeystrokes)
	m.owned = append(m.owned, b)
	m.RegisterBuffer(b)
	return b
}

// IsRegistered reports whether buf is in the registry
func (m *Manager) IsRegistered(buf Buffer) bool {
	_, ok := m.entries[buf]
	return ok
}

// StartLine begins a session for a newly focused field. Pending content of the
// previous session is flushed first. Privacy is decided here and held until the
// next StartLine. Only ErrEncodingFailure is returned.
func (m *Manager) StartLine(fc FieldClassification) error {
	var err error
	if m.session != nil {
		err = m.flush(m.clock())
	}

	m.session = &lineSession{
		start:   m.clock(),
		private: ClassifyPrivacy(fc),
		field:   fc,
	}
	for _, b := range m.buffers {
		b.StartNewLine()
	}
	return err
}

// FinishLine persists every non-empty buffer of a non-private session as
// "[start - end] contents" and clears all buffers. The field stays focused: the
// next line keeps the session's privacy and starts now. Write failures are logged,
// only ErrEncodingFailure is returned.
func (m *Manager) FinishLine() error {
	if m.session == nil {
		for _, b := range m.buffers {
			b.Clear()
		}
		return nil
	}

	end := m.clock()
	err := m.flush(end)
	m.session.start = end
	for _, b := range m.buffers {
		b.StartNewLine()
	}
	return err
}

// EndSession flushes like FinishLine and drops the session. Until the next
// StartLine privacy mode is on.
func (m *Manager) EndSession() error {
	err := m.FinishLine()
	m.session = nil
	return err
}

// ClassifyPrivacy reports whether fc would start a private session
func (m *Manager) ClassifyPrivacy(fc FieldClassification) bool {
	return ClassifyPrivacy(fc)
}

// PrivacyModeEnabled reports whether mutation and persistence are suppressed.
// Without a session nothing is classified, so privacy is on.
func (m *Manager) PrivacyModeEnabled() bool {
	return m.session == nil || m.session.private
}

// CurrentField returns the classification of the active session
func (m *Manager) CurrentField() (FieldClassification, bool) {
	if m.session == nil {
		return FieldClassification{}, false
	}
	return m.session.field, true
}

// LoggingEnabled implements Gate. Unregistered buffers are never enabled.
func (m *Manager) LoggingEnabled(b Buffer) bool {
	if _, ok := m.entries[b]; !ok {
		if m.getConfig().StrictRegistration {
			panic(ErrBufferNotRegistered)
		}
		return false
	}
	return !m.PrivacyModeEnabled()
}

// Export finalizes the active file of a logical log for upload and opens a fresh
// one. It returns the path of the closed file.
func (m *Manager) Export(filename string) (string, error) {
	sink, ok := m.sinks[filename]
	if !ok || sink.closed {
		return "", fmt.Errorf("%w: no open sink for '%s'", ErrStorageUnavailable, filename)
	}
	path, err := sink.Export()
	if err != nil {
		return "", err
	}
	m.logger.Info("log file exported", "buffer", filename, "path", path)
	return path, nil
}

// Stats returns a snapshot of the manager's counters
func (m *Manager) Stats() Stats {
	stats := m.state.snapshot()
	stats.Buffers = len(m.buffers)
	for _, sink := range m.sinks {
		if !sink.closed {
			stats.OpenSinks++
		}
	}
	return stats
}
