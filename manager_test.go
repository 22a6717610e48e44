// FILE: lixenwraith/linelog/manager_test.go
package linelog

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced Clock
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 30, 0, 0, time.Local)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// recordingNotifier keeps every notification
type recordingNotifier struct {
	locations map[string]string
	failures  map[string][]error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		locations: make(map[string]string),
		failures:  make(map[string][]error),
	}
}

func (n *recordingNotifier) NotifyLocation(buffer, path string) {
	n.locations[buffer] = path
}

func (n *recordingNotifier) NotifyFailure(buffer string, err error) {
	n.failures[buffer] = append(n.failures[buffer], err)
}

// stubBuffer is a minimal Buffer with fixed contents
type stubBuffer struct {
	name     string
	contents string
	cleared  int
}

func (b *stubBuffer) Allowed() bool    { return true }
func (b *stubBuffer) Filename() string { return b.name }
func (b *stubBuffer) Contents() string { return b.contents }
func (b *stubBuffer) Clear()           { b.contents = ""; b.cleared++ }
func (b *stubBuffer) StartNewLine()    {}

var (
	textField     = FieldClassification{Class: ClassText, Variation: VariationNone}
	passwordField = FieldClassification{Class: ClassText, Variation: VariationPassword}
)

// createTestManager creates an initialized manager in a temp directory
func createTestManager(t *testing.T, configure ...func(*Builder)) (*Manager, string, *fakeClock) {
	t.Helper()
	tmpDir := t.TempDir()
	clock := newFakeClock()

	b := NewBuilder().
		Directory(tmpDir).
		Clock(clock.Now)
	for _, fn := range configure {
		fn(b)
	}

	m, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown() })

	return m, tmpDir, clock
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

var recordPattern = regexp.MustCompile(`^\[(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}) - (\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})\] (.*)\n$`)

func TestManagerPersistsCompletedLine(t *testing.T) {
	m, tmpDir, clock := createTestManager(t)
	lines := m.NewLineBuffer()

	require.NoError(t, m.StartLine(textField))
	lines.InsertCommittedText("hello")
	clock.Advance(3 * time.Second)
	lines.InsertCommittedText(" world")
	clock.Advance(2 * time.Second)
	require.NoError(t, m.FinishLine())

	content := readLog(t, filepath.Join(tmpDir, "lines.log"))
	match := recordPattern.FindStringSubmatch(content)
	require.NotNil(t, match, "unexpected record %q", content)

	start, err := time.ParseInLocation("2006-01-02 15:04:05", match[1], time.Local)
	require.NoError(t, err)
	end, err := time.ParseInLocation("2006-01-02 15:04:05", match[2], time.Local)
	require.NoError(t, err)

	assert.False(t, end.Before(start))
	assert.Equal(t, 5*time.Second, end.Sub(start))
	assert.Equal(t, "hello world", match[3])
	assert.Equal(t, "[2024-03-01 09:30:00 - 2024-03-01 09:30:05] hello world\n", content)

	assert.Equal(t, "", lines.Contents())
	assert.Equal(t, uint64(1), m.Stats().LinesWritten)
}

func TestManagerPrivateFieldWritesNothing(t *testing.T) {
	m, tmpDir, _ := createTestManager(t)
	lines := m.NewLineBuffer()

	require.NoError(t, m.StartLine(passwordField))
	assert.True(t, m.PrivacyModeEnabled())

	lines.InsertCommittedText("secret")
	assert.Equal(t, "", lines.Contents())

	require.NoError(t, m.FinishLine())

	assert.Equal(t, "", readLog(t, filepath.Join(tmpDir, "lines.log")))
	assert.Equal(t, uint64(0), m.Stats().LinesWritten)
}

func TestManagerPrivacyHeldForSession(t *testing.T) {
	m, tmpDir, _ := createTestManager(t)
	lines := m.NewLineBuffer()

	require.NoError(t, m.StartLine(FieldClassification{Class: ClassPhone}))
	for i := 0; i < 3; i++ {
		lines.InsertCommittedText("555")
		require.NoError(t, m.FinishLine())
		assert.True(t, m.PrivacyModeEnabled(), "line %d", i)
	}

	require.NoError(t, m.StartLine(textField))
	assert.False(t, m.PrivacyModeEnabled())
	lines.InsertCommittedText("visible")
	require.NoError(t, m.FinishLine())

	assert.Equal(t, "[2024-03-01 09:30:00 - 2024-03-01 09:30:00] visible\n",
		readLog(t, filepath.Join(tmpDir, "lines.log")))
}

func TestManagerNoSessionMeansPrivacy(t *testing.T) {
	m, _, _ := createTestManager(t)
	lines := m.NewLineBuffer()

	assert.True(t, m.PrivacyModeEnabled())
	lines.InsertCommittedText("before focus")
	assert.Equal(t, "", lines.Contents())

	_, ok := m.CurrentField()
	assert.False(t, ok)
}

func TestManagerStartLineFlushesPrevious(t *testing.T) {
	m, tmpDir, clock := createTestManager(t)
	lines := m.NewLineBuffer()

	require.NoError(t, m.StartLine(textField))
	lines.InsertCommittedText("first")
	clock.Advance(time.Second)

	require.NoError(t, m.StartLine(textField))
	assert.Equal(t, "", lines.Contents())
	assert.Equal(t, 0, lines.Cursor())

	lines.InsertCommittedText("second")
	clock.Advance(time.Second)
	require.NoError(t, m.FinishLine())

	assert.Equal(t,
		"[2024-03-01 09:30:00 - 2024-03-01 09:30:01] first\n"+
			"[2024-03-01 09:30:01 - 2024-03-01 09:30:02] second\n",
		readLog(t, filepath.Join(tmpDir, "lines.log")))
}

func TestManagerFinishLineStartsNextLine(t *testing.T) {
	m, tmpDir, clock := createTestManager(t)
	lines := m.NewLineBuffer()

	require.NoError(t, m.StartLine(textField))
	lines.InsertCommittedText("one")
	clock.Advance(time.Second)
	require.NoError(t, m.FinishLine())

	// Empty lines are not persisted
	clock.Advance(time.Second)
	require.NoError(t, m.FinishLine())

	lines.InsertCommittedText("two")
	clock.Advance(time.Second)
	require.NoError(t, m.FinishLine())

	assert.Equal(t,
		"[2024-03-01 09:30:00 - 2024-03-01 09:30:01] one\n"+
			"[2024-03-01 09:30:02 - 2024-03-01 09:30:03] two\n",
		readLog(t, filepath.Join(tmpDir, "lines.log")))
}

func TestManagerEndSession(t *testing.T) {
	m, tmpDir, _ := createTestManager(t)
	lines := m.NewLineBuffer()

	require.NoError(t, m.StartLine(textField))
	lines.InsertCommittedText("bye")
	require.NoError(t, m.EndSession())

	assert.True(t, m.PrivacyModeEnabled())
	assert.Contains(t, readLog(t, filepath.Join(tmpDir, "lines.log")), "] bye\n")

	// Nothing to flush without a session
	require.NoError(t, m.FinishLine())
}

func TestManagerKeystrokeLog(t *testing.T) {
	m, tmpDir, _ := createTestManager(t, func(b *Builder) {
		b.LogKeystrokes(true)
	})
	lines := m.NewLineBuffer()
	keys := m.NewKeystrokeBuffer()
	require.True(t, m.IsRegistered(keys))

	require.NoError(t, m.StartLine(textField))
	keys.RecordKey('h')
	keys.RecordKey('x')
	keys.RecordSpecialKey("backspace")
	keys.RecordKey('i')
	lines.InsertCommittedText("hi")
	require.NoError(t, m.FinishLine())

	assert.Contains(t, readLog(t, filepath.Join(tmpDir, "keystrokes.log")), "] hx<backspace>i\n")
	assert.Contains(t, readLog(t, filepath.Join(tmpDir, "lines.log")), "] hi\n")
	assert.Equal(t, 2, m.Stats().Buffers)
}

func TestManagerDisabledBufferIsNotRegistered(t *testing.T) {
	m, _, _ := createTestManager(t)

	keys := m.NewKeystrokeBuffer()
	assert.False(t, m.IsRegistered(keys))

	require.NoError(t, m.StartLine(textField))
	keys.RecordKey('a')
	assert.Equal(t, "", keys.Contents())
}

func TestManagerRegistration(t *testing.T) {
	t.Run("register before init fails", func(t *testing.T) {
		m := NewManager()
		assert.False(t, m.RegisterBuffer(NewLineBuffer(m, "lines", 1)))
	})

	t.Run("register twice keeps one entry", func(t *testing.T) {
		m, _, _ := createTestManager(t)
		b := NewLineBuffer(m, "lines", 1)

		assert.True(t, m.RegisterBuffer(b))
		assert.True(t, m.RegisterBuffer(b))
		assert.Equal(t, 1, m.Stats().Buffers)
	})

	t.Run("not allowed buffer is refused", func(t *testing.T) {
		m, _, _ := createTestManager(t)
		b := NewLineBuffer(m, "lines", 1)
		b.SetAllowed(false)

		assert.False(t, m.RegisterBuffer(b))
		assert.False(t, m.RegisterBuffer(nil))
	})

	t.Run("unregister", func(t *testing.T) {
		m, _, _ := createTestManager(t)
		b := m.NewLineBuffer()

		require.NoError(t, m.UnregisterBuffer(b))
		assert.False(t, m.IsRegistered(b))
		assert.ErrorIs(t, m.UnregisterBuffer(b), ErrBufferNotRegistered)

		require.NoError(t, m.StartLine(textField))
		b.InsertCommittedText("ignored")
		assert.Equal(t, "", b.Contents())
	})

	t.Run("strict registration panics", func(t *testing.T) {
		m, _, _ := createTestManager(t, func(b *Builder) {
			b.StrictRegistration(true)
		})
		b := NewLineBuffer(m, "lines", 1)

		assert.PanicsWithValue(t, ErrBufferNotRegistered, func() { _ = m.UnregisterBuffer(b) })
		assert.PanicsWithValue(t, ErrBufferNotRegistered, func() { b.InsertCommittedText("x") })
	})
}

func TestManagerStorageUnavailable(t *testing.T) {
	notifier := newRecordingNotifier()
	broken := func() (string, error) {
		return "", ErrLocationNotAccessible
	}
	m, _, _ := createTestManager(t, func(b *Builder) {
		b.Notifier(notifier).Locations(Location{Kind: LocationPrivate, Provide: broken})
	})

	lines := m.NewLineBuffer()
	require.True(t, m.IsRegistered(lines))

	failures := notifier.failures["lines"]
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], ErrStorageUnavailable)

	_, err := m.ResolveLogDestination("lines")
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	require.NoError(t, m.StartLine(textField))
	lines.InsertCommittedText("dropped")
	assert.NoError(t, m.FinishLine())
	assert.Equal(t, "", lines.Contents())

	stats := m.Stats()
	assert.Equal(t, uint64(1), stats.LinesDropped)
	assert.Equal(t, uint64(0), stats.LinesWritten)
	assert.Equal(t, 0, stats.OpenSinks)
}

func TestManagerNotifiesTerminalFailureOnce(t *testing.T) {
	notifier := newRecordingNotifier()
	broken := func() (string, error) {
		return "", ErrLocationNotAccessible
	}
	m, _, _ := createTestManager(t, func(b *Builder) {
		b.Notifier(notifier).Locations(
			Location{Kind: LocationExternal, Provide: broken},
			Location{Kind: LocationFallback, Provide: broken},
			Location{Kind: LocationPrivate, Provide: broken},
		)
	})

	m.NewLineBuffer()

	failures := notifier.failures["lines"]
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], ErrStorageUnavailable)
	assert.Empty(t, notifier.locations)
	assert.Equal(t, uint64(3), m.Stats().StorageFailures)
}

func TestManagerNotifiesFallbackOnce(t *testing.T) {
	notifier := newRecordingNotifier()
	broken := func() (string, error) {
		return "", ErrLocationNotAccessible
	}
	fallback := filepath.Join(t.TempDir(), "fallback")
	m, _, _ := createTestManager(t, func(b *Builder) {
		b.Notifier(notifier).Locations(
			Location{Kind: LocationExternal, Provide: broken},
			Location{Kind: LocationFallback, Provide: CreatedDir(fallback)},
		)
	})

	m.NewLineBuffer()

	require.Len(t, notifier.failures["lines"], 1)
	assert.ErrorIs(t, notifier.failures["lines"][0], ErrLocationNotAccessible)
	assert.Equal(t, filepath.Join(fallback, "lines.log"), notifier.locations["lines"])
}

func TestManagerEncodingFailure(t *testing.T) {
	m, tmpDir, _ := createTestManager(t)
	bad := &stubBuffer{name: "raw"}
	require.True(t, m.RegisterBuffer(bad))

	require.NoError(t, m.StartLine(textField))
	bad.contents = "broken \xff byte"

	err := m.FinishLine()
	assert.ErrorIs(t, err, ErrEncodingFailure)
	assert.Equal(t, 1, bad.cleared)
	assert.Equal(t, "", readLog(t, filepath.Join(tmpDir, "raw.log")))
}

func TestManagerNotifiesLocation(t *testing.T) {
	notifier := newRecordingNotifier()
	m, tmpDir, _ := createTestManager(t, func(b *Builder) {
		b.Notifier(notifier)
	})
	m.NewLineBuffer()

	assert.Equal(t, filepath.Join(tmpDir, "lines.log"), notifier.locations["lines"])
	assert.Empty(t, notifier.failures)
}

func TestManagerExport(t *testing.T) {
	m, tmpDir, clock := createTestManager(t)
	lines := m.NewLineBuffer()

	_, err := m.Export("lines")
	assert.Error(t, err, "empty file has nothing to export")

	require.NoError(t, m.StartLine(textField))
	lines.InsertCommittedText("upload me")
	require.NoError(t, m.FinishLine())

	clock.Advance(time.Minute)
	exported, err := m.Export("lines")
	require.NoError(t, err)
	assert.Equal(t, tmpDir, filepath.Dir(exported))
	assert.Contains(t, readLog(t, exported), "] upload me\n")
	assert.Equal(t, "", readLog(t, filepath.Join(tmpDir, "lines.log")))

	lines.InsertCommittedText("after")
	require.NoError(t, m.FinishLine())
	assert.Contains(t, readLog(t, filepath.Join(tmpDir, "lines.log")), "] after\n")
	assert.NotContains(t, readLog(t, exported), "after")

	assert.Equal(t, uint64(1), m.Stats().Exports)

	_, err = m.Export("unknown")
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestManagerShutdown(t *testing.T) {
	m, tmpDir, _ := createTestManager(t)
	lines := m.NewLineBuffer()

	require.NoError(t, m.StartLine(textField))
	lines.InsertCommittedText("unflushed")

	require.NoError(t, m.Shutdown())
	assert.False(t, m.state.IsInitialized.Load())
	assert.True(t, m.state.ShutdownCalled.Load())
	assert.False(t, m.IsRegistered(lines))
	assert.Equal(t, 0, m.Stats().OpenSinks)

	// Teardown does not flush
	assert.Equal(t, "", readLog(t, filepath.Join(tmpDir, "lines.log")))

	// Second shutdown is a no-op
	assert.NoError(t, m.Shutdown())

	// Shutdown of a manager whose storage never opened
	broken, _, _ := createTestManager(t, func(b *Builder) {
		b.Locations(Location{Kind: LocationPrivate, Provide: func() (string, error) {
			return "", errors.New("gone")
		}})
	})
	broken.NewLineBuffer()
	assert.NoError(t, broken.Shutdown())
}

func TestManagerReinitAfterShutdown(t *testing.T) {
	m, tmpDir, _ := createTestManager(t)
	require.NoError(t, m.Shutdown())
	require.NoError(t, m.Init())

	lines := m.NewLineBuffer()
	require.True(t, m.IsRegistered(lines))
	require.NoError(t, m.StartLine(textField))
	lines.InsertCommittedText("again")
	require.NoError(t, m.FinishLine())

	assert.Contains(t, readLog(t, filepath.Join(tmpDir, "lines.log")), "] again\n")
}

func TestManagerApplyOverrideReopensSinks(t *testing.T) {
	m, _, _ := createTestManager(t)
	lines := m.NewLineBuffer()

	newDir := filepath.Join(t.TempDir(), "moved")
	require.NoError(t, m.ApplyOverride("directory="+newDir, "record_format=json"))

	require.NoError(t, m.StartLine(textField))
	lines.InsertCommittedText("moved")
	require.NoError(t, m.FinishLine())

	content := readLog(t, filepath.Join(newDir, "lines.log"))
	assert.Contains(t, content, `"text":"moved"`)
	assert.Contains(t, content, `"buffer":"lines"`)

	err := m.ApplyOverride("record_format=xml")
	assert.Error(t, err)
	assert.Equal(t, "json", m.GetConfig().RecordFormat)
}

func TestManagerSanitizesLineText(t *testing.T) {
	m, tmpDir, _ := createTestManager(t, func(b *Builder) {
		b.Sanitization("line")
	})
	lines := m.NewLineBuffer()

	require.NoError(t, m.StartLine(textField))
	lines.InsertCommittedText("multi\nline\x07")
	require.NoError(t, m.FinishLine())

	assert.Contains(t, readLog(t, filepath.Join(tmpDir, "lines.log")), "] multi line<07>\n")
}

func TestManagerApplyConfigUpdatesBuffers(t *testing.T) {
	m, tmpDir, _ := createTestManager(t)
	lines := m.NewLineBuffer()
	keys := m.NewKeystrokeBuffer()
	require.False(t, m.IsRegistered(keys))
	require.Equal(t, 1, lines.jitter)

	require.NoError(t, m.ApplyOverride("log_keystrokes=true", "cursor_jitter=3", "line_log_name=words"))
	assert.True(t, m.IsRegistered(keys))
	assert.True(t, m.IsRegistered(lines))
	assert.Equal(t, 3, lines.jitter)
	assert.Equal(t, "words", lines.Filename())

	require.NoError(t, m.StartLine(textField))
	keys.RecordKey('o')
	lines.InsertCommittedText("ok")
	require.NoError(t, m.FinishLine())
	assert.Contains(t, readLog(t, filepath.Join(tmpDir, "words.log")), "] ok\n")
	assert.Contains(t, readLog(t, filepath.Join(tmpDir, "keystrokes.log")), "] o\n")

	// Disabling drops pending content and the registration
	lines.InsertCommittedText("pending")
	require.NoError(t, m.ApplyOverride("log_lines=false"))
	assert.False(t, m.IsRegistered(lines))
	assert.Equal(t, "", lines.Contents())
	assert.Equal(t, 1, m.Stats().Buffers)

	require.NoError(t, m.FinishLine())
	assert.NotContains(t, readLog(t, filepath.Join(tmpDir, "words.log")), "pending")
}
