// FILE: lixenwraith/linelog/event/event.go
// Package event models the edit events a text input host reports and applies them
// to a linelog manager. Events are read as JSON lines, one event per line:
//
//	{"type":"focus","field":"text/none"}
//	{"type":"commit","text":"hello"}
//	{"type":"finish"}
package event

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"github.com/lixenwraith/linelog"
)

// Type names an edit event
type Type string

const (
	TypeFocus   Type = "focus"   // field gained focus, starts a line session
	TypeBlur    Type = "blur"    // field lost focus, ends the session
	TypeFinish  Type = "finish"  // line completed
	TypeCommit  Type = "commit"  // committed text inserted at the cursor
	TypeCorrect Type = "correct" // auto-correction replaced typed text
	TypeCompose Type = "compose" // composing preview changed
	TypeCursor  Type = "cursor"  // selection reported
	TypeDelete  Type = "delete"  // text around the cursor deleted
	TypeRevert  Type = "revert"  // last correction reverted
	TypeMove    Type = "move"    // explicit cursor move
	TypeKey     Type = "key"     // raw keystroke
	TypeExport  Type = "export"  // finalize a log file for upload
)

var ErrUnknownEvent = errors.New("event: unknown event type")

// Event is one host report. Only the fields of its type are used.
type Event struct {
	Type     Type   `json:"type"`
	Field    string `json:"field,omitempty"`     // focus: "class/variation"
	Text     string `json:"text,omitempty"`      // commit, correct, compose; export: log name
	Typed    string `json:"typed,omitempty"`     // correct: what the user typed
	SelStart int    `json:"sel_start,omitempty"` // cursor
	SelEnd   int    `json:"sel_end,omitempty"`   // cursor
	Before   int    `json:"before,omitempty"`    // delete
	After    int    `json:"after,omitempty"`     // delete
	Key      string `json:"key,omitempty"`       // key: a single character or a key name
	To       string `json:"to,omitempty"`        // move: start, end, left or right
}

// Decode parses a single JSON event
func Decode(data []byte) (Event, error) {
	var ev Event
	if err := sonic.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("event: invalid json: %w", err)
	}
	if ev.Type == "" {
		return Event{}, fmt.Errorf("event: missing type")
	}
	return ev, nil
}

// Encode renders ev as a single JSON line
func Encode(ev Event) ([]byte, error) {
	data, err := sonic.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("event: encode failed: %w", err)
	}
	return append(data, '\n'), nil
}

// Session drives a manager and its buffers from events
type Session struct {
	m       *linelog.Manager
	lines   *linelog.LineBuffer
	keys    *linelog.KeystrokeBuffer
	exports []string
}

// NewSession creates the line and keystroke buffers on m. Buffers disabled by
// configuration stay unregistered and ignore their events.
func NewSession(m *linelog.Manager) *Session {
	return &Session{
		m:     m,
		lines: m.NewLineBuffer(),
		keys:  m.NewKeystrokeBuffer(),
	}
}

// Lines returns the session's line buffer
func (s *Session) Lines() *linelog.LineBuffer {
	return s.lines
}

// Keys returns the session's keystroke buffer
func (s *Session) Keys() *linelog.KeystrokeBuffer {
	return s.keys
}

// Exports returns the paths finalized by export events
func (s *Session) Exports() []string {
	return s.exports
}

// Apply executes one event
func (s *Session) Apply(ev Event) error {
	switch ev.Type {
	case TypeFocus:
		fc, err := linelog.ParseFieldClassification(ev.Field)
		if err != nil {
			return err
		}
		return s.m.StartLine(fc)
	case TypeBlur:
		return s.m.EndSession()
	case TypeFinish:
		return s.m.FinishLine()

	case TypeCommit:
		s.lines.InsertCommittedText(ev.Text)
	case TypeCorrect:
		s.lines.InsertCorrection(ev.Typed, ev.Text)
	case TypeCompose:
		s.lines.SetComposingText(ev.Text)
	case TypeCursor:
		s.lines.SetCursorPositions(ev.SelStart, ev.SelEnd)
	case TypeDelete:
		s.lines.DeleteSurroundingText(ev.Before, ev.After)
	case TypeRevert:
		s.lines.RevertLastCorrection()
	case TypeMove:
		return s.move(ev.To)

	case TypeKey:
		s.recordKey(ev.Key)
	case TypeExport:
		name := ev.Text
		if name == "" {
			name = s.lines.Filename()
		}
		path, err := s.m.Export(name)
		if err != nil {
			return err
		}
		s.exports = append(s.exports, path)

	default:
		return fmt.Errorf("%w: '%s'", ErrUnknownEvent, ev.Type)
	}
	return nil
}

func (s *Session) move(to string) error {
	switch strings.ToLower(to) {
	case "start":
		s.lines.MoveCursorToStart()
	case "end":
		s.lines.MoveCursorToEnd()
	case "left":
		s.lines.MoveCursorLeft()
	case "right":
		s.lines.MoveCursorRight()
	default:
		return fmt.Errorf("event: invalid move target '%s'", to)
	}
	return nil
}

func (s *Session) recordKey(key string) {
	// An unregistered buffer would panic under strict registration
	if key == "" || !s.m.IsRegistered(s.keys) {
		return
	}
	if utf8.RuneCountInString(key) == 1 {
		r, _ := utf8.DecodeRuneInString(key)
		s.keys.RecordKey(r)
		return
	}
	s.keys.RecordSpecialKey(key)
}

// Result summarizes a replay
type Result struct {
	Applied int
	Skipped int     // lines that are not valid events
	Errors  []error // events that failed to apply
}

// Replay applies every event read from r. Invalid lines are skipped and failed
// events collected, only a read error stops the replay.
func (s *Session) Replay(r io.Reader) (Result, error) {
	var res Result
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	lineCount := 0
	for scanner.Scan() {
		lineCount++
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		ev, err := Decode(line)
		if err != nil {
			res.Skipped++
			continue
		}
		if err := s.Apply(ev); err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("line %d: %w", lineCount, err))
			continue
		}
		res.Applied++
	}

	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("event: read failed after line %d: %w", lineCount, err)
	}
	return res, nil
}
