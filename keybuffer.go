// FILE: lixenwraith/linelog/keybuffer.go
package linelog

import "strings"

// KeystrokeBuffer records every key of a session as typed, special keys as "<name>".
// It never edits past input, so it keeps what a LineBuffer loses to deletions.
type KeystrokeBuffer struct {
	gate     Gate
	filename string
	allowed  bool
	keys     strings.Builder
}

// NewKeystrokeBuffer creates a standalone keystroke buffer
func NewKeystrokeBuffer(gate Gate, filename string) *KeystrokeBuffer {
	return &KeystrokeBuffer{
		gate:     gate,
		filename: filename,
		allowed:  true,
	}
}

// SetAllowed controls whether the buffer may be registered
func (b *KeystrokeBuffer) SetAllowed(allowed bool) {
	b.allowed = allowed
}

// RecordKey appends a printable key
func (b *KeystrokeBuffer) RecordKey(r rune) {
	if !gated(b.gate, b) {
		return
	}
	b.keys.WriteRune(r)
}

// RecordSpecialKey appends a named key such as "backspace" as "<backspace>"
func (b *KeystrokeBuffer) RecordSpecialKey(name string) {
	if name == "" || !gated(b.gate, b) {
		return
	}
	b.keys.WriteByte('<')
	b.keys.WriteString(name)
	b.keys.WriteByte('>')
}

// Len returns the recorded length in bytes
func (b *KeystrokeBuffer) Len() int {
	return b.keys.Len()
}

// Allowed implements Buffer
func (b *KeystrokeBuffer) Allowed() bool {
	return b.allowed
}

// Filename implements Buffer
func (b *KeystrokeBuffer) Filename() string {
	return b.filename
}

// Contents implements Buffer
func (b *KeystrokeBuffer) Contents() string {
	return b.keys.String()
}

// Clear implements Buffer
func (b *KeystrokeBuffer) Clear() {
	b.keys.Reset()
}

// StartNewLine implements Buffer. Keystrokes carry no cursor state.
func (b *KeystrokeBuffer) StartNewLine() {}
