// FILE: lixenwraith/linelog/linebuffer.go
package linelog

// LineBuffer mirrors the current line of the focused field. Positions are rune
// indexes and every computation clamps into [0, Len()] instead of failing.
//
// LineBuffer is not safe for concurrent use.
type LineBuffer struct {
	gate     Gate
	filename string
	allowed  bool
	jitter   int

	content   []rune
	cursor    int
	reported  int // last selection start reported by the host
	composing string

	prev *committedInput // last commit, for RevertLastCorrection
}

type committedInput struct {
	text      []rune // what was inserted
	pos       int    // where it was inserted
	untouched string // what a revert puts back
}

// NewLineBuffer creates a standalone line buffer. Mutations are consulted with
// gate, a nil gate never blocks. A negative jitter is treated as 0.
func NewLineBuffer(gate Gate, filename string, jitter int) *LineBuffer {
	if jitter < 0 {
		jitter = 0
	}
	return &LineBuffer{
		gate:     gate,
		filename: filename,
		allowed:  true,
		jitter:   jitter,
	}
}

// SetAllowed controls whether the buffer may be registered
func (b *LineBuffer) SetAllowed(allowed bool) {
	b.allowed = allowed
}

// Allowed implements Buffer
func (b *LineBuffer) Allowed() bool {
	return b.allowed
}

// Filename implements Buffer
func (b *LineBuffer) Filename() string {
	return b.filename
}

// Contents implements Buffer
func (b *LineBuffer) Contents() string {
	return string(b.content)
}

// Len returns the content length in runes
func (b *LineBuffer) Len() int {
	return len(b.content)
}

// Cursor returns the cursor index in runes
func (b *LineBuffer) Cursor() int {
	return b.cursor
}

// ComposingText returns the pending provisional text
func (b *LineBuffer) ComposingText() string {
	return b.composing
}

// SetCursorPositions records a selection change from the host. The cursor follows
// selStart only when it moved by more than the jitter tolerance since the last report.
func (b *LineBuffer) SetCursorPositions(selStart, selEnd int) {
	if !b.enabled() {
		return
	}
	if selStart > selEnd {
		selStart, selEnd = selEnd, selStart
	}

	if abs(selStart-b.reported) > b.jitter {
		b.cursor = clamp(selStart, 0, len(b.content))
	}
	b.reported = selStart
}

// SetComposingText records provisional text. It only reaches the content through
// the next InsertCommittedText.
func (b *LineBuffer) SetComposingText(text string) {
	b.composing = text
}

// InsertCommittedText inserts text at the cursor. A pending composing span that
// differs from text is prepended to it.
func (b *LineBuffer) InsertCommittedText(text string) {
	if !b.enabled() {
		return
	}

	value := text
	if b.composing != "" && b.composing != text {
		value = b.composing + text
	}
	b.composing = ""

	b.insert([]rune(value), "")
}

// InsertCorrection commits corrected in place of what the user typed. The pending
// composing span is discarded and typed is what RevertLastCorrection restores.
func (b *LineBuffer) InsertCorrection(typed, corrected string) {
	if !b.enabled() {
		return
	}
	b.composing = ""
	b.insert([]rune(corrected), typed)
}

func (b *LineBuffer) insert(value []rune, untouched string) {
	if len(value) == 0 {
		return
	}

	pos := clamp(b.cursor, 0, len(b.content))
	b.content = spliceRunes(b.content, pos, pos, value)

	b.prev = &committedInput{text: value, pos: pos, untouched: untouched}
	b.cursor = pos + len(value)
	b.reported = b.cursor
}

// DeleteSurroundingText removes before runes left of the cursor and after runes
// right of it. Negative counts count as 0.
func (b *LineBuffer) DeleteSurroundingText(before, after int) {
	if !b.enabled() {
		return
	}
	if before < 0 {
		before = 0
	}
	if after < 0 {
		after = 0
	}
	if before == 0 && after == 0 {
		return
	}

	n := len(b.content)
	start := clamp(b.cursor-before, 0, n)
	end := clamp(b.cursor+after, 0, n)
	if start > end {
		start, end = clamp(end, 0, n), clamp(start, 0, n)
	}

	b.content = spliceRunes(b.content, start, end, nil)
	b.cursor = clamp(b.cursor-before, 0, len(b.content))
	b.reported = b.cursor
}

// RevertLastCorrection replaces the last committed insertion with the text it
// replaced. It is a no-op without a recorded commit and consumes the record.
func (b *LineBuffer) RevertLastCorrection() {
	if !b.enabled() || b.prev == nil {
		return
	}
	prev := b.prev
	b.prev = nil

	n := len(b.content)
	start := clamp(prev.pos, 0, n)
	end := clamp(prev.pos+len(prev.text), start, n)

	untouched := []rune(prev.untouched)
	b.content = spliceRunes(b.content, start, end, untouched)
	b.cursor = start + len(untouched)
	b.reported = b.cursor
}

// MoveCursorToStart moves the cursor before the first rune
func (b *LineBuffer) MoveCursorToStart() {
	b.moveCursorTo(0)
}

// MoveCursorToEnd moves the cursor after the last rune
func (b *LineBuffer) MoveCursorToEnd() {
	b.moveCursorTo(len(b.content))
}

// MoveCursorLeft moves the cursor one rune left
func (b *LineBuffer) MoveCursorLeft() {
	b.moveCursorTo(b.cursor - 1)
}

// MoveCursorRight moves the cursor one rune right
func (b *LineBuffer) MoveCursorRight() {
	b.moveCursorTo(b.cursor + 1)
}

func (b *LineBuffer) moveCursorTo(pos int) {
	if !b.enabled() {
		return
	}
	b.cursor = clamp(pos, 0, len(b.content))
	b.reported = b.cursor
}

// StartNewLine implements Buffer. Content is left for the manager to flush.
func (b *LineBuffer) StartNewLine() {
	b.cursor = 0
	b.reported = 0
	b.composing = ""
	b.prev = nil
}

// Clear implements Buffer
func (b *LineBuffer) Clear() {
	b.content = b.content[:0]
	b.cursor = 0
	b.reported = 0
	b.prev = nil
}

func (b *LineBuffer) enabled() bool {
	return gated(b.gate, b)
}

// spliceRunes replaces s[start:end] with repl
func spliceRunes(s []rune, start, end int, repl []rune) []rune {
	out := make([]rune, 0, len(s)-(end-start)+len(repl))
	out = append(out, s[:start]...)
	out = append(out, repl...)
	return append(out, s[end:]...)
}
