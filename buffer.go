// FILE: lixenwraith/linelog/buffer.go
package linelog

// Buffer is a loggable buffer held by the manager's registry
type Buffer interface {
	// Allowed reports whether the buffer may be registered at all
	Allowed() bool
	// Filename is the logical log name the buffer's records go to
	Filename() string
	// Contents is a snapshot of what would be persisted
	Contents() string
	// Clear empties the content after it was persisted or discarded
	Clear()
	// StartNewLine resets per-session bookkeeping, leaving content alone
	StartNewLine()
}

// gated reports whether b may mutate. A nil gate always allows.
func gated(g Gate, b Buffer) bool {
	return g == nil || g.LoggingEnabled(b)
}
