// FILE: lixenwraith/linelog/record.go
package linelog

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// flush persists the non-empty buffers of the current session and clears every
// buffer. A private session writes nothing.
func (m *Manager) flush(end time.Time) error {
	var encErr error
	for _, b := range m.buffers {
		contents := b.Contents()
		if contents != "" && !m.session.private {
			if err := m.writeRecord(b, m.session.start, end, contents); err != nil {
				encErr = combineErrors(encErr, err)
			}
		}
		b.Clear()
	}
	return encErr
}

// writeRecord serializes and appends one record. Only an encoding failure is
// returned, write failures are logged and counted.
func (m *Manager) writeRecord(b Buffer, start, end time.Time, contents string) error {
	record := m.formatter.FormatRecord(start, end, b.Filename(), contents)
	if !utf8.Valid(record) {
		m.state.LinesDropped.Add(1)
		return fmt.Errorf("%w: record for '%s' is not valid UTF-8", ErrEncodingFailure, b.Filename())
	}

	reg := m.entries[b]
	if reg == nil || reg.sink == nil {
		m.state.LinesDropped.Add(1)
		return nil
	}

	if _, err := reg.sink.Write(record); err != nil {
		m.state.WriteErrors.Add(1)
		m.logger.Error("failed to write line record", "buffer", b.Filename(), "error", err)
		return nil
	}
	m.state.LinesWritten.Add(1)
	return nil
}
