// FILE: state.go
package linelog

import (
	"sync/atomic"
)

// State encapsulates the runtime counters of a manager. Counters are atomics so
// Stats can be read from a goroutine other than the single writer.
type State struct {
	IsInitialized  atomic.Bool
	ShutdownCalled atomic.Bool

	LinesWritten    atomic.Uint64 // Records appended to a sink
	LinesDropped    atomic.Uint64 // Records lost to an unavailable sink
	WriteErrors     atomic.Uint64 // Failed appends on an open sink
	StorageFailures atomic.Uint64 // Locations that could not be used
	TotalRotations  atomic.Uint64 // Size triggered archives
	TotalExports    atomic.Uint64 // Archives handed to the upload collaborator
	TotalDeletions  atomic.Uint64 // Archives removed by retention
}

// Stats is a point-in-time snapshot of State
type Stats struct {
	Initialized     bool
	Buffers         int
	OpenSinks       int
	LinesWritten    uint64
	LinesDropped    uint64
	WriteErrors     uint64
	StorageFailures uint64
	Rotations       uint64
	Exports         uint64
	Deletions       uint64
}

func (s *State) snapshot() Stats {
	return Stats{
		Initialized:     s.IsInitialized.Load(),
		LinesWritten:    s.LinesWritten.Load(),
		LinesDropped:    s.LinesDropped.Load(),
		WriteErrors:     s.WriteErrors.Load(),
		StorageFailures: s.StorageFailures.Load(),
		Rotations:       s.TotalRotations.Load(),
		Exports:         s.TotalExports.Load(),
		Deletions:       s.TotalDeletions.Load(),
	}
}
