// FILE: storage.go
package linelog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Sink is a resolved append-mode log file. It rotates by renaming the current file
// to a timestamped archive and reopening the static name.
type Sink struct {
	name      string
	dir       string
	kind      LocationKind
	ext       string
	maxSize   int64
	retention time.Duration
	wrapper   WriterWrapper
	encrypt   bool
	state     *State
	logger    Logger
	clock     Clock

	file     *os.File
	w        io.WriteCloser // file, or the wrapper around it
	size     int64
	closed   bool
	failures []error
}

// Name returns the logical log name
func (s *Sink) Name() string {
	return s.name
}

// Dir returns the directory the sink was resolved to
func (s *Sink) Dir() string {
	return s.dir
}

// Location returns the storage tier the sink was resolved to
func (s *Sink) Location() LocationKind {
	return s.kind
}

// Path returns the full path of the active file
func (s *Sink) Path() string {
	filename := s.name
	if s.ext != "" {
		filename = s.name + "." + s.ext
	}
	return filepath.Join(s.dir, filename)
}

// Failures returns the location failures skipped before this sink was resolved
func (s *Sink) Failures() []error {
	return s.failures
}

// Size returns the bytes appended to the active file, including what it held when opened
func (s *Sink) Size() int64 {
	return s.size
}

// Write appends p and syncs it to disk, rotating first when p would push the file
// past the size limit. A non-empty file is never split across a record.
func (s *Sink) Write(p []byte) (int, error) {
	if s == nil || s.closed || s.w == nil {
		return 0, fmtErrorf("write to closed sink")
	}

	if s.maxSize > 0 && s.size > 0 && s.size+int64(len(p)) > s.maxSize {
		if _, err := s.archive(); err != nil {
			return 0, fmtErrorf("failed to rotate '%s': %w", s.Path(), err)
		}
		s.state.TotalRotations.Add(1)
	}

	n, err := s.w.Write(p)
	s.size += int64(n)
	if err != nil {
		return n, fmtErrorf("failed to write to '%s': %w", s.Path(), err)
	}
	if err := s.file.Sync(); err != nil {
		return n, fmtErrorf("failed to sync '%s': %w", s.Path(), err)
	}
	return n, nil
}

// Export finalizes the active file for the upload collaborator and reopens a fresh
// one. The returned archive path is closed and will not be written again.
func (s *Sink) Export() (string, error) {
	if s == nil || s.closed || s.w == nil {
		return "", fmtErrorf("export of closed sink")
	}
	if s.size == 0 {
		return "", fmtErrorf("nothing to export in '%s'", s.Path())
	}

	path, err := s.archive()
	if err != nil {
		return "", err
	}
	s.state.TotalExports.Add(1)
	return path, nil
}

// Close releases the file. It is safe on a nil sink and when called twice.
func (s *Sink) Close() error {
	if s == nil || s.closed {
		return nil
	}
	s.closed = true
	return s.closeWriter()
}

// open opens the static file in append mode and applies the wrapper
func (s *Sink) open() error {
	path := s.Path()
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return fmtErrorf("failed to open/create log file '%s': %w", path, err)
	}

	var w io.WriteCloser = syncedFile{file}
	if s.encrypt {
		if s.wrapper == nil {
			_ = file.Close()
			return fmtErrorf("encryption required but no writer wrapper configured")
		}
		wrapped, err := s.wrapper(syncedFile{file})
		if err != nil {
			_ = file.Close()
			return fmtErrorf("failed to wrap log file '%s': %w", path, err)
		}
		w = wrapped
	}

	s.size = 0
	if fi, errStat := file.Stat(); errStat == nil {
		s.size = fi.Size()
	}
	s.file = file
	s.w = w
	return nil
}

// closeWriter closes the writer chain. Wrappers flush on Close before the file is
// synced and closed beneath them.
func (s *Sink) closeWriter() error {
	if s.w == nil {
		return nil
	}
	var err error
	if closeErr := s.w.Close(); closeErr != nil {
		err = fmtErrorf("failed to close log file '%s': %w", s.Path(), closeErr)
	}
	if s.w != (syncedFile{s.file}) {
		// Wrappers usually close the file themselves
		if closeErr := (syncedFile{s.file}).Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			err = combineErrors(err, fmtErrorf("failed to close log file '%s': %w", s.Path(), closeErr))
		}
	}
	s.w = nil
	s.file = nil
	return err
}

// syncedFile syncs to disk before closing
type syncedFile struct {
	*os.File
}

func (f syncedFile) Close() error {
	syncErr := f.File.Sync()
	closeErr := f.File.Close()
	if syncErr != nil {
		return syncErr
	}
	return closeErr
}

// archive implements rename-on-rotate: close, rename to a timestamped name, reopen
func (s *Sink) archive() (string, error) {
	if err := s.closeWriter(); err != nil {
		s.logger.Warn("failed to close log file before archiving", "path", s.Path(), "error", err)
	}

	archivePath := filepath.Join(s.dir, s.archiveName(s.clock()))
	if err := os.Rename(s.Path(), archivePath); err != nil {
		// Keep appending to the static file rather than losing the sink
		if openErr := s.open(); openErr != nil {
			s.closed = true
			return "", combineErrors(fmtErrorf("failed to rename log file: %w", err), openErr)
		}
		return "", fmtErrorf("failed to rename log file '%s' to '%s': %w", s.Path(), archivePath, err)
	}

	if err := s.open(); err != nil {
		s.closed = true
		return "", fmtErrorf("failed to reopen log file after archiving: %w", err)
	}

	s.cleanExpiredArchives()
	return archivePath, nil
}

// archiveName creates a timestamped filename for an archived log
func (s *Sink) archiveName(timestamp time.Time) string {
	tsFormat := timestamp.Format(archiveTimeLayout)
	nano := timestamp.Nanosecond()

	if s.ext != "" {
		return fmt.Sprintf("%s_%s_%d.%s", s.name, tsFormat, nano, s.ext)
	}
	return fmt.Sprintf("%s_%s_%d", s.name, tsFormat, nano)
}

// isArchive reports whether fname is an archive of this sink
func (s *Sink) isArchive(fname string) bool {
	if !strings.HasPrefix(fname, s.name+"_") {
		return false
	}
	if s.ext != "" && filepath.Ext(fname) != "."+s.ext {
		return false
	}
	return true
}

// cleanExpiredArchives removes archives older than the retention period
func (s *Sink) cleanExpiredArchives() {
	if s.retention <= 0 {
		return
	}
	cutoffTime := s.clock().Add(-s.retention)

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("failed to read log directory for retention cleanup", "dir", s.dir, "error", err)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !s.isArchive(entry.Name()) {
			continue
		}
		info, errInfo := entry.Info()
		if errInfo != nil {
			continue
		}
		if info.ModTime().Before(cutoffTime) {
			filePath := filepath.Join(s.dir, entry.Name())
			if err := os.Remove(filePath); err != nil {
				s.logger.Warn("failed to remove expired log file", "path", filePath, "error", err)
				continue
			}
			s.state.TotalDeletions.Add(1)
		}
	}
}

// Archives lists the archived files of this sink in directory order
func (s *Sink) Archives() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmtErrorf("failed to read log directory '%s': %w", s.dir, err)
	}
	var archives []string
	for _, entry := range entries {
		if !entry.IsDir() && s.isArchive(entry.Name()) {
			archives = append(archives, filepath.Join(s.dir, entry.Name()))
		}
	}
	return archives, nil
}
