// FILE: lixenwraith/linelog/cmd/linelog/follow.go
package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/lixenwraith/linelog/event"
	"github.com/spf13/cobra"
)

var followFromStart bool

var followCmd = &cobra.Command{
	Use:   "follow <file>",
	Short: "Apply events as a host appends them to a file",
	Long: `Watches an event file and applies every complete JSON line appended to it until
interrupted. The file may not exist yet. A truncated file is read again from the start.`,
	Args: cobra.ExactArgs(1),
	RunE: runFollow,
}

func init() {
	rootCmd.AddCommand(followCmd)

	followCmd.Flags().BoolVar(&followFromStart, "from-start", false,
		"Apply events already in the file before following")
}

func runFollow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	m, err := buildManager(cfg)
	if err != nil {
		return err
	}
	defer m.Shutdown()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f := newFollower(args[0], event.NewSession(m), cmd.ErrOrStderr())
	if !followFromStart {
		f.skipExisting()
	}
	err = f.run(ctx)

	if endErr := m.EndSession(); endErr != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "event error:", endErr)
	}
	printStats(cmd, m)
	return err
}

// follower tails an event file and feeds complete lines to a session
type follower struct {
	path    string
	session *event.Session
	errOut  io.Writer

	offset  int64
	partial []byte // trailing bytes of an unfinished line
}

func newFollower(path string, session *event.Session, errOut io.Writer) *follower {
	return &follower{
		path:    filepath.Clean(path),
		session: session,
		errOut:  errOut,
	}
}

// skipExisting starts following at the current end of the file
func (f *follower) skipExisting() {
	if info, err := os.Stat(f.path); err == nil {
		f.offset = info.Size()
	}
}

// run watches the file's directory until ctx is done. The directory is watched
// so the file may be created or replaced.
func (f *follower) run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("failed to watch '%s': %w", filepath.Dir(f.path), err)
	}

	// Catch up with anything written before the watch was in place
	f.drain()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				f.offset = 0
				f.partial = nil
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				f.drain()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			// Keep following
			fmt.Fprintln(f.errOut, "watch error:", err)
		}
	}
}

// drain applies every complete line appended since the last read
func (f *follower) drain() {
	file, err := os.Open(f.path)
	if err != nil {
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return
	}
	if info.Size() < f.offset {
		f.offset = 0
		f.partial = nil
	}
	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		fmt.Fprintln(f.errOut, "read error:", err)
	}
	f.offset += int64(len(data))

	data = append(f.partial, data...)
	last := bytes.LastIndexByte(data, '\n')
	if last < 0 {
		f.partial = data
		return
	}
	f.partial = append([]byte(nil), data[last+1:]...)

	res, _ := f.session.Replay(bytes.NewReader(data[:last+1]))
	for _, evErr := range res.Errors {
		fmt.Fprintln(f.errOut, "event error:", evErr)
	}
}
