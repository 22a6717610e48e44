// FILE: lixenwraith/linelog/cmd/linelog/replay.go
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/lixenwraith/linelog/event"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay [file]",
	Short: "Apply a recorded event script",
	Long: `Reads edit events as JSON lines from a file, or stdin when the file is "-" or
missing, and applies them to a manager. Invalid lines are skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		file, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open event script: %w", err)
		}
		defer file.Close()
		in = file
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	m, err := buildManager(cfg)
	if err != nil {
		return err
	}
	defer m.Shutdown()

	session := event.NewSession(m)
	res, err := session.Replay(in)
	// Whatever the script left pending is still a completed line
	if endErr := m.EndSession(); endErr != nil {
		res.Errors = append(res.Errors, endErr)
	}

	for _, evErr := range res.Errors {
		fmt.Fprintln(cmd.ErrOrStderr(), "event error:", evErr)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "events applied: %d, skipped: %d, failed: %d\n",
		res.Applied, res.Skipped, len(res.Errors))
	for _, path := range session.Exports() {
		fmt.Fprintln(cmd.OutOrStdout(), "exported:", path)
	}
	printStats(cmd, m)

	return err
}
