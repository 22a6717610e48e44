// FILE: lixenwraith/linelog/cmd/linelog/export.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [name]",
	Short: "Finalize a log file for upload",
	Long: `Closes the active file of a logical log, renames it to a timestamped archive and
prints the archive path. The name defaults to the configured line log name.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	name := cfg.LineLogName
	if len(args) == 1 {
		name = args[0]
	}

	m, err := buildManager(cfg)
	if err != nil {
		return err
	}
	defer m.Shutdown()

	if _, err := m.ResolveLogDestination(name); err != nil {
		return err
	}
	path, err := m.Export(name)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
