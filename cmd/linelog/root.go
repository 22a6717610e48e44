// FILE: lixenwraith/linelog/cmd/linelog/root.go
package main

import (
	"fmt"
	"os"

	"github.com/lixenwraith/linelog"
	"github.com/lixenwraith/linelog/sealed"
	"github.com/spf13/cobra"
)

const defaultSecretEnv = "LINELOG_SECRET"

var (
	// Configuration
	configFile string
	overrides  []string

	// Encryption
	secretEnv string

	// Diagnostics
	debug bool

	rootCmd = &cobra.Command{
		Use:   "linelog",
		Short: "Privacy aware line logging for text input hosts",
		Long: `linelog replays, follows and manages line logs written by the linelog module.

Edit events are JSON lines, one event per line. Lines typed into private fields
(passwords, addresses, numbers) are never written.

Examples:
  linelog replay events.jsonl                      # Apply a recorded event script
  linelog follow /tmp/host-events.jsonl            # Apply events as the host appends them
  linelog config --set record_format=json          # Print the effective configuration
  linelog export lines                             # Finalize lines.log for upload
  LINELOG_SECRET=... linelog decrypt lines.log     # Print an encrypted log`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"TOML configuration file with a [linelog] table")
	rootCmd.PersistentFlags().StringArrayVar(&overrides, "set", nil,
		"Configuration override as key=value (repeatable)")
	rootCmd.PersistentFlags().StringVar(&secretEnv, "secret-env", defaultSecretEnv,
		"Environment variable holding the encryption secret")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"Write debug diagnostics to stderr")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig resolves the effective configuration from file, overrides and flags
func loadConfig() (*linelog.Config, error) {
	cfg := linelog.DefaultConfig()
	if configFile != "" {
		var err error
		if cfg, err = linelog.NewConfigFromFile(configFile); err != nil {
			return nil, err
		}
	}

	cfg, err := linelog.ParseOverrides(cfg, overrides...)
	if err != nil {
		return nil, err
	}

	if debug {
		cfg.Level = linelog.LevelDebug
		cfg.EnableConsole = true
		cfg.ConsoleTarget = "stderr"
	}
	return cfg, nil
}

// secret reads the encryption secret from the configured environment variable
func secret() ([]byte, error) {
	value := os.Getenv(secretEnv)
	if value == "" {
		return nil, fmt.Errorf("encryption secret not set, export %s", secretEnv)
	}
	return []byte(value), nil
}

// buildManager creates an initialized manager for cfg, wiring the sealed writer
// when encryption is required
func buildManager(cfg *linelog.Config) (*linelog.Manager, error) {
	builder := linelog.NewBuilder().Config(cfg)

	if cfg.Encrypt {
		key, err := secret()
		if err != nil {
			return nil, err
		}
		wrapper, err := sealed.Wrapper(key)
		if err != nil {
			return nil, err
		}
		builder.Encrypt(wrapper)
	}

	return builder.Build()
}

// printStats writes a manager summary
func printStats(cmd *cobra.Command, m *linelog.Manager) {
	stats := m.Stats()
	fmt.Fprintf(cmd.OutOrStdout(),
		"lines written: %d, dropped: %d, write errors: %d, storage failures: %d, rotations: %d\n",
		stats.LinesWritten, stats.LinesDropped, stats.WriteErrors, stats.StorageFailures, stats.Rotations)
}
