// FILE: lixenwraith/linelog/cmd/linelog/config.go
package main

import (
	"github.com/BurntSushi/toml"
	"github.com/lixenwraith/linelog"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as TOML",
	Long: `Prints the configuration that results from the defaults, the --config file and
the --set overrides. The output is a valid --config file.`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	doc := map[string]*linelog.Config{"linelog": cfg}
	return toml.NewEncoder(cmd.OutOrStdout()).Encode(doc)
}
