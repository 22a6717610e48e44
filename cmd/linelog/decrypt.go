// FILE: lixenwraith/linelog/cmd/linelog/decrypt.go
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/lixenwraith/linelog/sealed"
	"github.com/spf13/cobra"
)

var decryptCmd = &cobra.Command{
	Use:   "decrypt <file>",
	Short: "Print the plaintext of an encrypted log file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecrypt,
}

func init() {
	rootCmd.AddCommand(decryptCmd)
}

func runDecrypt(cmd *cobra.Command, args []string) error {
	key, err := secret()
	if err != nil {
		return err
	}

	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	reader, err := sealed.NewReader(file, key)
	if err != nil {
		return err
	}
	if _, err := io.Copy(cmd.OutOrStdout(), reader); err != nil {
		return fmt.Errorf("failed to decrypt '%s': %w", args[0], err)
	}
	return nil
}
