package main

import (
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/ncmcompliance/internal/tables"
)

var extractCmd = &cobra.Command{
	Use:   "extract <file|->",
	Short: "Extract the findings table from analyst output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}
		table, ok := tables.Extract(string(raw))
		if !ok {
			return errors.New("no findings table found")
		}
		return writeOutput(cmd.OutOrStdout(), outputFormat, table)
	},
}

func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(name)
}
