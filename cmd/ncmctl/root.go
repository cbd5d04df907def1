package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/ncmcompliance/internal/config"
	"github.com/Lllllllleong/ncmcompliance/internal/ncm"
)

var (
	cfgFile       string
	verbose       bool
	outputFormat  string
	referencePath string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "ncmctl",
	Short: "Validate NCM codes and build compliance reports offline",
	Long: `ncmctl runs the NCM compliance pipeline against local files.

It validates codes against the sector reference table, inspects invoice
exports, extracts findings tables from analyst output and renders the PDF
report without touching Cloud Storage or Firestore.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		var err error
		cfg, err = config.Load(cfgFile)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "optional YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "yaml", "output format: yaml or json")
	rootCmd.PersistentFlags().StringVar(&referencePath, "reference", "", "CSV reference table (default: REFERENCE_TABLE or the built-in table)")

	rootCmd.AddCommand(validateCmd, extractCmd, inspectCmd, reportCmd, referenceCmd)
}

// loadReference reads the reference table from a local file. Cloud Storage locations
// are only supported by the deployed functions.
func loadReference() (*ncm.Reference, error) {
	location := referencePath
	if location == "" && cfg != nil {
		location = cfg.ReferenceTable
	}
	if location == "" {
		return ncm.DefaultReference(), nil
	}
	f, err := os.Open(location)
	if err != nil {
		return nil, fmt.Errorf("failed to open reference table: %w", err)
	}
	defer f.Close()
	ref, err := ncm.LoadReference(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse reference table %s: %w", location, err)
	}
	slog.Debug("Loaded reference table.", "path", location, "entries", ref.Len())
	return ref, nil
}
