package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/ncmcompliance/internal/analysis"
	"github.com/Lllllllleong/ncmcompliance/internal/dataset"
)

var (
	inspectTop    int
	inspectHead   int
	inspectExport string
)

type inspection struct {
	File            string         `json:"file" yaml:"file"`
	Encoding        string         `json:"encoding" yaml:"encoding"`
	Delimiter       string         `json:"delimiter" yaml:"delimiter"`
	Columns         []string       `json:"columns" yaml:"columns"`
	Rows            int            `json:"rows" yaml:"rows"`
	CodeColumn      string         `json:"codeColumn,omitempty" yaml:"codeColumn,omitempty"`
	UniqueCodes     int            `json:"uniqueCodes" yaml:"uniqueCodes"`
	InvalidRows     int            `json:"invalidRows" yaml:"invalidRows"`
	WellFormedShare string         `json:"wellFormedShare" yaml:"wellFormedShare"`
	TopByCount      []analysis.Bar `json:"topByCount,omitempty" yaml:"topByCount,omitempty"`
	TopByValue      []analysis.Bar `json:"topByValue,omitempty" yaml:"topByValue,omitempty"`
	Review          []string       `json:"review,omitempty" yaml:"review,omitempty"`
	Preview         []dataset.Row  `json:"preview,omitempty" yaml:"preview,omitempty"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <zip>",
	Short: "Summarize an invoice export and its NCM codes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := loadReference()
		if err != nil {
			return err
		}
		ds, err := openZip(args[0])
		if err != nil {
			return err
		}

		summary, err := analysis.Summarize(ds, ref)
		if err != nil && !errors.Is(err, analysis.ErrNoCodeColumn) {
			return err
		}

		out := inspection{
			File:            ds.Name,
			Encoding:        ds.Encoding,
			Delimiter:       ds.Delimiter,
			Columns:         ds.Columns,
			Rows:            len(ds.Rows),
			CodeColumn:      summary.CodeColumn,
			UniqueCodes:     summary.UniqueCodes,
			InvalidRows:     summary.InvalidRows,
			WellFormedShare: fmt.Sprintf("%.1f%%", summary.WellFormedPercent()),
		}
		if summary.CodeColumn != "" {
			out.TopByCount = analysis.TopByCount(ds, summary.CodeColumn, inspectTop)
			if valueCol, ok := ds.ValueColumn(); ok {
				out.TopByValue = analysis.TopByValue(ds, summary.CodeColumn, valueCol, inspectTop)
			}
		}
		if inspectHead > 0 {
			out.Preview = ds.Head(inspectHead)
		}
		for _, f := range summary.Unknown() {
			out.Review = append(out.Review, fmt.Sprintf("%s x%d: %s", f.Code, f.Count, f.Result.Reason))
		}

		if inspectExport != "" {
			data, err := ds.ToCSV()
			if err != nil {
				return fmt.Errorf("failed to export CSV: %w", err)
			}
			if err := os.WriteFile(inspectExport, data, 0o644); err != nil {
				return err
			}
			slog.Info("Exported dataset.", "path", inspectExport)
		}
		return writeOutput(cmd.OutOrStdout(), outputFormat, out)
	},
}

func init() {
	inspectCmd.Flags().IntVar(&inspectTop, "top", 10, "number of codes in each ranking")
	inspectCmd.Flags().IntVar(&inspectHead, "head", 0, "include the first n rows in the output")
	inspectCmd.Flags().StringVar(&inspectExport, "export", "", "write the decoded dataset as UTF-8 comma-separated CSV")
}

func openZip(path string) (*dataset.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return dataset.FromZip(f, info.Size())
}
