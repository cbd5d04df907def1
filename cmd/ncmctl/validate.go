package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/ncmcompliance/internal/ncm"
)

type codeResult struct {
	Input      string `json:"input" yaml:"input"`
	Normalized string `json:"normalized" yaml:"normalized"`
	Valid      bool   `json:"valid" yaml:"valid"`
	Category   string `json:"category,omitempty" yaml:"category,omitempty"`
	Example    string `json:"example,omitempty" yaml:"example,omitempty"`
	Notes      string `json:"notes,omitempty" yaml:"notes,omitempty"`
	Reason     string `json:"reason" yaml:"reason"`
}

var validateCmd = &cobra.Command{
	Use:   "validate <code>...",
	Short: "Validate NCM codes against the reference table",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := loadReference()
		if err != nil {
			return err
		}

		results := make([]codeResult, 0, len(args))
		invalid := 0
		for _, code := range args {
			res := ncm.Validate(code, ref)
			if !res.IsValid {
				invalid++
			}
			results = append(results, codeResult{
				Input:      res.InputCode,
				Normalized: res.NormalizedCode,
				Valid:      res.IsValid,
				Category:   res.Category,
				Example:    res.Description,
				Notes:      res.Notes,
				Reason:     res.Reason,
			})
		}
		if err := writeOutput(cmd.OutOrStdout(), outputFormat, results); err != nil {
			return err
		}
		if invalid > 0 {
			return fmt.Errorf("%d of %d codes did not validate", invalid, len(args))
		}
		return nil
	},
}
