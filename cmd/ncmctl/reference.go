package main

import (
	"github.com/spf13/cobra"

	"github.com/Lllllllleong/ncmcompliance/internal/ncm"
)

var (
	referenceCategory string
	referenceSearch   string
)

type referenceListing struct {
	Categories []string             `json:"categories" yaml:"categories"`
	Entries    []ncm.ReferenceEntry `json:"entries" yaml:"entries"`
}

var referenceCmd = &cobra.Command{
	Use:   "reference",
	Short: "List or search the sector reference table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := loadReference()
		if err != nil {
			return err
		}

		var entries []ncm.ReferenceEntry
		switch {
		case referenceSearch != "":
			entries = ref.SearchByDescription(referenceSearch)
		case referenceCategory != "":
			entries = ref.ByCategory(referenceCategory)
		default:
			entries = ref.Entries()
		}
		return writeOutput(cmd.OutOrStdout(), outputFormat, referenceListing{
			Categories: ref.Categories(),
			Entries:    entries,
		})
	},
}

func init() {
	referenceCmd.Flags().StringVar(&referenceCategory, "category", "", "only entries of this category")
	referenceCmd.Flags().StringVar(&referenceSearch, "search", "", "keyword matched against descriptions and categories")
}
