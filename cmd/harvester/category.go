package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maltedev/marketplace-harvester/internal/category"
)

var categoryCmd = &cobra.Command{
	Use:     "generate-category",
	Aliases: []string{"generate_category"},
	Short:   "Build the category and facet link CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		client := category.NewClient(nil, a.logger)
		n, err := category.Generate(cmd.Context(), client, a.cfg.Files.CategoryTree, a.cfg.Files.CategoryCSV)
		if err != nil {
			return err
		}
		fmt.Printf("%d categories generated in %q\n", n, a.cfg.Files.CategoryCSV)
		return nil
	},
}
