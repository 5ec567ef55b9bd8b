package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCategoriesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "Affiche le référentiel des catégories",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := ctx.loadRegistry()
			if err != nil {
				return err
			}

			categories := registry.Categories()
			rows := make([][]string, 0, len(categories))
			for _, category := range categories {
				rows = append(rows, []string{category.ID, category.Name})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Catégorie"},
				rows,
				[]columnAlignment{alignLeft, alignLeft},
			))
			return nil
		},
	}
}
