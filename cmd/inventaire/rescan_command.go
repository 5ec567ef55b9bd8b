package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRescanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rescan <dossier|fichier.csv>",
		Short: "Re-analyse toutes les lignes annotées dans Remarques",
		Long: "Parcourt l'inventaire et re-soumet à Gemini chaque ligne dont la colonne\n" +
			"Remarques est remplie, en utilisant la remarque comme indice. Les remarques\n" +
			"appliquées sont archivées dans « Remarques traitées ».",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openSession(ctx, args[0])
			if err != nil {
				return err
			}

			updated, failed, err := session.RescanPending(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d ligne(s) re-analysée(s)\n", updated)
			if failed > 0 {
				fmt.Fprintf(out, "%d ligne(s) en échec; les remarques sont conservées pour réessayer.\n", failed)
			}
			return nil
		},
	}
}
