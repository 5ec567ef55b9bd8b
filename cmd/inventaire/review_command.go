package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"inventaire/internal/ledger"
	"inventaire/internal/review"
	"inventaire/internal/review/tui"
)

func newReviewCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "review <dossier|fichier.csv>",
		Short: "Corrige un inventaire dans une interface interactive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openSession(ctx, args[0])
			if err != nil {
				return err
			}
			return tui.Run(session)
		},
	}
}

// openSession resolves a folder or direct CSV path into a review session
// with the full client wired so rescans work from the interface.
func openSession(ctx *commandContext, path string) (*review.Session, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return nil, err
	}
	registry, err := ctx.loadRegistry()
	if err != nil {
		return nil, err
	}
	client, err := ctx.newClient()
	if err != nil {
		return nil, err
	}

	ledgerPath := path
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		ledgerPath = ledger.PathFor(path)
	} else if filepath.Ext(path) != ".csv" {
		ledgerPath = ledger.PathFor(path)
	}
	return review.Open(ledgerPath, cfg, logger, client, registry)
}
