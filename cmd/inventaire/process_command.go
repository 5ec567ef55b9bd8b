package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"inventaire/internal/gemini"
	"inventaire/internal/pipeline"
	"inventaire/internal/workdir"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var target string
	var noPrompt bool

	cmd := &cobra.Command{
		Use:   "process <dossier|archive.zip>",
		Short: "Analyse les photos en attente d'un dossier",
		Long: "Classifie chaque photo du dossier via Gemini, la renomme et la range dans\n" +
			"traitees/, et ajoute une ligne au fichier CSV du dossier. Les photos déjà\n" +
			"traitées sont ignorées: une exécution interrompue reprend où elle s'était\n" +
			"arrêtée.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			registry, err := ctx.loadRegistry()
			if err != nil {
				return err
			}
			client, err := ctx.newClient()
			if err != nil {
				return err
			}

			interactive := !noPrompt && isatty.IsTerminal(os.Stdin.Fd())
			if interactive {
				if err := promptForContext(cmd, args[0]); err != nil {
					return err
				}
			}

			if err := client.HealthCheck(cmd.Context()); err != nil {
				return fmt.Errorf("vérification Gemini: %w", err)
			}

			opts := pipeline.Options{Target: strings.TrimSpace(target)}
			if interactive && cfg.Reliability.Action == "ask" {
				opts.Hinter = stdinHinter(cmd)
			}

			processor := pipeline.New(cfg, logger, client, registry)
			summary, err := processor.Run(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"", ""},
				[][]string{
					{"Photos trouvées", strconv.Itoa(summary.Found)},
					{"Traitées", strconv.Itoa(summary.Processed)},
					{"Ignorées", strconv.Itoa(summary.Skipped)},
					{"Fiabilité faible", strconv.Itoa(summary.LowConfidence)},
					{"Inventaire", summary.LedgerPath},
				},
				[]columnAlignment{alignLeft, alignRight},
			))
			if summary.Skipped > 0 {
				fmt.Fprintf(out, "%d photo(s) ignorée(s); relancez la commande pour réessayer.\n", summary.Skipped)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "Mode comptage: ne compter que l'élément nommé")
	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "Désactive les questions interactives")
	return cmd
}

// promptForContext asks for a folder description on first use so the
// classifier gets lot-level instructions. Zip inputs are skipped; their
// folder does not exist until the run extracts it.
func promptForContext(cmd *cobra.Command, folder string) error {
	info, err := os.Stat(folder)
	if err != nil || !info.IsDir() {
		return nil
	}
	if _, found, err := workdir.LoadContext(folder); err != nil || found {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Aucun fichier context.txt dans ce dossier.")
	fmt.Fprint(out, "Description du lot (entrée vide pour passer): ")
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return nil
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	return workdir.SaveContext(folder, line)
}

// stdinHinter prompts for a correction hint when a classification comes
// back under the reliability threshold and the action is "ask".
func stdinHinter(cmd *cobra.Command) func(file string, result gemini.Classification) (string, bool) {
	reader := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()
	return func(file string, result gemini.Classification) (string, bool) {
		fmt.Fprintf(out, "Fiabilité %d%% pour %s (%s).\n", int(result.Fiabilite), file, result.Nom)
		fmt.Fprint(out, "Indice pour re-analyser (entrée vide pour accepter): ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", false
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return "", false
		}
		return line, true
	}
}
