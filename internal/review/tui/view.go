package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("243"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	lowStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	fieldStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	promptStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
)

const listPage = 15

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Inventaire — %s (%d lignes)", m.session.Folder(), len(m.rows))))
	b.WriteString("\n\n")
	b.WriteString(m.listView())
	b.WriteString("\n")
	b.WriteString(m.detailView())
	b.WriteString("\n")

	switch m.mode {
	case modeEdit:
		b.WriteString(promptStyle.Render("Nouvelle valeur:"))
		b.WriteString(" " + m.input.View() + "\n")
	case modeHint:
		b.WriteString(promptStyle.Render("Indice:"))
		b.WriteString(" " + m.input.View() + "\n")
	case modeConfirm:
		verb := "supprimer la ligne"
		if m.pending == actionRedo {
			verb = "marquer la photo à refaire"
		}
		b.WriteString(promptStyle.Render(fmt.Sprintf("Confirmer: %s ? (o/n)", verb)))
		b.WriteString("\n")
	}

	if m.busy {
		b.WriteString(statusStyle.Render("opération en cours…"))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render("erreur: " + m.err.Error()))
		b.WriteString("\n")
	} else if m.status != "" {
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("j/k naviguer · tab champ · e éditer · v valider · s re-analyser · m multi · r/R pivoter · x à refaire · d supprimer · q quitter"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) listView() string {
	if len(m.rows) == 0 {
		return helpStyle.Render("  (inventaire vide)") + "\n"
	}

	start := 0
	if m.cursor >= listPage {
		start = m.cursor - listPage + 1
	}
	end := start + listPage
	if end > len(m.rows) {
		end = len(m.rows)
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("  %4s  %-30s %-20s %4s %5s  %8s", "ID", "Nom", "Catégorie", "Qté", "Fiab", "Total")))
	b.WriteString("\n")
	for i := start; i < end; i++ {
		row := m.rows[i]
		line := fmt.Sprintf("  %4d  %-30s %-20s %4d %4d%%  %8.2f", row.ID, truncate(row.Nom, 30), truncate(row.Categorie, 20), row.Quantite, row.Fiabilite, row.PrixTotal)
		switch {
		case i == m.cursor:
			line = selectedStyle.Render("▸" + line[1:])
		case row.Fiabilite < 70:
			line = lowStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) detailView() string {
	row, ok := m.current()
	if !ok {
		return ""
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render("Fichier: "))
	b.WriteString(row.Fichier)
	b.WriteString("\n")
	for i, column := range editableColumns {
		label := fmt.Sprintf("%-18s", column)
		if i == m.field {
			label = fieldStyle.Render("▸ " + label)
		} else {
			label = "  " + label
		}
		b.WriteString(fmt.Sprintf("%s %s\n", label, row.Field(column, ".")))
	}
	if row.RemarquesTraitees != "" {
		b.WriteString(helpStyle.Render("  Remarques traitées: " + row.RemarquesTraitees))
		b.WriteString("\n")
	}
	return b.String()
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
