package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"inventaire/internal/ledger"
	"inventaire/internal/review"
)

type mode int

const (
	modeList mode = iota
	modeEdit
	modeHint
	modeConfirm
)

// pendingAction names what a hint or confirmation applies to.
type pendingAction int

const (
	actionNone pendingAction = iota
	actionRescan
	actionMultiScan
	actionDelete
	actionRedo
)

// editableColumns are the fields the detail pane cycles through.
var editableColumns = []string{
	ledger.ColNom,
	ledger.ColCategorie,
	ledger.ColCategorieID,
	ledger.ColQuantite,
	ledger.ColEtat,
	ledger.ColPrixUnitaire,
	ledger.ColPrixNeuf,
	ledger.ColRemarques,
}

// opDoneMsg reports the outcome of a session operation, including the
// blocking rescan calls run as commands.
type opDoneMsg struct {
	status string
	err    error
}

// Model is the bubbletea model over one review session.
type Model struct {
	session *review.Session
	rows    []ledger.Row

	mode    mode
	pending pendingAction
	busy    bool
	cursor  int
	field   int
	input   textinput.Model
	status  string
	err     error
	width   int
	height  int
}

// New builds the initial model.
func New(session *review.Session) Model {
	input := textinput.New()
	input.CharLimit = 200
	return Model{
		session: session,
		rows:    session.Rows(),
		input:   input,
	}
}

// Run opens the review interface and blocks until the reviewer quits.
func Run(session *review.Session) error {
	program := tea.NewProgram(New(session), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("review interface: %w", err)
	}
	return nil
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case opDoneMsg:
		m.busy = false
		m.rows = m.session.Rows()
		m.clampCursor()
		m.status = msg.status
		m.err = msg.err
		return m, nil
	case tea.KeyMsg:
		// One session operation at a time; the ledger has a single-writer
		// contract and a second rewrite would race the one in flight.
		if m.busy {
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		}
		switch m.mode {
		case modeEdit, modeHint:
			return m.updateInput(msg)
		case modeConfirm:
			return m.updateConfirm(msg)
		default:
			return m.updateList(msg)
		}
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case "g":
		m.cursor = 0
	case "G":
		m.cursor = len(m.rows) - 1
		if m.cursor < 0 {
			m.cursor = 0
		}
	case "tab", "right":
		m.field = (m.field + 1) % len(editableColumns)
	case "shift+tab", "left":
		m.field = (m.field + len(editableColumns) - 1) % len(editableColumns)
	case "e", "enter":
		if row, ok := m.current(); ok {
			m.mode = modeEdit
			m.input.Placeholder = editableColumns[m.field]
			m.input.SetValue(row.Field(editableColumns[m.field], "."))
			m.input.Focus()
		}
	case "v":
		if row, ok := m.current(); ok {
			return m.do(fmt.Sprintf("ligne %d validée", row.ID), func() error {
				return m.session.Validate(row.ID)
			})
		}
	case "r":
		if row, ok := m.current(); ok {
			return m.do("image pivotée", func() error {
				return m.session.Rotate(row.ID, true)
			})
		}
	case "R":
		if row, ok := m.current(); ok {
			return m.do("image pivotée", func() error {
				return m.session.Rotate(row.ID, false)
			})
		}
	case "s":
		m.mode = modeHint
		m.pending = actionRescan
		m.input.Placeholder = "indice pour la re-analyse"
		m.input.SetValue("")
		m.input.Focus()
	case "m":
		m.mode = modeHint
		m.pending = actionMultiScan
		m.input.Placeholder = "indice (optionnel) pour séparer les objets"
		m.input.SetValue("")
		m.input.Focus()
	case "d":
		if _, ok := m.current(); ok {
			m.mode = modeConfirm
			m.pending = actionDelete
		}
	case "x":
		if _, ok := m.current(); ok {
			m.mode = modeConfirm
			m.pending = actionRedo
		}
	}
	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeList
		m.pending = actionNone
		m.input.Blur()
		return m, nil
	case "enter":
		value := m.input.Value()
		wasEdit := m.mode == modeEdit
		pending := m.pending
		m.mode = modeList
		m.pending = actionNone
		m.input.Blur()

		row, ok := m.current()
		if !ok {
			return m, nil
		}
		if wasEdit {
			column := editableColumns[m.field]
			return m.do(fmt.Sprintf("%s mis à jour", column), func() error {
				return m.session.Edit(row.ID, column, value)
			})
		}
		switch pending {
		case actionRescan:
			return m.do(fmt.Sprintf("ligne %d re-analysée", row.ID), func() error {
				return m.session.Rescan(context.Background(), row.ID, value)
			})
		case actionMultiScan:
			return m.do(fmt.Sprintf("ligne %d séparée", row.ID), func() error {
				return m.session.MultiScan(context.Background(), row.ID, value)
			})
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	pending := m.pending
	m.mode = modeList
	m.pending = actionNone
	switch msg.String() {
	case "y", "o", "enter":
		row, ok := m.current()
		if !ok {
			return m, nil
		}
		switch pending {
		case actionDelete:
			return m.do(fmt.Sprintf("ligne %d supprimée", row.ID), func() error {
				return m.session.Delete(row.ID)
			})
		case actionRedo:
			return m.do(fmt.Sprintf("photo %s à refaire", row.Fichier), func() error {
				return m.session.MarkRedo(row.ID)
			})
		}
	}
	return m, nil
}

// do wraps a session operation into a command so slow calls (rescans) do
// not freeze the interface. The model stays busy until the opDoneMsg
// lands, which keeps operations serialized.
func (m Model) do(status string, op func() error) (tea.Model, tea.Cmd) {
	m.busy = true
	return m, func() tea.Msg {
		if err := op(); err != nil {
			return opDoneMsg{err: err}
		}
		return opDoneMsg{status: status}
	}
}

func (m Model) current() (ledger.Row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return ledger.Row{}, false
	}
	return m.rows[m.cursor], true
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}
