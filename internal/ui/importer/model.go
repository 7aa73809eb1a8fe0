package importer

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/relaymail/internal/attach"
	"github.com/nhle/relaymail/internal/mailstate"
	"github.com/nhle/relaymail/internal/theme"
)

// SubmitMsg asks the parent to start the import.
type SubmitMsg struct{}

var spreadsheetExts = map[string]bool{".xlsx": true, ".xls": true}

type formBindings struct {
	path string
	send bool
}

// Model is the bulk-import view: pick a spreadsheet, then Send or Cancel.
type Model struct {
	importer *mailstate.Importer
	loader   *attach.Loader
	form     *huh.Form
	fb       *formBindings
	spinner  spinner.Model
	width    int
	height   int
}

// New creates an import view over im.
func New(im *mailstate.Importer, loader *attach.Loader, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorYellow)

	return Model{
		importer: im,
		loader:   loader,
		fb:       &formBindings{send: true},
		spinner:  sp,
		width:    width,
		height:   height,
	}
}

// Init builds the form.
func (m *Model) Init() tea.Cmd {
	return m.Rebuild()
}

// Rebuild recreates the form. The path is kept while the importer still
// holds a file so a failed import can be retried.
func (m *Model) Rebuild() tea.Cmd {
	if _, ok := m.importer.File(); !ok {
		m.fb.path = ""
	}
	m.fb.send = true
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Recipient spreadsheet").
				Description(".xlsx or .xls with one address per row").
				Placeholder("~/contacts.xlsx").
				Value(&m.fb.path).
				Validate(m.selectFile),
			huh.NewConfirm().
				Affirmative("Send").
				Negative("Cancel").
				Value(&m.fb.send),
		),
	).WithWidth(m.formWidth())
	return m.form.Init()
}

// selectFile loads the spreadsheet into the importer. An empty path leaves
// the importer as it is.
func (m *Model) selectFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if ext := strings.ToLower(filepath.Ext(path)); !spreadsheetExts[ext] {
		return fmt.Errorf("expected an .xlsx or .xls file, got %q", ext)
	}
	f, err := m.loader.Load(path)
	if err != nil {
		return err
	}
	return m.importer.SetFile(f)
}

// Update handles messages for the import view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(spinner.TickMsg); ok {
		if !m.importer.Status().Sending() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.form == nil || m.importer.Status().Sending() {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		if !m.fb.send {
			_ = m.importer.Cancel()
			return m, m.Rebuild()
		}
		return m, tea.Batch(m.spinner.Tick, func() tea.Msg { return SubmitMsg{} })
	case huh.StateAborted:
		_ = m.importer.Cancel()
		return m, m.Rebuild()
	}
	return m, cmd
}

// View renders the import view.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	parts := []string{titleStyle.Render("Import Recipients")}

	if f, ok := m.importer.File(); ok {
		parts = append(parts, theme.MetaStyle.Render(fmt.Sprintf("Selected: %s (%d bytes)", f.Name, f.Size())))
	}

	status := m.importer.Status()
	switch {
	case status.Sending():
		parts = append(parts, m.spinner.View()+" "+theme.StatusStyle(theme.ToneBusy).Render(status.Text()))
		return lipgloss.NewStyle().Padding(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
	case status.Succeeded():
		parts = append(parts, theme.StatusStyle(theme.ToneSuccess).Render(status.Text()), "")
	case status.Failed():
		parts = append(parts, theme.StatusStyle(theme.ToneError).Render(status.Text()), "")
	}

	if m.form != nil {
		parts = append(parts, m.form.View())
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form = m.form.WithWidth(m.formWidth())
	}
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 80 {
		w = 80
	}
	return w
}
