package compose

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/relaymail/internal/attach"
	"github.com/nhle/relaymail/internal/mailstate"
	"github.com/nhle/relaymail/internal/model"
	"github.com/nhle/relaymail/internal/theme"
)

// SubmitMsg asks the parent to start sending the composer's draft.
type SubmitMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	to          string
	subject     string
	body        string
	attachments string
	files       []model.File
}

// Model is the compose form. The draft itself lives in the Composer; the
// form is rebuilt from it after every submission.
type Model struct {
	composer *mailstate.Composer
	loader   *attach.Loader
	form     *huh.Form
	fb       *formBindings
	spinner  spinner.Model
	width    int
	height   int
}

// New creates a compose view over composer.
func New(composer *mailstate.Composer, loader *attach.Loader, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorYellow)

	return Model{
		composer: composer,
		loader:   loader,
		fb:       &formBindings{},
		spinner:  sp,
		width:    width,
		height:   height,
	}
}

// Init builds an empty form.
func (m *Model) Init() tea.Cmd {
	return m.Rebuild()
}

// Rebuild recreates the form from the composer's draft. After a success
// the draft is empty; after a failure it still holds the values that were
// sent, and the attachment paths typed earlier are kept.
func (m *Model) Rebuild() tea.Cmd {
	d := m.composer.Draft()
	m.fb.to = d.To
	m.fb.subject = d.Subject
	m.fb.body = d.Text
	if len(m.composer.Attachments()) == 0 {
		m.fb.attachments = ""
		m.fb.files = nil
	}
	m.form = m.buildForm()
	return m.form.Init()
}

// Sending reports whether the composer has a submission in flight.
func (m Model) Sending() bool {
	return m.composer.Status().Sending()
}

// Update handles messages for the compose form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(spinner.TickMsg); ok {
		if !m.Sending() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.form == nil || m.Sending() {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		return m, m.handleSubmit()
	case huh.StateAborted:
		return m, m.Rebuild()
	}
	return m, cmd
}

// handleSubmit pushes the form values into the composer and asks the
// parent to send.
func (m *Model) handleSubmit() tea.Cmd {
	fields := []struct {
		f mailstate.Field
		v string
	}{
		{mailstate.FieldTo, strings.TrimSpace(m.fb.to)},
		{mailstate.FieldSubject, m.fb.subject},
		{mailstate.FieldText, m.fb.body},
	}
	for _, fv := range fields {
		if err := m.composer.UpdateField(fv.f, fv.v); err != nil {
			return nil
		}
	}
	if err := m.composer.ReplaceAttachments(m.fb.files); err != nil {
		return nil
	}
	return tea.Batch(
		m.spinner.Tick,
		func() tea.Msg { return SubmitMsg{} },
	)
}

// View renders the form, or the sending panel while a submission is in
// flight.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	status := m.composer.Status()
	if status.Sending() {
		panel := lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("New Message"),
			m.spinner.View()+" "+theme.StatusStyle(theme.ToneBusy).Render(status.Text()),
		)
		return lipgloss.NewStyle().Padding(1, 2).Render(panel)
	}

	parts := []string{titleStyle.Render("New Message")}
	if text := status.Text(); text != "" {
		tone := theme.ToneSuccess
		if status.Failed() {
			tone = theme.ToneError
		}
		parts = append(parts, theme.StatusStyle(tone).Render(text), "")
	}
	if m.form != nil {
		parts = append(parts, m.form.View())
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form = m.form.WithWidth(m.formWidth()).WithHeight(m.formHeight())
	}
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("To").
				Placeholder("recipient@example.com").
				Value(&m.fb.to).
				Validate(validateAddress),
			huh.NewInput().
				Title("Subject").
				Value(&m.fb.subject),
			huh.NewText().
				Title("Body").
				Lines(8).
				Value(&m.fb.body),
			huh.NewInput().
				Title("Attachments").
				Description("Comma-separated file paths").
				Placeholder("~/report.pdf, ./notes.txt").
				Value(&m.fb.attachments).
				Validate(m.loadAttachments),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

// loadAttachments reads the listed files. A new list replaces the previous
// selection.
func (m *Model) loadAttachments(list string) error {
	files, err := m.loader.LoadAll(attach.SplitPaths(list))
	if err != nil {
		return err
	}
	m.fb.files = files
	return nil
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 6
	if h < 12 {
		h = 12
	}
	return h
}

// validateAddress checks the shape of a recipient. An empty recipient is
// allowed; the relay decides what to do with it.
func validateAddress(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || !strings.Contains(addr.Address, "@") {
		return fmt.Errorf("%q is not an email address", s)
	}
	return nil
}
