package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/relaymail/internal/mailstate"
	"github.com/nhle/relaymail/internal/model"
	"github.com/nhle/relaymail/internal/theme"
	"github.com/nhle/relaymail/internal/keys"
)

// BackMsg signals the parent that the modal was dismissed.
type BackMsg struct{}

// ExportRequestMsg asks the parent to save the open message.
type ExportRequestMsg struct {
	Message model.Message
}

// ExportedMsg reports the outcome of an export back to the modal.
type ExportedMsg struct {
	Path string
	Err  error
}

// Model is the message detail modal. It renders whatever the shared
// selection holds.
type Model struct {
	selection *mailstate.Selection
	viewport  viewport.Model
	keys      *keys.KeyMap
	notice    string
	tone      theme.Tone
	width     int
	height    int
}

// New creates a detail modal over sel.
func New(sel *mailstate.Selection, keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		selection: sel,
		viewport:  vp,
		keys:      keys,
		width:     width,
		height:    height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Open selects msg, replacing any open message, and renders it.
func (m *Model) Open(msg model.Message) {
	m.selection.Select(msg)
	m.notice = ""
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// IsOpen reports whether a message is showing.
func (m Model) IsOpen() bool {
	return m.selection.IsOpen()
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ExportedMsg:
		if msg.Err != nil {
			m.notice = "Export failed: " + msg.Err.Error()
			m.tone = theme.ToneError
		} else {
			m.notice = "Saved to " + msg.Path
			m.tone = theme.ToneSuccess
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Back):
			m.selection.Dismiss()
			m.notice = ""
			return m, func() tea.Msg {
				return BackMsg{}
			}

		case key.Matches(msg, m.keys.Export):
			current, ok := m.selection.Current()
			if !ok {
				return m, nil
			}
			m.notice = "Saving..."
			m.tone = theme.ToneBusy
			return m, func() tea.Msg {
				return ExportRequestMsg{Message: current}
			}
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if !m.selection.IsOpen() {
		emptyStyle := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray)
		return emptyStyle.Render("No message selected")
	}

	body := m.viewport.View()
	if m.notice != "" {
		body = lipgloss.JoinVertical(lipgloss.Left, body, theme.StatusStyle(m.tone).Render(m.notice))
	}
	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Render(body)
}

// renderContent builds the modal content for the viewport.
func (m Model) renderContent() string {
	msg, ok := m.selection.Current()
	if !ok {
		return ""
	}

	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(msg.DisplaySubject()))
	sections = append(sections, "")

	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)
	field := func(label, value string) {
		if value == "" {
			return
		}
		sections = append(sections, fmt.Sprintf(
			"%s %s",
			theme.MetaStyle.Render(fmt.Sprintf("%-6s", label+":")),
			valStyle.Render(value),
		))
	}
	field("From", msg.From)
	field("To", msg.To)
	field("Date", msg.DisplayTime())

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(min(m.width-8, 80), 1)))
	sections = append(sections, "", separator, "")

	body := msg.PlainBody()
	if body == model.NoBody {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render(body)
	} else if m.width > 8 {
		body = lipgloss.NewStyle().Width(m.width - 8).Render(body)
	}
	sections = append(sections, body)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width - 8
	m.viewport.Height = height - 5
	if m.selection.IsOpen() {
		m.viewport.SetContent(m.renderContent())
	}
}
