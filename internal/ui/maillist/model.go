package maillist

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/relaymail/internal/keys"
	"github.com/nhle/relaymail/internal/mailstate"
	"github.com/nhle/relaymail/internal/model"
	"github.com/nhle/relaymail/internal/theme"
)

// SelectedMsg is sent when the user opens a message.
type SelectedMsg struct {
	Message model.Message
}

// ReloadMsg is sent when the user asks for the list to be fetched again.
type ReloadMsg struct {
	Endpoint model.Endpoint
}

// Model renders one mail collection. It is a view of a FetchState; the
// parent owns the fetcher and pushes states in with SetState.
type Model struct {
	endpoint model.Endpoint
	list     list.Model
	spinner  spinner.Model
	keys     *keys.KeyMap
	state    mailstate.FetchState
	width    int
	height   int
}

// New creates a list view for ep.
func New(ep model.Endpoint, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-2)
	l.Title = ep.Title()
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = theme.HeaderStyle
	l.SetStatusBarItemName("message", "messages")

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorBlue)

	return Model{
		endpoint: ep,
		list:     l,
		spinner:  sp,
		keys:     k,
		width:    width,
		height:   height,
	}
}

// Endpoint returns the collection this view shows.
func (m Model) Endpoint() model.Endpoint {
	return m.endpoint
}

// State returns the fetch state being shown.
func (m Model) State() mailstate.FetchState {
	return m.state
}

// SetState replaces the rendered state. Rows are rebuilt from the state's
// messages in server order.
func (m *Model) SetState(s mailstate.FetchState) tea.Cmd {
	m.state = s
	items := make([]list.Item, len(s.Messages))
	for i, msg := range s.Messages {
		items[i] = MessageItem{Message: msg}
	}
	cmds := []tea.Cmd{m.list.SetItems(items)}
	if s.Loading() {
		cmds = append(cmds, m.spinner.Tick)
	}
	return tea.Batch(cmds...)
}

// Filtering reports whether the list's filter input has focus.
func (m Model) Filtering() bool {
	return m.list.FilterState() == list.Filtering
}

// Init returns nil; the parent starts fetches.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !m.state.Loading() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.Filtering() {
			break
		}
		switch {
		case key.Matches(msg, m.keys.Open):
			item, ok := m.list.SelectedItem().(MessageItem)
			if !ok {
				return m, nil
			}
			return m, func() tea.Msg {
				return SelectedMsg{Message: item.Message}
			}

		case key.Matches(msg, m.keys.Reload):
			ep := m.endpoint
			return m, func() tea.Msg {
				return ReloadMsg{Endpoint: ep}
			}
		}
	}

	// Delegate to the list for navigation and filtering
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the list view.
func (m Model) View() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	switch m.state.Phase {
	case mailstate.FetchIdle:
		return style.Render(fmt.Sprintf("Press r to load %s mail.", m.endpoint.Title()))
	case mailstate.FetchLoading:
		return style.Render(m.spinner.View() + " Loading...")
	case mailstate.FetchFailed:
		return style.Foreground(theme.ColorRed).Render(
			fmt.Sprintf("Could not load %s mail.\n\nPress r to try again.", m.endpoint.Title()),
		)
	}

	if len(m.list.Items()) == 0 {
		return style.Render("No emails found.")
	}
	return m.list.View()
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}
