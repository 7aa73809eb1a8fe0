package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings for the application.
type KeyMap struct {
	// Navigation
	Down key.Binding
	Up   key.Binding

	// Detail modal
	Open   key.Binding
	Export key.Binding

	// Back / Quit
	Back key.Binding
	Quit key.Binding

	// Command palette
	Command key.Binding

	// Help toggle
	Help key.Binding

	// Settings form
	Settings key.Binding

	// Refresh the current list; global refresh trigger
	Reload        key.Binding
	GlobalRefresh key.Binding

	// View switching
	ViewCompose  key.Binding
	ViewUnread   key.Binding
	ViewReceived key.Binding
	ViewSent     key.Binding
	ViewRefresh  key.Binding
	ViewImport   key.Binding
	NextView     key.Binding
	PrevView     key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open message"),
		),
		Export: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "save as .eml"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Command: key.NewBinding(
			key.WithKeys(":"),
			key.WithHelp(":", "command palette"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Settings: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "settings"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload list"),
		),
		GlobalRefresh: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "refresh mailbox"),
		),
		ViewCompose: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "compose"),
		),
		ViewUnread: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "unread"),
		),
		ViewReceived: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "received"),
		),
		ViewSent: key.NewBinding(
			key.WithKeys("4"),
			key.WithHelp("4", "sent"),
		),
		ViewRefresh: key.NewBinding(
			key.WithKeys("5"),
			key.WithHelp("5", "refreshed"),
		),
		ViewImport: key.NewBinding(
			key.WithKeys("6"),
			key.WithHelp("6", "import"),
		),
		NextView: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("ctrl+n", "next view"),
		),
		PrevView: key.NewBinding(
			key.WithKeys("ctrl+p"),
			key.WithHelp("ctrl+p", "previous view"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Up, k.Down, k.Open, k.Back,
		k.GlobalRefresh, k.Help, k.Quit,
	}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Open, k.Export, k.Back},
		{k.Reload, k.GlobalRefresh, k.Command, k.Settings, k.Help, k.Quit},
		{k.ViewCompose, k.ViewUnread, k.ViewReceived, k.ViewSent, k.ViewRefresh, k.ViewImport},
		{k.NextView, k.PrevView},
	}
}
