package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/nhle/relaymail/internal/attach"
	"github.com/nhle/relaymail/internal/export"
	"github.com/nhle/relaymail/internal/keys"
	"github.com/nhle/relaymail/internal/mailstate"
	"github.com/nhle/relaymail/internal/model"
	"github.com/nhle/relaymail/internal/relay"
	appsync "github.com/nhle/relaymail/internal/sync"
	"github.com/nhle/relaymail/internal/theme"
	"github.com/nhle/relaymail/internal/ui"
	"github.com/nhle/relaymail/internal/ui/command"
	"github.com/nhle/relaymail/internal/ui/compose"
	settings "github.com/nhle/relaymail/internal/ui/config"
	"github.com/nhle/relaymail/internal/ui/detail"
	helpview "github.com/nhle/relaymail/internal/ui/help"
	importview "github.com/nhle/relaymail/internal/ui/importer"
	"github.com/nhle/relaymail/internal/ui/maillist"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewCompose ViewState = iota
	ViewUnread
	ViewReceived
	ViewSent
	ViewRefresh
	ViewImport
	ViewHelp
	ViewCommand
	ViewSettings
)

// navOrder is the tab order of the main views.
var navOrder = []ViewState{ViewCompose, ViewUnread, ViewReceived, ViewSent, ViewRefresh, ViewImport}

var viewNames = map[ViewState]string{
	ViewCompose:  "Compose",
	ViewUnread:   "Unread",
	ViewReceived: "Received",
	ViewSent:     "Sent",
	ViewRefresh:  "Refreshed",
	ViewImport:   "Import",
	ViewHelp:     "Help",
	ViewCommand:  "Command",
	ViewSettings: "Settings",
}

var listEndpoints = map[ViewState]model.Endpoint{
	ViewUnread:   model.EndpointUnread,
	ViewReceived: model.EndpointReceived,
	ViewSent:     model.EndpointSent,
	ViewRefresh:  model.EndpointRefresh,
}

// Client is the relay surface the application needs.
type Client interface {
	mailstate.MessageSource
	mailstate.Sender
	mailstate.RecipientImporter
	appsync.RefreshTrigger
	BaseURL() string
}

var _ Client = (*relay.Client)(nil)

// Deps are the collaborators the root model is built from.
type Deps struct {
	Config     *model.AppConfig
	ConfigPath string
	Client     Client
	Logger     *zap.Logger
	// FS is used for attachments and exports; nil means the OS filesystem.
	FS afero.Fs
}

// noticeMsg sets the header status from a background command.
type noticeMsg struct {
	text string
	tone theme.Tone
}

// Model is the root Bubble Tea model. It routes keys and results between
// views and owns the controllers of the mounted view.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	cfg          *model.AppConfig
	configPath   string
	client       Client
	logger       *zap.Logger
	runner       *appsync.Runner
	fs           afero.Fs
	loader       *attach.Loader
	exporter     *export.Exporter
	merger       mailstate.Merger

	selection *mailstate.Selection
	composer  *mailstate.Composer
	importer  *mailstate.Importer
	fetcher   *mailstate.InboxFetcher
	feed      *mailstate.RefreshFeed

	composeView  compose.Model
	importView   importview.Model
	lists        map[ViewState]*maillist.Model
	detail       detail.Model
	helpView     helpview.Model
	commandView  command.Model
	settingsView settings.Model
	notice       string
	noticeTone   theme.Tone
	ready        bool

	// initCmd is the command returned by mounting the first view in New.
	initCmd tea.Cmd
}

// New creates the root application model.
func New(d Deps) Model {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fs := d.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}
	k := keys.DefaultKeyMap()
	sel := &mailstate.Selection{}

	m := Model{
		currentView: ViewCompose,
		keys:        k,
		cfg:         d.Config,
		configPath:  d.ConfigPath,
		client:      d.Client,
		logger:      logger.Named("app"),
		runner:      appsync.NewRunner(timeout(d.Config), logger),
		fs:          fs,
		loader:      attach.NewLoader(fs),
		exporter:    export.NewExporter(fs, d.Config.Export.Dir, logger),
		merger:      mailstate.Merger{KeepUnidentified: d.Config.Dedup.KeepUnidentified},
		selection:   sel,
		lists:       make(map[ViewState]*maillist.Model),
		detail:      detail.New(sel, k, 80, 24),
		helpView:    helpview.New(k, d.Client.BaseURL(), d.ConfigPath, 80, 24),
		commandView: command.New(80, 24),
	}
	for v, ep := range listEndpoints {
		l := maillist.New(ep, k, 80, 24)
		m.lists[v] = &l
	}
	m.initCmd = m.mount(ViewCompose)
	return m
}

// Init starts the compose view, which is mounted by New.
func (m Model) Init() tea.Cmd {
	return m.initCmd
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.composeView.SetSize(w, h)
		m.importView.SetSize(w, h)
		for _, l := range m.lists {
			l.SetSize(w, h)
		}
		m.detail.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		m.settingsView.SetSize(w, h)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case appsync.FetchResultMsg:
		if !msg.Applied {
			return m, nil
		}
		m.clearNotice()
		for v, ep := range listEndpoints {
			if ep == msg.Endpoint && v != ViewRefresh {
				return m, m.lists[v].SetState(msg.State)
			}
		}
		return m, nil

	case appsync.RefreshPollMsg:
		if !msg.Applied {
			return m, nil
		}
		state := msg.State
		state.Messages = msg.Messages
		return m, m.lists[ViewRefresh].SetState(state)

	case appsync.SendResultMsg:
		if !msg.Applied || m.composer == nil {
			return m, nil
		}
		m.clearNotice()
		return m, m.composeView.Rebuild()

	case appsync.ImportResultMsg:
		if !msg.Applied || m.importer == nil {
			return m, nil
		}
		m.clearNotice()
		return m, m.importView.Rebuild()

	case appsync.RefreshTriggeredMsg:
		cmd := m.navigate(ViewRefresh)
		if msg.Err != nil {
			m.setNotice("Refresh trigger failed", theme.ToneError)
		}
		return m, cmd

	case noticeMsg:
		m.setNotice(msg.text, msg.tone)
		return m, nil

	case compose.SubmitMsg:
		if m.composer == nil {
			return m, nil
		}
		return m, m.runner.Send(m.composer)

	case importview.SubmitMsg:
		if m.importer == nil {
			return m, nil
		}
		return m, m.runner.Import(m.importer)

	case maillist.SelectedMsg:
		m.detail.Open(msg.Message)
		return m, nil

	case maillist.ReloadMsg:
		return m, m.reload()

	case detail.BackMsg:
		return m, nil

	case detail.ExportRequestMsg:
		return m, m.exportMessage(msg.Message)

	case detail.ExportedMsg:
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd

	case helpview.CloseMsg, settings.DoneMsg:
		m.currentView = m.previousView
		return m, nil

	case settings.SavedMsg:
		return m, m.applySettings(msg.Config)

	case command.CancelMsg:
		m.currentView = m.previousView
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(string(msg))

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, m.quit()
		}
		if m.detail.IsOpen() {
			var cmd tea.Cmd
			m.detail, cmd = m.detail.Update(msg)
			return m, cmd
		}

		switch {
		case key.Matches(msg, m.keys.NextView):
			return m, m.navigate(m.step(1))
		case key.Matches(msg, m.keys.PrevView):
			return m, m.navigate(m.step(-1))
		}

		if m.acceptsGlobalKeys() {
			if cmd, handled := m.handleGlobalKey(msg); handled {
				return m, cmd
			}
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// acceptsGlobalKeys reports whether single-character shortcuts should be
// intercepted. Forms and text inputs receive every key instead.
func (m Model) acceptsGlobalKeys() bool {
	switch m.currentView {
	case ViewCompose, ViewImport, ViewCommand, ViewHelp, ViewSettings:
		return false
	}
	if l, ok := m.lists[m.currentView]; ok && l.Filtering() {
		return false
	}
	return true
}

func (m *Model) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit(), true
	case key.Matches(msg, m.keys.Help):
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return nil, true
	case key.Matches(msg, m.keys.Command):
		m.previousView = m.currentView
		m.currentView = ViewCommand
		return m.commandView.Focus(), true
	case key.Matches(msg, m.keys.Settings):
		return m.openSettings(), true
	case key.Matches(msg, m.keys.GlobalRefresh):
		return m.globalRefresh(), true
	case key.Matches(msg, m.keys.ViewCompose):
		return m.navigate(ViewCompose), true
	case key.Matches(msg, m.keys.ViewUnread):
		return m.navigate(ViewUnread), true
	case key.Matches(msg, m.keys.ViewReceived):
		return m.navigate(ViewReceived), true
	case key.Matches(msg, m.keys.ViewSent):
		return m.navigate(ViewSent), true
	case key.Matches(msg, m.keys.ViewRefresh):
		return m.navigate(ViewRefresh), true
	case key.Matches(msg, m.keys.ViewImport):
		return m.navigate(ViewImport), true
	}
	return nil, false
}

// overlay reports whether v is drawn over a main view without unmounting it.
func overlay(v ViewState) bool {
	return v == ViewHelp || v == ViewCommand || v == ViewSettings
}

// baseView returns the main view beneath any overlay.
func (m Model) baseView() ViewState {
	if overlay(m.currentView) {
		return m.previousView
	}
	return m.currentView
}

// step returns the main view delta positions away from the current one.
func (m Model) step(delta int) ViewState {
	current := m.baseView()
	for i, v := range navOrder {
		if v == current {
			n := len(navOrder)
			return navOrder[((i+delta)%n+n)%n]
		}
	}
	return ViewCompose
}

// navigate unmounts the current view, closing its controllers so late
// completions are discarded, and mounts v.
func (m *Model) navigate(v ViewState) tea.Cmd {
	m.currentView = m.baseView()
	m.unmount()
	m.previousView = m.currentView
	m.currentView = v
	m.clearNotice()
	return m.mount(v)
}

func (m *Model) unmount() {
	if m.composer != nil {
		m.composer.Close()
		m.composer = nil
	}
	if m.importer != nil {
		m.importer.Close()
		m.importer = nil
	}
	if m.fetcher != nil {
		m.fetcher.Close()
		m.fetcher = nil
	}
	if m.feed != nil {
		m.feed.Close()
		m.feed = nil
	}
	m.selection.Dismiss()
}

// mount creates the controllers for v and starts its initial fetch.
func (m *Model) mount(v ViewState) tea.Cmd {
	w, h := m.contentSize()

	switch v {
	case ViewCompose:
		m.composer = mailstate.NewComposer(m.client, m.logger)
		m.composeView = compose.New(m.composer, m.loader, w, h)
		return m.composeView.Init()

	case ViewImport:
		m.importer = mailstate.NewImporter(m.client, m.logger)
		m.importView = importview.New(m.importer, m.loader, w, h)
		return m.importView.Init()

	case ViewRefresh:
		m.feed = mailstate.NewRefreshFeed(m.client, m.merger, m.logger)
		cmd := m.runner.Poll(m.feed)
		return tea.Batch(cmd, m.lists[ViewRefresh].SetState(m.feed.State()))

	case ViewUnread, ViewReceived, ViewSent:
		m.fetcher = mailstate.NewInboxFetcher(m.client, listEndpoints[v], m.logger)
		cmd := m.runner.Fetch(m.fetcher)
		return tea.Batch(cmd, m.lists[v].SetState(m.fetcher.State()))
	}
	return nil
}

// reload fetches the current list again. On the refresh view this polls
// and merges into the union.
func (m *Model) reload() tea.Cmd {
	switch {
	case m.currentView == ViewRefresh && m.feed != nil:
		cmd := m.runner.Poll(m.feed)
		state := m.feed.State()
		state.Messages = m.feed.Messages()
		return tea.Batch(cmd, m.lists[ViewRefresh].SetState(state))
	case m.fetcher != nil:
		cmd := m.runner.Fetch(m.fetcher)
		return tea.Batch(cmd, m.lists[m.currentView].SetState(m.fetcher.State()))
	}
	return nil
}

// globalRefresh asks the relay to refresh; the refresh view is mounted
// once the trigger returns.
func (m *Model) globalRefresh() tea.Cmd {
	m.setNotice("Refreshing...", theme.ToneBusy)
	return m.runner.TriggerRefresh(m.client)
}

func (m *Model) exportMessage(msg model.Message) tea.Cmd {
	exporter := m.exporter
	return func() tea.Msg {
		path, err := exporter.Save(msg)
		return detail.ExportedMsg{Path: path, Err: err}
	}
}

func (m *Model) quit() tea.Cmd {
	m.unmount()
	_ = m.logger.Sync()
	return tea.Quit
}

func (m *Model) setNotice(text string, tone theme.Tone) {
	m.notice = text
	m.noticeTone = tone
}

// clearNotice lets the active view's own status show again.
func (m *Model) clearNotice() {
	m.notice = ""
	m.noticeTone = theme.ToneNeutral
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewCompose:
		m.composeView, cmd = m.composeView.Update(msg)
	case ViewImport:
		m.importView, cmd = m.importView.Update(msg)
	case ViewUnread, ViewReceived, ViewSent, ViewRefresh:
		l := m.lists[m.currentView]
		*l, cmd = l.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewSettings:
		m.settingsView, cmd = m.settingsView.Update(msg)
	}

	return m, cmd
}

func (m Model) contentSize() (int, int) {
	if !m.ready {
		return 80, 22
	}
	return m.layout.ContentWidth(), m.layout.ContentHeight()
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	status, tone := m.status()
	header := m.layout.RenderHeader("relaymail", m.tabs(), status, tone)
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.keyHints()...)

	return m.layout.RenderWithFrame(header, content, statusBar)
}

func (m Model) tabs() []ui.Tab {
	active := m.baseView()
	tabs := make([]ui.Tab, len(navOrder))
	for i, v := range navOrder {
		tabs[i] = ui.Tab{Key: fmt.Sprint(i + 1), Label: viewNames[v], Active: v == active}
	}
	return tabs
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	if m.detail.IsOpen() {
		return m.detail.View()
	}

	switch m.currentView {
	case ViewCompose:
		return m.composeView.View()
	case ViewImport:
		return m.importView.View()
	case ViewUnread, ViewReceived, ViewSent, ViewRefresh:
		return m.lists[m.currentView].View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewSettings:
		return m.settingsView.View()
	default:
		return ""
	}
}

// status returns the header status: a pending notice first, then the
// state of the mounted view's operation.
func (m Model) status() (string, theme.Tone) {
	if m.notice != "" {
		return m.notice, m.noticeTone
	}

	switch view := m.baseView(); view {
	case ViewCompose:
		if m.composer != nil {
			return submitStatus(m.composer.Status())
		}
	case ViewImport:
		if m.importer != nil {
			return submitStatus(m.importer.Status())
		}
	default:
		if l, ok := m.lists[view]; ok {
			return fetchStatus(l.State())
		}
	}
	return "", theme.ToneNeutral
}

func submitStatus(s mailstate.SubmitStatus) (string, theme.Tone) {
	switch {
	case s.Sending():
		return s.Text(), theme.ToneBusy
	case s.Succeeded():
		return s.Text(), theme.ToneSuccess
	case s.Failed():
		return s.Text(), theme.ToneError
	}
	return "", theme.ToneNeutral
}

func fetchStatus(s mailstate.FetchState) (string, theme.Tone) {
	switch s.Phase {
	case mailstate.FetchLoading:
		return "Loading...", theme.ToneBusy
	case mailstate.FetchFailed:
		return "Failed to load emails", theme.ToneError
	case mailstate.FetchReady:
		return fmt.Sprintf("%d emails", len(s.Messages)), theme.ToneNeutral
	}
	return "", theme.ToneNeutral
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() []string {
	if m.detail.IsOpen() {
		return []string{"esc close", "s save .eml", "j/k scroll"}
	}

	switch m.currentView {
	case ViewHelp:
		return []string{"? close help", "esc back"}
	case ViewCommand:
		return []string{"enter execute", "tab complete", "esc back"}
	case ViewSettings:
		return []string{"tab next field", "enter save", "esc back"}
	case ViewCompose:
		return []string{"tab next field", "enter submit", "ctrl+n/ctrl+p switch view", "ctrl+c quit"}
	case ViewImport:
		return []string{"enter confirm", "ctrl+n/ctrl+p switch view", "ctrl+c quit"}
	case ViewRefresh:
		return []string{"enter open", "r poll again", "R refresh mailbox", "1-6 views", "? help", "q quit"}
	default:
		return []string{"enter open", "r reload", "/ filter", "R refresh mailbox", "1-6 views", "c settings", ": command", "? help", "q quit"}
	}
}

// executeCommand handles a command string from the command palette.
func (m *Model) executeCommand(cmd string) tea.Cmd {
	switch cmd {
	case "compose":
		return m.navigate(ViewCompose)
	case "unread":
		return m.navigate(ViewUnread)
	case "received":
		return m.navigate(ViewReceived)
	case "sent":
		return m.navigate(ViewSent)
	case "refresh":
		return m.globalRefresh()
	case "import":
		return m.navigate(ViewImport)
	case "settings":
		return m.openSettings()
	case "save-config":
		return m.saveConfig()
	case "quit", "q":
		return m.quit()
	default:
		m.setNotice(fmt.Sprintf("Unknown command %q", cmd), theme.ToneError)
		return nil
	}
}

func (m *Model) saveConfig() tea.Cmd {
	return m.writeConfig(*m.cfg)
}

func (m *Model) writeConfig(cfg model.AppConfig) tea.Cmd {
	path := m.configPath
	fsys := m.fs
	logger := m.logger
	return func() tea.Msg {
		if err := model.SaveConfig(fsys, path, &cfg); err != nil {
			logger.Error("saving config", zap.String("path", path), zap.Error(err))
			return noticeMsg{text: "Could not save config", tone: theme.ToneError}
		}
		return noticeMsg{text: "Config saved to " + path, tone: theme.ToneSuccess}
	}
}

// openSettings shows the settings form over the current view.
func (m *Model) openSettings() tea.Cmd {
	m.previousView = m.baseView()
	m.currentView = ViewSettings
	w, h := m.contentSize()
	m.settingsView = settings.New(*m.cfg, m.probeRelay, m.keys, w, h)
	return m.settingsView.Init()
}

// probeRelay checks a candidate relay by fetching its unread collection.
func (m *Model) probeRelay(ctx context.Context, baseURL string) (int, error) {
	c := relay.NewClient(baseURL,
		relay.WithTimeout(m.runner.Timeout()),
		relay.WithLogger(m.logger),
	)
	msgs, err := c.FetchMessages(ctx, model.EndpointUnread)
	return len(msgs), err
}

// applySettings adopts cfg and writes it to disk. Merging and exports use
// it right away; the relay client and logger keep their settings until the
// next start.
func (m *Model) applySettings(cfg model.AppConfig) tea.Cmd {
	m.cfg = &cfg
	m.merger = mailstate.Merger{KeepUnidentified: cfg.Dedup.KeepUnidentified}
	m.exporter = export.NewExporter(m.fs, cfg.Export.Dir, m.logger)
	return m.writeConfig(cfg)
}

func timeout(cfg *model.AppConfig) time.Duration {
	return time.Duration(cfg.Server.TimeoutSec) * time.Second
}
