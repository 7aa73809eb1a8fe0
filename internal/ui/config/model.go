package config

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/relaymail/internal/keys"
	"github.com/nhle/relaymail/internal/model"
	"github.com/nhle/relaymail/internal/theme"
)

// Mode represents the current state of the settings view.
type Mode int

const (
	ModeForm           Mode = iota // Editing settings
	ModeValidating                 // Probing the relay
	ModeValidateResult             // Show probe result
)

// probeTimeout bounds a connection test.
const probeTimeout = 15 * time.Second

var logLevels = []string{"debug", "info", "warn", "error"}

// DoneMsg signals the settings view should close.
type DoneMsg struct{}

// SavedMsg carries settings the user confirmed.
type SavedMsg struct {
	Config model.AppConfig
}

// ValidateResultMsg carries the result of a connection test.
type ValidateResultMsg struct {
	Unread int
	Err    error
}

// Prober checks that a relay answers at baseURL and reports how many
// unread messages it holds.
type Prober func(ctx context.Context, baseURL string) (int, error)

type formBindings struct {
	baseURL          string
	timeout          string
	retries          string
	logLevel         string
	exportDir        string
	keepUnidentified bool
}

// Model is the Bubble Tea model for the settings view.
type Model struct {
	mode    Mode
	current model.AppConfig
	pending model.AppConfig
	probe   Prober
	form    *huh.Form
	fb      *formBindings

	// Validation
	validUnread int
	validError  error
	unverified  bool
	spinner     spinner.Model

	keys          *keys.KeyMap
	width, height int
}

// New creates a settings view seeded from cfg.
func New(cfg model.AppConfig, probe Prober, k *keys.KeyMap, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		mode:    ModeForm,
		current: cfg,
		probe:   probe,
		fb:      &formBindings{},
		keys:    k,
		spinner: sp,
		width:   width,
		height:  height,
	}
}

// Init builds the form.
func (m *Model) Init() tea.Cmd {
	m.fb.baseURL = m.current.Server.BaseURL
	m.fb.timeout = strconv.Itoa(m.current.Server.TimeoutSec)
	m.fb.retries = strconv.Itoa(m.current.Server.MaxRetries)
	m.fb.logLevel = m.current.Log.Level
	m.fb.exportDir = m.current.Export.Dir
	m.fb.keepUnidentified = m.current.Dedup.KeepUnidentified

	m.mode = ModeForm
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages and dispatches based on current mode.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ValidateResultMsg:
		if m.mode != ModeValidating {
			return m, nil
		}
		m.validUnread = msg.Unread
		m.validError = msg.Err
		m.mode = ModeValidateResult
		if msg.Err != nil {
			return m, nil
		}
		return m, m.save()

	case spinner.TickMsg:
		if m.mode == ModeValidating {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeValidating:
			// Only allow escape during validation
			if key.Matches(msg, m.keys.Back) {
				return m, m.reopen()
			}
			return m, nil
		case ModeValidateResult:
			return m.handleResultKeys(msg)
		}
	}

	return m.updateForm(msg)
}

func (m *Model) reopen() tea.Cmd {
	m.current = m.pending
	return m.Init()
}

func (m Model) handleResultKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "r":
		if m.validError != nil {
			return m, m.startValidation()
		}
	case "s":
		if m.validError != nil {
			m.validError = nil
			m.unverified = true
			return m, m.save()
		}
	case "enter", "esc":
		if m.validError != nil {
			return m, m.reopen()
		}
		return m, func() tea.Msg { return DoneMsg{} }
	}
	return m, nil
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil || m.mode != ModeForm {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.pending = m.collect()
		return m, m.startValidation()
	case huh.StateAborted:
		return m, func() tea.Msg { return DoneMsg{} }
	}
	return m, cmd
}

func (m *Model) startValidation() tea.Cmd {
	m.mode = ModeValidating
	m.validError = nil
	m.unverified = false
	probe := m.probe
	baseURL := m.pending.Server.BaseURL
	return tea.Batch(
		m.spinner.Tick,
		func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
			defer cancel()
			n, err := probe(ctx, baseURL)
			return ValidateResultMsg{Unread: n, Err: err}
		},
	)
}

func (m Model) save() tea.Cmd {
	cfg := m.pending
	return func() tea.Msg { return SavedMsg{Config: cfg} }
}

// collect builds the configuration from the form. Fields were validated,
// so parse errors cannot occur here.
func (m Model) collect() model.AppConfig {
	cfg := m.current
	cfg.Server.BaseURL = strings.TrimRight(strings.TrimSpace(m.fb.baseURL), "/")
	cfg.Server.TimeoutSec, _ = strconv.Atoi(strings.TrimSpace(m.fb.timeout))
	cfg.Server.MaxRetries, _ = strconv.Atoi(strings.TrimSpace(m.fb.retries))
	cfg.Log.Level = m.fb.logLevel
	cfg.Export.Dir = model.ExpandHome(strings.TrimSpace(m.fb.exportDir))
	cfg.Dedup.KeepUnidentified = m.fb.keepUnidentified
	return cfg
}

func (m *Model) buildForm() *huh.Form {
	levels := make([]huh.Option[string], len(logLevels))
	for i, l := range logLevels {
		levels[i] = huh.NewOption(l, l)
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Relay URL").
				Description("Base URL of the mail relay").
				Placeholder(model.DefaultBaseURL).
				Value(&m.fb.baseURL).
				Validate(validateURL),
			huh.NewInput().
				Title("Timeout (seconds)").
				Value(&m.fb.timeout).
				Validate(validateNumber("Timeout", 1)),
			huh.NewInput().
				Title("Retries").
				Description("How often a fetch is retried when the relay is rate limiting").
				Value(&m.fb.retries).
				Validate(validateNumber("Retries", 0)),
			huh.NewSelect[string]().
				Title("Log level").
				Options(levels...).
				Value(&m.fb.logLevel),
			huh.NewInput().
				Title("Export directory").
				Description("Where opened messages are saved as .eml").
				Value(&m.fb.exportDir).
				Validate(validateRequired("Export directory")),
			huh.NewConfirm().
				Title("Keep messages without an id").
				Description("Otherwise refresh snapshots collapse them into one entry").
				Affirmative("Keep").
				Negative("Collapse").
				Value(&m.fb.keepUnidentified),
		),
	).WithWidth(m.formWidth())
}

// --- View ---

// View renders the settings UI based on the current mode.
func (m Model) View() string {
	switch m.mode {
	case ModeValidating:
		return m.viewValidating()
	case ModeValidateResult:
		return m.viewValidateResult()
	default:
		return m.viewForm()
	}
}

func (m Model) viewForm() string {
	if m.form == nil {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Render(lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Settings"),
			m.form.View(),
		))
}

func (m Model) viewValidating() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width)

	content := fmt.Sprintf(
		"%s Testing %s...\n\nPress esc to cancel.",
		m.spinner.View(), m.pending.Server.BaseURL,
	)

	return style.Render(content)
}

func (m Model) viewValidateResult() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width)
	hint := lipgloss.NewStyle().Foreground(theme.ColorGray)

	var content string
	if m.validError != nil {
		errStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorRed)
		content = errStyle.Render("Relay unreachable") + "\n\n" +
			m.validError.Error() + "\n\n" +
			hint.Render("r retry | s save anyway | enter/esc edit")
	} else {
		okStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorGreen)
		reach := fmt.Sprintf("Relay reachable, %d unread.", m.validUnread)
		if m.unverified {
			reach = "Relay not verified."
		}
		content = okStyle.Render("Settings saved") + "\n\n" +
			reach + "\n" +
			"Connection changes apply on the next start." + "\n\n" +
			hint.Render("enter/esc back")
	}

	return style.Render(content)
}

// --- Helpers ---

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form = m.form.WithWidth(m.formWidth())
	}
}

// Mode returns the current mode.
func (m Model) Mode() Mode {
	return m.mode
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

// --- Validators ---

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("URL must include scheme and host (e.g., https://relay.example.com)")
	}
	return nil
}

func validateNumber(fieldName string, least int) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("%s must be a number", fieldName)
		}
		if n < least {
			return fmt.Errorf("%s must be at least %d", fieldName, least)
		}
		return nil
	}
}
