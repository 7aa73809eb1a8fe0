package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/relaymail/internal/theme"
)

// Layout manages the terminal frame: a header with view tabs, the content
// area, and a status bar.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the main content area,
// accounting for the header and status bar.
func (l Layout) ContentHeight() int {
	return max(l.Height-l.HeaderHeight-l.StatusBarHeight, 0)
}

// Tab is one entry in the header's view switcher.
type Tab struct {
	Key    string
	Label  string
	Active bool
}

// RenderHeader renders the title and view tabs on the left and the last
// operation's status on the right.
func (l Layout) RenderHeader(title string, tabs []Tab, status string, tone theme.Tone) string {
	left := []string{theme.HeaderStyle.Render(title)}
	for _, t := range tabs {
		label := t.Key + " " + t.Label
		if t.Active {
			left = append(left, theme.ActiveTabStyle.Render(label))
		} else {
			left = append(left, theme.TabStyle.Render(label))
		}
	}
	leftRendered := lipgloss.JoinHorizontal(lipgloss.Top, left...)

	statusRendered := ""
	if status != "" {
		statusRendered = theme.StatusStyle(tone).
			Background(theme.ColorBlue).
			Padding(0, 1).
			Render(status)
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		leftRendered,
		l.fill(theme.HeaderStyle, l.Width-lipgloss.Width(leftRendered)-lipgloss.Width(statusRendered)),
		statusRendered,
	)
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints ...string) string {
	rendered := theme.StatusBarStyle.Render(strings.Join(hints, " | "))

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		rendered,
		l.fill(theme.StatusBarStyle, l.Width-lipgloss.Width(rendered)),
	)
}

func (l Layout) fill(style lipgloss.Style, gap int) string {
	if gap <= 0 {
		return ""
	}
	return lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, content area, and status bar. Content is clipped to the
// available height.
func (l Layout) RenderWithFrame(
	header string,
	content string,
	statusBar string,
) string {
	content = lipgloss.NewStyle().
		Height(l.ContentHeight()).
		MaxHeight(l.ContentHeight()).
		Render(content)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		content,
		statusBar,
	)
}
