package maillist

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/relaymail/internal/model"
	"github.com/nhle/relaymail/internal/theme"
)

// MessageItem wraps a model.Message so it can be used in a bubbles/list.
type MessageItem struct {
	Message model.Message
}

// FilterValue returns the string used for fuzzy filtering.
func (i MessageItem) FilterValue() string {
	return i.Message.Subject + " " + i.Message.From
}

// Title returns the subject line.
func (i MessageItem) Title() string { return i.Message.DisplaySubject() }

// Description returns the sender and the time, when known.
func (i MessageItem) Description() string {
	return rowMeta(i.Message, time.Now())
}

// ItemDelegate renders one message per line.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single row: subject, then sender and time in gray.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	mi, ok := item.(MessageItem)
	if !ok {
		return
	}

	subject := mi.Message.DisplaySubject()
	if mi.Message.Subject == "" {
		subject = lipgloss.NewStyle().Italic(true).Render(subject)
	}

	line := subject
	if meta := rowMeta(mi.Message, time.Now()); meta != "" {
		line = fmt.Sprintf("%s  %s", subject, theme.MetaStyle.Render(meta))
	}

	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// rowMeta joins the correspondent and the time. Sent records show the
// recipient instead of the sender.
func rowMeta(msg model.Message, now time.Time) string {
	who := msg.From
	if who == "" && msg.To != "" {
		who = "to " + msg.To
	}

	when := ""
	if t, ok := msg.ParsedTime(); ok {
		when = relativeTime(t, now)
	}

	switch {
	case who != "" && when != "":
		return who + " · " + when
	case who != "":
		return who
	default:
		return when
	}
}

// relativeTime returns a human-friendly relative time string. Anything
// older than a week, or in the future, shows the local date and time.
func relativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < 0 || d >= 7*24*time.Hour:
		return t.Local().Format("2006-01-02 15:04")
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
