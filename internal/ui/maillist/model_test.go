package maillist

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/relaymail/internal/keys"
	"github.com/nhle/relaymail/internal/mailstate"
	"github.com/nhle/relaymail/internal/model"
)

func TestRelativeTime(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{50 * time.Hour, "2d ago"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, relativeTime(now.Add(-tt.ago), now))
	}

	old := now.Add(-30 * 24 * time.Hour)
	assert.Equal(t, old.Local().Format("2006-01-02 15:04"), relativeTime(old, now))
}

func TestRowMeta(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "a@b.com · 2h ago",
		rowMeta(model.Message{From: "a@b.com", Date: "2025-03-10T10:00:00Z"}, now))
	assert.Equal(t, "to c@d.com", rowMeta(model.Message{To: "c@d.com"}, now))
	assert.Equal(t, "a@b.com", rowMeta(model.Message{From: "a@b.com", Date: "yesterday"}, now))
	assert.Empty(t, rowMeta(model.Message{}, now))
}

func TestViewFollowsState(t *testing.T) {
	m := New(model.EndpointUnread, keys.DefaultKeyMap(), 80, 20)
	assert.Contains(t, m.View(), "Press r to load")

	m.SetState(mailstate.FetchState{}.Start())
	assert.Contains(t, m.View(), "Loading...")

	m.SetState(mailstate.FetchState{}.Start().Fail(errors.New("boom")))
	assert.Contains(t, m.View(), "Press r to try again.")

	m.SetState(mailstate.FetchState{}.Start().Succeed(nil))
	assert.Contains(t, m.View(), "No emails found.")

	m.SetState(mailstate.FetchState{}.Start().Succeed([]model.Message{{ID: "1", Subject: "Quarterly"}}))
	assert.Contains(t, m.View(), "Quarterly")
}

func TestEnterEmitsSelection(t *testing.T) {
	m := New(model.EndpointReceived, keys.DefaultKeyMap(), 80, 20)
	m.SetState(mailstate.FetchState{}.Start().Succeed([]model.Message{{ID: "7", Subject: "Hello"}}))

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	msg, ok := cmd().(SelectedMsg)
	require.True(t, ok)
	assert.Equal(t, "7", msg.Message.ID)

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	require.NotNil(t, cmd)
	assert.Equal(t, ReloadMsg{Endpoint: model.EndpointReceived}, cmd())
}
