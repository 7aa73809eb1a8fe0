package app

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nhle/relaymail/internal/mailstate"
	"github.com/nhle/relaymail/internal/model"
	"github.com/nhle/relaymail/internal/relay"
	"github.com/nhle/relaymail/internal/theme"
	appsync "github.com/nhle/relaymail/internal/sync"
	"github.com/nhle/relaymail/internal/ui/command"
	"github.com/nhle/relaymail/internal/ui/compose"
	settings "github.com/nhle/relaymail/internal/ui/config"
	"github.com/nhle/relaymail/internal/ui/detail"
	importview "github.com/nhle/relaymail/internal/ui/importer"
	"github.com/nhle/relaymail/tests/testutil"
)

func newTestApp(t *testing.T, f *testutil.FakeRelay) (Model, afero.Fs) {
	t.Helper()

	fs := afero.NewMemMapFs()
	cfg := &model.AppConfig{
		Server: model.ServerConfig{BaseURL: f.URL(), TimeoutSec: 5},
		Export: model.ExportConfig{Dir: "/exports"},
	}
	m := New(Deps{
		Config:     cfg,
		ConfigPath: "/cfg/config.yaml",
		Client:     relay.NewClient(f.URL(), relay.WithTimeout(5*time.Second)),
		Logger:     zaptest.NewLogger(t),
		FS:         fs,
	})
	return m, fs
}

// routed reports whether msg is a result the root model handles itself.
// View-internal messages such as spinner ticks are not fed back.
func routed(msg tea.Msg) bool {
	switch msg.(type) {
	case appsync.FetchResultMsg, appsync.RefreshPollMsg, appsync.SendResultMsg,
		appsync.ImportResultMsg, appsync.RefreshTriggeredMsg, noticeMsg,
		detail.ExportedMsg:
		return true
	}
	return false
}

// settle runs cmd and feeds every routed result back into m until no
// routed messages remain.
func settle(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()

	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		msg := c()
		if batch, ok := msg.(tea.BatchMsg); ok {
			queue = append(queue, batch...)
			continue
		}
		if !routed(msg) {
			continue
		}
		next, nextCmd := m.Update(msg)
		m = next.(Model)
		queue = append(queue, nextCmd)
	}
	return m
}

func press(t *testing.T, m Model, keys string) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)})
	return next.(Model), cmd
}

func sized(t *testing.T, m Model) Model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model)
}

func TestNewMountsCompose(t *testing.T) {
	f := testutil.NewFakeRelay(t)
	m, _ := newTestApp(t, f)

	assert.Equal(t, ViewCompose, m.currentView)
	require.NotNil(t, m.composer)
	assert.Equal(t, "Loading...", m.View())

	m = sized(t, m)
	assert.Contains(t, m.View(), "New Message")
	assert.Zero(t, len(f.Requests()))
}

func TestNavigateFetchesCollection(t *testing.T) {
	f := testutil.NewFakeRelay(t)
	f.ReplyMessages(t, "/emails/receive", []model.Message{
		{ID: "1", Subject: "Hi"},
		{ID: "2", Subject: "Bye"},
	})
	m, _ := newTestApp(t, f)
	m = sized(t, m)

	// Compose ignores single-key shortcuts; switch views with ctrl+n first.
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	m = settle(t, next.(Model), cmd)
	require.Equal(t, ViewUnread, m.currentView)

	m, cmd = press(t, m, "3")
	assert.Equal(t, mailstate.FetchLoading, m.lists[ViewReceived].State().Phase)
	m = settle(t, m, cmd)

	assert.Equal(t, ViewReceived, m.currentView)
	state := m.lists[ViewReceived].State()
	assert.Equal(t, mailstate.FetchReady, state.Phase)
	assert.Len(t, state.Messages, 2)
	status, _ := m.status()
	assert.Equal(t, "2 emails", status)
	assert.Equal(t, 1, f.Count("/emails/receive"))
}

func TestLateFetchAfterNavigationIsDropped(t *testing.T) {
	f := testutil.NewFakeRelay(t)
	f.ReplyMessages(t, "/emails", []model.Message{{ID: "1"}})
	f.ReplyMessages(t, "/emails/sent", nil)
	m, _ := newTestApp(t, f)

	cmd := m.navigate(ViewUnread)
	m = settle(t, m, m.navigate(ViewSent))

	// The unread fetch completes after its view was unmounted.
	m = settle(t, m, cmd)

	assert.Equal(t, mailstate.FetchLoading, m.lists[ViewUnread].State().Phase)
	assert.Equal(t, mailstate.FetchReady, m.lists[ViewSent].State().Phase)
}

func TestFetchFailureShowsError(t *testing.T) {
	f := testutil.NewFakeRelay(t)
	f.Reply("/emails", http.StatusInternalServerError, "boom")
	m, _ := newTestApp(t, f)

	m = settle(t, m, m.navigate(ViewUnread))

	state := m.lists[ViewUnread].State()
	assert.Equal(t, mailstate.FetchFailed, state.Phase)
	assert.Empty(t, state.Messages)
	status, _ := m.status()
	assert.Equal(t, "Failed to load emails", status)
}

func TestGlobalRefreshOpensRefreshView(t *testing.T) {
	f := testutil.NewFakeRelay(t)
	f.ReplyMessages(t, "/emails", nil)
	f.ReplyMessages(t, "/emails/refresh", []model.Message{
		{ID: "1", Subject: "Hi"},
		{ID: "1", Subject: "Hi v2"},
		{ID: "2", Subject: "Bye"},
	})
	m, _ := newTestApp(t, f)
	m = settle(t, m, m.navigate(ViewUnread))

	m, cmd := press(t, m, "R")
	m = settle(t, m, cmd)

	assert.Equal(t, ViewRefresh, m.currentView)
	// One call for the trigger and one for the poll on mount.
	assert.Equal(t, 2, f.Count("/emails/refresh"))
	state := m.lists[ViewRefresh].State()
	require.Len(t, state.Messages, 2)
	assert.Equal(t, "Hi v2", state.Messages[0].Subject)
	assert.Equal(t, "Bye", state.Messages[1].Subject)
}

func TestComposeSubmitAndStatus(t *testing.T) {
	f := testutil.NewFakeRelay(t)
	f.Reply("/send-email", http.StatusOK, `{"success":true}`)
	m, _ := newTestApp(t, f)
	m = sized(t, m)

	require.NoError(t, m.composer.UpdateField(mailstate.FieldTo, "a@b.com"))
	require.NoError(t, m.composer.UpdateField(mailstate.FieldSubject, "Test"))

	next, cmd := m.Update(compose.SubmitMsg{})
	m = next.(Model)
	status, _ := m.status()
	assert.Equal(t, "Sending...", status)

	m = settle(t, m, cmd)

	status, _ = m.status()
	assert.Equal(t, mailstate.TextSent, status)
	assert.True(t, m.composer.Draft().IsEmpty())
	require.Len(t, f.Requests(), 1)
	assert.Equal(t, []string{"a@b.com"}, f.Requests()[0].Fields["to"])
}

func TestNoticeYieldsToLaterOperations(t *testing.T) {
	f := testutil.NewFakeRelay(t)
	f.ReplyMessages(t, "/emails", []model.Message{{ID: "1", Subject: "Hi"}})
	f.Reply("/send-email", http.StatusOK, `{"success":true}`)
	m, _ := newTestApp(t, f)
	m = sized(t, m)

	m = settle(t, m, m.saveConfig())
	status, _ := m.status()
	assert.Equal(t, "Config saved to /cfg/config.yaml", status)

	m = settle(t, m, m.navigate(ViewUnread))
	status, _ = m.status()
	assert.Equal(t, "1 emails", status)

	m = settle(t, m, m.saveConfig())
	m = settle(t, m, m.navigate(ViewCompose))
	status, _ = m.status()
	assert.NotContains(t, status, "Config saved")

	m = settle(t, m, m.saveConfig())
	require.NoError(t, m.composer.UpdateField(mailstate.FieldTo, "a@b.com"))
	next, cmd := m.Update(compose.SubmitMsg{})
	m = settle(t, next.(Model), cmd)

	status, tone := m.status()
	assert.Equal(t, mailstate.TextSent, status)
	assert.NotEqual(t, theme.ToneNeutral, tone)
}

func TestFailedRefreshTriggerKeepsNotice(t *testing.T) {
	f := testutil.NewFakeRelay(t)
	m, _ := newTestApp(t, f)
	m = sized(t, m)

	next, _ := m.Update(appsync.RefreshTriggeredMsg{Err: errors.New("boom")})
	m = next.(Model)

	assert.Equal(t, ViewRefresh, m.currentView)
	status, tone := m.status()
	assert.Equal(t, "Refresh trigger failed", status)
	assert.Equal(t, theme.ToneError, tone)
}

func TestImportWithoutFileMakesNoRequest(t *testing.T) {
	f := testutil.NewFakeRelay(t)
	m, _ := newTestApp(t, f)
	m = settle(t, m, m.navigate(ViewImport))

	next, cmd := m.Update(importview.SubmitMsg{})
	m = settle(t, next.(Model), cmd)

	status, _ := m.status()
	assert.Equal(t, mailstate.TextNoFile, status)
	assert.Empty(t, f.Requests())
}

func TestLeavingComposeClosesComposer(t *testing.T) {
	f := testutil.NewFakeRelay(t)
	f.Reply("/send-email", http.StatusOK, `{"success":true}`)
	f.ReplyMessages(t, "/emails", nil)
	m, _ := newTestApp(t, f)

	require.NoError(t, m.composer.UpdateField(mailstate.FieldTo, "a@b.com"))
	next, sendCmd := m.Update(compose.SubmitMsg{})
	m = next.(Model)
	old := m.composer

	m = settle(t, m, m.navigate(ViewUnread))
	m = settle(t, m, sendCmd)

	assert.Nil(t, m.composer)
	// The closed composer never leaves Sending; its late result is discarded.
	assert.True(t, old.Status().Sending())
}

func TestExportWritesEML(t *testing.T) {
	f := testutil.NewFakeRelay(t)
	m, fs := newTestApp(t, f)
	m = sized(t, m)

	msg := model.Message{ID: "abc", Subject: "Report", From: "a@b.com", Body: "hello"}
	m.detail.Open(msg)

	next, cmd := m.Update(detail.ExportRequestMsg{Message: msg})
	m = settle(t, next.(Model), cmd)

	files, err := afero.ReadDir(fs, "/exports")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Contains(t, m.detail.View(), "/exports/")
}

func TestCommandPalette(t *testing.T) {
	f := testutil.NewFakeRelay(t)
	f.ReplyMessages(t, "/emails/sent", nil)
	m, _ := newTestApp(t, f)
	m = settle(t, m, m.navigate(ViewUnread))

	m, _ = press(t, m, ":")
	assert.Equal(t, ViewCommand, m.currentView)

	next, cmd := m.Update(command.CommandMsg("sent"))
	m = settle(t, next.(Model), cmd)
	assert.Equal(t, ViewSent, m.currentView)

	m, _ = press(t, m, ":")
	next, _ = m.Update(command.CommandMsg("bogus"))
	m = next.(Model)
	assert.Equal(t, ViewSent, m.currentView)
	status, tone := m.status()
	assert.Equal(t, `Unknown command "bogus"`, status)
	assert.NotZero(t, tone)
}

func TestSaveConfigCommand(t *testing.T) {
	f := testutil.NewFakeRelay(t)
	m, fs := newTestApp(t, f)

	m = settle(t, m, m.executeCommand("save-config"))

	status, _ := m.status()
	assert.Equal(t, "Config saved to "+m.configPath, status)
	loaded, err := model.ReadConfig(fs, m.configPath, nil)
	require.NoError(t, err)
	assert.Equal(t, f.URL(), loaded.Server.BaseURL)
}

func TestCtrlCClosesControllers(t *testing.T) {
	f := testutil.NewFakeRelay(t)
	m, _ := newTestApp(t, f)
	composer := m.composer

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = next.(Model)

	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Nil(t, m.composer)
	_, ok := composer.Begin()
	assert.False(t, ok)
}

func TestStepWrapsAround(t *testing.T) {
	f := testutil.NewFakeRelay(t)
	m, _ := newTestApp(t, f)

	assert.Equal(t, ViewImport, m.step(-1))
	m.currentView = ViewImport
	assert.Equal(t, ViewCompose, m.step(1))
}

func TestSettingsSavedAppliesAndWrites(t *testing.T) {
	f := testutil.NewFakeRelay(t)
	f.ReplyMessages(t, "/emails", nil)
	m, fs := newTestApp(t, f)
	m = settle(t, m, m.navigate(ViewUnread))

	m, cmd := press(t, m, "c")
	require.NotNil(t, cmd)
	assert.Equal(t, ViewSettings, m.currentView)
	assert.Equal(t, ViewUnread, m.baseView())

	cfg := *m.cfg
	cfg.Dedup.KeepUnidentified = true
	cfg.Export.Dir = "/elsewhere"
	next, cmd := m.Update(settings.SavedMsg{Config: cfg})
	m = settle(t, next.(Model), cmd)

	assert.True(t, m.merger.KeepUnidentified)
	assert.Equal(t, "/elsewhere", m.exporter.Dir())
	status, _ := m.status()
	assert.Equal(t, "Config saved to "+m.configPath, status)
	saved, err := model.ReadConfig(fs, m.configPath, nil)
	require.NoError(t, err)
	assert.True(t, saved.Dedup.KeepUnidentified)

	next, _ = m.Update(settings.DoneMsg{})
	m = next.(Model)
	assert.Equal(t, ViewUnread, m.currentView)
}

func TestProbeRelayCountsUnread(t *testing.T) {
	f := testutil.NewFakeRelay(t)
	f.ReplyMessages(t, "/emails", []model.Message{{ID: "1"}, {ID: "2"}})
	m, _ := newTestApp(t, f)

	n, err := m.probeRelay(context.Background(), f.URL())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
