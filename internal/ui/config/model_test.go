package config

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/relaymail/internal/keys"
	"github.com/nhle/relaymail/internal/model"
)

func baseConfig() model.AppConfig {
	return model.AppConfig{
		Server: model.ServerConfig{BaseURL: "https://relay.example.com", TimeoutSec: 30, MaxRetries: 3},
		Log:    model.LogConfig{Level: "info"},
		Export: model.ExportConfig{Dir: "/tmp/mail"},
	}
}

// findMsg runs cmd, unwrapping batches, and returns the first message of type T.
func findMsg[T any](cmd tea.Cmd) (T, bool) {
	var zero T
	if cmd == nil {
		return zero, false
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			if v, ok := findMsg[T](c); ok {
				return v, true
			}
		}
	case T:
		return msg, true
	}
	return zero, false
}

func TestValidators(t *testing.T) {
	assert.NoError(t, validateURL("https://relay.example.com"))
	assert.NoError(t, validateURL("http://localhost:8080"))
	assert.Error(t, validateURL(""))
	assert.Error(t, validateURL("relay.example.com"))
	assert.Error(t, validateURL("ftp://relay.example.com"))

	assert.NoError(t, validateNumber("Timeout", 1)("30"))
	assert.Error(t, validateNumber("Timeout", 1)("0"))
	assert.Error(t, validateNumber("Retries", 0)("x"))
	assert.NoError(t, validateNumber("Retries", 0)(" 0 "))

	assert.Error(t, validateRequired("Export directory")("  "))
}

func TestInitSeedsFormFromConfig(t *testing.T) {
	m := New(baseConfig(), nil, keys.DefaultKeyMap(), 80, 24)
	require.NotNil(t, m.Init())

	assert.Equal(t, "https://relay.example.com", m.fb.baseURL)
	assert.Equal(t, "30", m.fb.timeout)
	assert.Equal(t, "3", m.fb.retries)
	assert.Equal(t, ModeForm, m.Mode())
	assert.Contains(t, m.View(), "Settings")
}

func TestCollectParsesFields(t *testing.T) {
	m := New(baseConfig(), nil, keys.DefaultKeyMap(), 80, 24)
	m.Init()
	m.fb.baseURL = " http://localhost:9000/ "
	m.fb.timeout = "10"
	m.fb.retries = "0"
	m.fb.logLevel = "debug"
	m.fb.keepUnidentified = true

	cfg := m.collect()

	assert.Equal(t, "http://localhost:9000", cfg.Server.BaseURL)
	assert.Equal(t, 10, cfg.Server.TimeoutSec)
	assert.Equal(t, 0, cfg.Server.MaxRetries)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Dedup.KeepUnidentified)
}

func TestValidationSuccessSaves(t *testing.T) {
	var probed string
	probe := func(_ context.Context, baseURL string) (int, error) {
		probed = baseURL
		return 4, nil
	}
	m := New(baseConfig(), probe, keys.DefaultKeyMap(), 80, 24)
	m.Init()
	m.pending = m.collect()

	result, ok := findMsg[ValidateResultMsg](m.startValidation())
	require.True(t, ok)
	assert.Equal(t, ModeValidating, m.Mode())
	assert.Equal(t, "https://relay.example.com", probed)

	m, cmd := m.Update(result)
	assert.Equal(t, ModeValidateResult, m.Mode())
	saved, ok := findMsg[SavedMsg](cmd)
	require.True(t, ok)
	assert.Equal(t, "https://relay.example.com", saved.Config.Server.BaseURL)
	assert.Contains(t, m.View(), "4 unread")

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	_, ok = findMsg[DoneMsg](cmd)
	assert.True(t, ok)
}

func TestValidationFailureOffersSaveAnyway(t *testing.T) {
	probe := func(context.Context, string) (int, error) {
		return 0, errors.New("connection refused")
	}
	m := New(baseConfig(), probe, keys.DefaultKeyMap(), 80, 24)
	m.Init()
	m.pending = m.collect()

	result, _ := findMsg[ValidateResultMsg](m.startValidation())
	m, cmd := m.Update(result)
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "connection refused")

	m, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	_, ok := findMsg[SavedMsg](cmd)
	assert.True(t, ok)
	assert.Contains(t, m.View(), "Relay not verified.")
}

func TestLateValidationResultIgnored(t *testing.T) {
	m := New(baseConfig(), nil, keys.DefaultKeyMap(), 80, 24)
	m.Init()

	m, cmd := m.Update(ValidateResultMsg{Unread: 1})
	assert.Nil(t, cmd)
	assert.Equal(t, ModeForm, m.Mode())
}
