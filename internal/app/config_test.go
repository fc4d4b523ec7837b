package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
[server]
port = ":9999"
debug = true

[auth]
session_ttl = "8h"

[database]
dsn = "file::memory:?cache=shared"

[calendar]
timezone = "Asia/Yekaterinburg"
holidays = [[1, 1], [2, 23], [5, 9]]

[attendance]
edit_window = "45m"

[[export.gsheet]]
sheet_id = "abc"
sheet_name = "Сегодня"
credentials_path = "/etc/creds.json"
schedule = "0 10 * * 1-5"

[[bot.staff]]
telegram_id = 1001
username = "ivanova"
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.True(t, config.Server.Debug)
	assert.Equal(t, "Asia/Yekaterinburg", config.Location().String())
	assert.Equal(t, [][]int{{1, 1}, {2, 23}, {5, 9}}, config.Calendar.Holidays)
	assert.Equal(t, 45*time.Minute, config.EditWindow())
	assert.Equal(t, 8*time.Hour, config.SessionTTL())
	assert.Equal(t, defaultCookieName, config.Auth.CookieName)
	assert.Equal(t, defaultMigrationsDir, config.Database.MigrationsDir)
	require.Len(t, config.Export.GSheet, 1)
	assert.Equal(t, "Сегодня", config.Export.GSheet[0].SheetName)
	assert.Equal(t, []BotStaff{{TelegramID: 1001, Username: "ivanova"}}, config.Bot.Staff)
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, "[server]\nport = \":8080\"\n"))
	require.NoError(t, err)

	assert.Equal(t, defaultTimezone, config.Location().String())
	assert.Equal(t, 30*time.Minute, config.EditWindow())
	assert.Equal(t, defaultSessionTTL, config.SessionTTL())
}

func TestExampleConfig(t *testing.T) {
	config, err := LoadConfig("../../config.example.toml")
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, config.EditWindow())
	assert.Equal(t, "Europe/Moscow", config.Location().String())
	assert.Len(t, config.Calendar.Holidays, 14)
	require.Len(t, config.Export.GSheet, 1)
	assert.Equal(t, "*/15 8-13 * * 1-5", config.Export.GSheet[0].Schedule)
	require.Len(t, config.Bot.Staff, 1)
	assert.Equal(t, "zavuch", config.Bot.Staff[0].Username)
}

func TestLoadConfigErrors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{name: "missing port", content: "[server]\ndebug = true\n"},
		{name: "bad toml", content: "[server\nport = 1"},
		{name: "bad window", content: "[server]\nport = \":1\"\n[attendance]\nedit_window = \"soon\"\n"},
		{name: "negative ttl", content: "[server]\nport = \":1\"\n[auth]\nsession_ttl = \"-1h\"\n"},
		{name: "unknown zone", content: "[server]\nport = \":1\"\n[calendar]\ntimezone = \"Mars/Olympus\"\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestMemorySessions(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	sessions := NewMemorySessions()
	sessions.now = func() time.Time { return now }

	session := &Session{UserID: 4, SubstituteTokenID: 2, SubstituteClassID: 9}
	require.NoError(t, sessions.Create(ctx, session, time.Minute))
	require.NotEmpty(t, session.ID)

	got, err := sessions.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session, got)
	assert.True(t, got.IsSubstitute())

	now = now.Add(2 * time.Minute)
	got, err = sessions.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "expired sessions are gone")

	other := &Session{UserID: 1}
	require.NoError(t, sessions.Create(ctx, other, time.Hour))
	require.NoError(t, sessions.Delete(ctx, other.ID))
	got, err = sessions.Get(ctx, other.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}
