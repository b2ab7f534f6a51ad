// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// =============================================================================
// DEFAULTS AND VALIDATION
// =============================================================================

func TestDefault(t *testing.T) {
	cfg := Default()

	require.Equal(t, "http://127.0.0.1:8000/chat/stream", cfg.Backend.StreamURL)
	require.Equal(t, "web_user", cfg.Chat.UserID)
	require.Equal(t, 30, cfg.Chat.RevealDelayMs)
	require.Equal(t, 100, cfg.Chat.MaxSessions)
	require.Equal(t, "dark", cfg.UI.Theme)
	require.NoError(t, cfg.Validate())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty stream url", func(c *Config) { c.Backend.StreamURL = "" }, "backend.stream_url"},
		{"negative reveal delay", func(c *Config) { c.Chat.RevealDelayMs = -1 }, "chat.reveal_delay_ms"},
		{"negative max sessions", func(c *Config) { c.Chat.MaxSessions = -5 }, "chat.max_sessions"},
		{"empty upstream", func(c *Config) { c.Server.UpstreamURL = "" }, "server.upstream_url"},
		{"bad theme", func(c *Config) { c.UI.Theme = "solarized" }, "ui.theme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestSetDefaults_FillsZeroValues(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	require.Equal(t, Default().Backend.StreamURL, cfg.Backend.StreamURL)
	require.Equal(t, Default().Server.Listen, cfg.Server.Listen)
	require.Equal(t, Default().UI.Theme, cfg.UI.Theme)
}

// =============================================================================
// LOAD AND SAVE
// =============================================================================

func TestLoadFromPath_Missing(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	require.Equal(t, Default().Backend.StreamURL, cfg.Backend.StreamURL)
}

func TestLoadFromPath_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[backend]
stream_url = "https://backend.example.com/chat/stream"

[chat]
user_id = "tester"
reveal_delay_ms = 5

[ui]
theme = "light"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	require.Equal(t, "https://backend.example.com/chat/stream", cfg.Backend.StreamURL)
	require.Equal(t, "tester", cfg.Chat.UserID)
	require.Equal(t, 5, cfg.Chat.RevealDelayMs)
	require.Equal(t, "light", cfg.UI.Theme)
	// Unset fields take defaults.
	require.Equal(t, Default().Server.Listen, cfg.Server.Listen)
}

func TestLoadFromPath_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`[ui]`+"\n"+`theme = "neon"`), 0600))

	_, err := LoadFromPath(path)
	require.Error(t, err)
}

func TestSaveToPath_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.Chat.UserID = "roundtrip"
	cfg.Server.APIKey = "secret"
	require.NoError(t, SaveToPath(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	require.Equal(t, "roundtrip", loaded.Chat.UserID)
	require.Equal(t, "secret", loaded.Server.APIKey)
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("COSTCHAT_STREAM_URL", "https://env.example.com/stream")
	t.Setenv("COSTCHAT_USER_ID", "env_user")
	t.Setenv("COSTCHAT_REVEAL_DELAY_MS", "7")
	t.Setenv("COSTCHAT_API_KEY", "env-key")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	require.Equal(t, "https://env.example.com/stream", cfg.Backend.StreamURL)
	require.Equal(t, "env_user", cfg.Chat.UserID)
	require.Equal(t, 7, cfg.Chat.RevealDelayMs)
	require.Equal(t, "env-key", cfg.Server.APIKey)
}

func TestApplyEnvOverrides_BadNumberIgnored(t *testing.T) {
	t.Setenv("COSTCHAT_REVEAL_DELAY_MS", "not-a-number")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	require.Equal(t, 30, cfg.Chat.RevealDelayMs)
}

// =============================================================================
// GLOBAL SINGLETON
// =============================================================================

func TestSetGlobal(t *testing.T) {
	defer ResetGlobalForTesting()

	cfg := Default()
	cfg.Chat.UserID = "global_user"
	SetGlobal(cfg)

	require.Equal(t, "global_user", Global().Chat.UserID)
}

// =============================================================================
// FILE WATCHER
// =============================================================================

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, SaveToPath(Default(), path))

	reloaded := make(chan *Config, 4)
	w, err := NewWatcher(path, 50*time.Millisecond, func(cfg *Config) {
		reloaded <- cfg
	})
	require.NoError(t, err)
	require.NoError(t, w.Watch())
	defer w.Close()

	updated := Default()
	updated.Chat.UserID = "watched_user"
	require.NoError(t, SaveToPath(updated, path))

	select {
	case cfg := <-reloaded:
		require.Equal(t, "watched_user", cfg.Chat.UserID)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never fired")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, SaveToPath(Default(), path))

	reloaded := make(chan *Config, 4)
	w, err := NewWatcher(path, 20*time.Millisecond, func(cfg *Config) {
		reloaded <- cfg
	})
	require.NoError(t, err)
	require.NoError(t, w.Watch())
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0600))

	select {
	case <-reloaded:
		t.Fatal("watcher fired for unrelated file")
	case <-time.After(300 * time.Millisecond):
	}
}
