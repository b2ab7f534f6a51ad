// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for costchat.
//
// Configuration is read from ~/.costchat/config.toml with sensible defaults
// and environment variable overrides.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete costchat configuration.
type Config struct {
	// Backend configuration
	Backend BackendConfig `toml:"backend"`

	// Chat behavior configuration
	Chat ChatConfig `toml:"chat"`

	// Relay server configuration
	Server ServerConfig `toml:"server"`

	// UI configuration
	UI UIConfig `toml:"ui"`
}

// BackendConfig contains assistant backend connection settings.
type BackendConfig struct {
	// StreamURL is the streaming chat endpoint
	StreamURL string `toml:"stream_url"`
	// ConnectTimeoutSecs bounds connection establishment
	ConnectTimeoutSecs int `toml:"connect_timeout_secs"`
}

// ChatConfig contains chat session behavior settings.
type ChatConfig struct {
	// UserID identifies this user on streaming requests
	UserID string `toml:"user_id"`
	// RevealDelayMs is the pause between revealed words of a result
	RevealDelayMs int `toml:"reveal_delay_ms"`
	// MaxSessions limits stored history sessions (0 = unlimited)
	MaxSessions int `toml:"max_sessions"`
	// HistoryPath overrides the history database location
	// (empty = ~/.costchat/history.db)
	HistoryPath string `toml:"history_path"`
	// ExportDir is where session exports are written
	// (empty = current directory)
	ExportDir string `toml:"export_dir"`
}

// ServerConfig contains relay server settings for `costchat serve`.
type ServerConfig struct {
	// Listen is the address the relay binds to
	Listen string `toml:"listen"`
	// UpstreamURL is the backend the relay forwards to
	UpstreamURL string `toml:"upstream_url"`
	// APIKey is attached to forwarded requests as x-api-key
	APIKey string `toml:"api_key"`
	// RateLimitPerMin is the per-client request budget (0 = unlimited)
	RateLimitPerMin int `toml:"rate_limit_per_min"`
	// MaxBodyBytes caps accepted request bodies
	MaxBodyBytes int64 `toml:"max_body_bytes"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	// Theme selects the color theme: "dark" or "light"
	Theme string `toml:"theme"`
	// ShowSidebar shows the session list on startup
	ShowSidebar bool `toml:"show_sidebar"`
	// CompactMode reduces message padding
	CompactMode bool `toml:"compact_mode"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			StreamURL:          "http://127.0.0.1:8000/chat/stream",
			ConnectTimeoutSecs: 10,
		},
		Chat: ChatConfig{
			UserID:        "web_user",
			RevealDelayMs: 30,
			MaxSessions:   100,
		},
		Server: ServerConfig{
			Listen:          "127.0.0.1:8088",
			UpstreamURL:     "http://127.0.0.1:8000",
			RateLimitPerMin: 60,
			MaxBodyBytes:    1 << 20,
		},
		UI: UIConfig{
			Theme:       "dark",
			ShowSidebar: true,
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the costchat configuration directory.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".costchat"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads the configuration from the config file, falling back to
// defaults when the file is missing. Environment overrides are applied
// last, then the result is validated.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific TOML file. A missing
// file is not an error; defaults are used.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to the default config file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveToPath(cfg, path)
}

// SaveToPath writes the configuration as TOML. The API key lives here, so
// the file is created owner read/write only.
func SaveToPath(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Fprintln(file, "# costchat configuration file")
	fmt.Fprintln(file, "# Generated by costchat - edit with care")
	fmt.Fprintln(file, "")

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if _, err := url.Parse(c.Backend.StreamURL); err != nil || c.Backend.StreamURL == "" {
		errs = append(errs, ValidationError{
			Field:   "backend.stream_url",
			Message: fmt.Sprintf("invalid URL %q", c.Backend.StreamURL),
		})
	}
	if c.Backend.ConnectTimeoutSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "backend.connect_timeout_secs",
			Message: "must not be negative",
		})
	}

	if c.Chat.RevealDelayMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "chat.reveal_delay_ms",
			Message: "must not be negative",
		})
	}
	if c.Chat.MaxSessions < 0 {
		errs = append(errs, ValidationError{
			Field:   "chat.max_sessions",
			Message: "must not be negative",
		})
	}

	if _, err := url.Parse(c.Server.UpstreamURL); err != nil || c.Server.UpstreamURL == "" {
		errs = append(errs, ValidationError{
			Field:   "server.upstream_url",
			Message: fmt.Sprintf("invalid URL %q", c.Server.UpstreamURL),
		})
	}
	if c.Server.RateLimitPerMin < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.rate_limit_per_min",
			Message: "must not be negative",
		})
	}

	if c.UI.Theme != "dark" && c.UI.Theme != "light" {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme %q, must be one of: dark, light", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero-valued fields with their defaults.
func (c *Config) SetDefaults() {
	def := Default()

	if c.Backend.StreamURL == "" {
		c.Backend.StreamURL = def.Backend.StreamURL
	}
	if c.Backend.ConnectTimeoutSecs == 0 {
		c.Backend.ConnectTimeoutSecs = def.Backend.ConnectTimeoutSecs
	}
	if c.Chat.UserID == "" {
		c.Chat.UserID = def.Chat.UserID
	}
	if c.Chat.RevealDelayMs == 0 {
		c.Chat.RevealDelayMs = def.Chat.RevealDelayMs
	}
	if c.Server.Listen == "" {
		c.Server.Listen = def.Server.Listen
	}
	if c.Server.UpstreamURL == "" {
		c.Server.UpstreamURL = def.Server.UpstreamURL
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = def.Server.MaxBodyBytes
	}
	if c.UI.Theme == "" {
		c.UI.Theme = def.UI.Theme
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies COSTCHAT_* environment variables over the
// loaded configuration.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("COSTCHAT_STREAM_URL"); v != "" {
		c.Backend.StreamURL = v
	}
	if v := os.Getenv("COSTCHAT_USER_ID"); v != "" {
		c.Chat.UserID = v
	}
	if v := os.Getenv("COSTCHAT_REVEAL_DELAY_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.Chat.RevealDelayMs = ms
		}
	}
	if v := os.Getenv("COSTCHAT_HISTORY_PATH"); v != "" {
		c.Chat.HistoryPath = v
	}
	if v := os.Getenv("COSTCHAT_LISTEN"); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv("COSTCHAT_UPSTREAM_URL"); v != "" {
		c.Server.UpstreamURL = v
	}
	if v := os.Getenv("COSTCHAT_API_KEY"); v != "" {
		c.Server.APIKey = v
	}
	if v := os.Getenv("COSTCHAT_THEME"); v != "" {
		c.UI.Theme = v
	}
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfig = cfg
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
// This should only be used in tests to reset state between test runs.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
