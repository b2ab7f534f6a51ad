// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for costchat.
//
// Configuration is TOML with sensible defaults, environment variable
// overrides, and validation. An optional file watcher reloads the
// configuration when the file changes on disk.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - BackendConfig: Assistant backend connection settings
//   - ServerConfig: Relay server settings
//   - Watcher: Debounced config file reloader
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (COSTCHAT_*)
//   - ~/.costchat/config.toml
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Access settings:
//
//	url := cfg.Backend.StreamURL
//	delay := cfg.Chat.RevealDelayMs
package config
