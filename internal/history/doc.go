// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history provides session persistence for costchat.
//
// This package mirrors chat sessions into a local SQLite database,
// with support for listing, search, eviction of old sessions, and
// export to Markdown or JSON.
//
// # Key Types
//
//   - Store: SQLite-backed session store
//   - Record: Serializable session snapshot
//   - Meta: Lightweight metadata for listing
//
// # Usage
//
// Open the default store and save a snapshot:
//
//	store, err := history.NewStore()
//	err = store.Save(&history.Record{ID: id, Messages: msgs})
//
// List and load sessions:
//
//	metas, err := store.List()
//	rec, err := store.Load(metas[0].ID)
//
// Missing sessions are reported explicitly:
//
//	if errors.Is(err, history.ErrSessionNotFound) { ... }
//
// # Storage Location
//
// Sessions are stored in ~/.costchat/history.db.
package history
