// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file defines the Bubble Tea messages exchanged between async work
// and the update loop, and the commands that produce them.
package chat

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	chatstore "github.com/hvollmer/costchat/internal/chat"
	"github.com/hvollmer/costchat/internal/history"
	"github.com/hvollmer/costchat/internal/model"
	"github.com/hvollmer/costchat/internal/util"
)

// =============================================================================
// MESSAGE TYPES
// =============================================================================

// StoreChangedMsg signals that the session store mutated. It is sent from
// the store's listener goroutine via Program.Send.
type StoreChangedMsg struct {
	Change chatstore.Change
}

// ConfigReloadedMsg signals that the configuration file changed on disk.
type ConfigReloadedMsg struct{}

// sessionsLoadedMsg delivers the refreshed session list for the sidebar.
type sessionsLoadedMsg struct {
	metas []history.Meta
	err   error
}

// sessionOpenedMsg reports the outcome of loading a stored session.
type sessionOpenedMsg struct {
	id  string
	err error
}

// sessionDeletedMsg reports the outcome of deleting a stored session.
type sessionDeletedMsg struct {
	err error
}

// exportDoneMsg reports the outcome of a transcript export.
type exportDoneMsg struct {
	path string
	err  error
}

// attachmentSavedMsg reports the outcome of saving a document attachment.
type attachmentSavedMsg struct {
	path string
	err  error
}

// statusExpiredMsg clears a transient status line.
type statusExpiredMsg struct {
	seq int
}

// =============================================================================
// COMMANDS
// =============================================================================

// loadSessionsCmd fetches session metadata for the sidebar.
func loadSessionsCmd(hist *history.Store) tea.Cmd {
	return func() tea.Msg {
		if hist == nil {
			return sessionsLoadedMsg{}
		}
		metas, err := hist.List()
		return sessionsLoadedMsg{metas: metas, err: err}
	}
}

// openSessionCmd swaps the store over to a stored session.
func openSessionCmd(store *chatstore.Store, id string) tea.Cmd {
	return func() tea.Msg {
		return sessionOpenedMsg{id: id, err: store.LoadSession(id)}
	}
}

// deleteSessionCmd removes a stored session.
func deleteSessionCmd(hist *history.Store, id string) tea.Cmd {
	return func() tea.Msg {
		if hist == nil {
			return sessionDeletedMsg{}
		}
		return sessionDeletedMsg{err: hist.Delete(id)}
	}
}

// exportSessionCmd writes the live transcript to a markdown file.
func exportSessionCmd(store *chatstore.Store, dir string) tea.Cmd {
	return func() tea.Msg {
		rec := &history.Record{
			ID:        store.SessionID(),
			CreatedAt: store.CreatedAt(),
			UpdatedAt: time.Now(),
			Messages:  store.Messages(),
		}
		if len(rec.Messages) == 0 {
			return exportDoneMsg{err: fmt.Errorf("nothing to export")}
		}
		opts := history.DefaultExportOptions()
		if dir != "" {
			opts.OutputDir = dir
		}
		path, err := history.ExportMarkdown(rec, opts)
		return exportDoneMsg{path: path, err: err}
	}
}

// saveAttachmentCmd decodes a document attachment and writes it to disk.
func saveAttachmentCmd(att *model.DocumentAttachment, dir string) tea.Cmd {
	return func() tea.Msg {
		if att == nil {
			return attachmentSavedMsg{err: fmt.Errorf("no document to save")}
		}
		data, err := base64.StdEncoding.DecodeString(att.Content)
		if err != nil {
			return attachmentSavedMsg{err: fmt.Errorf("decode document: %w", err)}
		}
		name := att.Filename
		if name == "" {
			name = "document.pdf"
		}
		path := filepath.Join(dir, name)
		// The export directory holds the user's documents; keep it private.
		if err := util.AtomicWriteFileWithDir(path, data, 0644, 0700); err != nil {
			return attachmentSavedMsg{err: err}
		}
		return attachmentSavedMsg{path: path}
	}
}

// expireStatusCmd schedules the transient status line to clear.
func expireStatusCmd(seq int) tea.Cmd {
	return tea.Tick(4*time.Second, func(time.Time) tea.Msg {
		return statusExpiredMsg{seq: seq}
	})
}
