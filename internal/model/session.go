// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions and messages.
package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// SESSION TYPE
// =============================================================================

// Session holds one conversation: an identity and its ordered message list.
// Insertion order is display order. Exactly one session is active in the
// chat store at a time; sessions are the unit of persistence and the unit
// the sidebar lists.
type Session struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	Messages  []*Message `json:"messages"`
}

// NewSession creates a new empty session with a generated ID.
func NewSession() *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		Messages:  make([]*Message, 0),
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// Append adds a message to the session.
func (s *Session) Append(msg *Message) {
	s.Messages = append(s.Messages, msg)
}

// GetMessageByID returns a message by its ID, or nil.
func (s *Session) GetMessageByID(id string) *Message {
	for _, msg := range s.Messages {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}

// GetLastMessage returns the most recent message, or nil if empty.
func (s *Session) GetLastMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return s.Messages[len(s.Messages)-1]
}

// MessageCount returns the number of messages.
func (s *Session) MessageCount() int {
	return len(s.Messages)
}

// IsEmpty returns true if there are no messages.
func (s *Session) IsEmpty() bool {
	return len(s.Messages) == 0
}

// Preview returns a short preview from the first user message.
func (s *Session) Preview(maxLen int) string {
	for _, msg := range s.Messages {
		if msg.Role == RoleUser && !msg.IsEmpty() {
			return msg.Preview(maxLen)
		}
	}
	return "New conversation"
}

// Clone returns a copy of the session with cloned messages. Used to hand
// snapshots to the persistence layer and the UI without sharing the live
// message slice.
func (s *Session) Clone() *Session {
	clone := &Session{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		Messages:  make([]*Message, len(s.Messages)),
	}
	for i, msg := range s.Messages {
		clone.Messages[i] = msg.Clone()
	}
	return clone
}
