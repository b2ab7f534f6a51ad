// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions and messages.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// MEDIA TYPE
// =============================================================================

// MediaType describes the kind of content a message carries.
type MediaType string

const (
	MediaText     MediaType = "text"
	MediaAudio    MediaType = "audio"
	MediaImage    MediaType = "image"
	MediaVideo    MediaType = "video"
	MediaDocument MediaType = "document"
)

// =============================================================================
// DOCUMENT ATTACHMENT
// =============================================================================

// DocumentAttachment is a generated document delivered alongside a result,
// carried base64-encoded so it can be saved to disk on demand.
type DocumentAttachment struct {
	Filename     string `json:"filename"`
	Content      string `json:"content"` // base64
	MimeType     string `json:"mime_type"`
	Size         int64  `json:"size"`
	DocumentType string `json:"document_type,omitempty"`
	GeneratedAt  string `json:"generated_at,omitempty"`
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a session.
//
// Messages are append-only once added to a session; the only in-place
// mutation allowed is the content of the currently streaming assistant
// message (the thinking block or the result placeholder), addressed by ID.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content
	Content string `json:"content"`

	// Media
	MediaType  MediaType `json:"media_type,omitempty"`
	MediaURL   string    `json:"media_url,omitempty"`
	Transcript string    `json:"transcript,omitempty"`

	// Result metadata
	CostEstimate       *CostEstimate       `json:"cost_estimate,omitempty"`
	DocumentAttachment *DocumentAttachment `json:"document_attachment,omitempty"`

	// IsThinking marks the transient reasoning block that the UI renders
	// as a collapsible "in progress" section.
	IsThinking bool `json:"is_thinking,omitempty"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		MediaType: MediaText,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user text message.
func NewUserMessage(content string) *Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates a new assistant text message.
func NewAssistantMessage(content string) *Message {
	return NewMessage(RoleAssistant, content)
}

// NewAudioMessage creates a user message wrapping a locally addressable
// audio resource plus its transcript.
func NewAudioMessage(mediaURL, transcript string) *Message {
	msg := NewMessage(RoleUser, "")
	msg.MediaType = MediaAudio
	msg.MediaURL = mediaURL
	msg.Transcript = transcript
	return msg
}

// NewDocumentMessage creates the "document ready" assistant message that
// carries a downloadable attachment.
func NewDocumentMessage(att *DocumentAttachment) *Message {
	msg := NewMessage(RoleAssistant, "Document ready for download")
	msg.MediaType = MediaDocument
	msg.DocumentAttachment = att
	return msg
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	content := m.Content
	if content == "" && m.Transcript != "" {
		content = m.Transcript
	}
	content = strings.ReplaceAll(content, "\n", " ")
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// IsEmpty returns true if the message has no content or transcript.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0 && len(m.Transcript) == 0
}

// Clone returns a shallow copy of the message. Cost estimate and attachment
// payloads are immutable once received, so sharing them is safe.
func (m *Message) Clone() *Message {
	cp := *m
	return &cp
}
