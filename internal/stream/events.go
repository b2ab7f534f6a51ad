// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream provides the push-channel client for the assistant backend.
package stream

import (
	"encoding/json"
	"fmt"

	"github.com/hvollmer/costchat/internal/model"
)

// =============================================================================
// EVENT KINDS
// =============================================================================

// Kind identifies one of the named server events on the push channel.
type Kind string

const (
	KindThinking Kind = "thinking"
	KindStart    Kind = "start"
	KindProgress Kind = "progress"
	KindForm     Kind = "form"
	KindResult   Kind = "result"
	KindEnd      Kind = "end"
)

// =============================================================================
// EVENT PAYLOADS
// =============================================================================

// ThinkingData carries one incremental reasoning token. The simpler protocol
// variant sends no payload at all; Token is empty in that case.
type ThinkingData struct {
	Token string `json:"token"`
}

// StartData announces that the turn began.
type StartData struct {
	Message string `json:"message"`
}

// ProgressData is an intermediate status update.
type ProgressData struct {
	Message string `json:"message"`
}

// FormField is one input of a server-supplied interactive form.
type FormField struct {
	Name        string   `json:"name"`
	Label       string   `json:"label"`
	Type        string   `json:"type"`
	Required    bool     `json:"required,omitempty"`
	Options     []string `json:"options,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
}

// FormSpec is the structured form specification delivered by a form event.
type FormSpec struct {
	Title       string      `json:"title"`
	Fields      []FormField `json:"fields"`
	SubmitLabel string      `json:"submit_label"`
}

// formEnvelope matches the wire shape {"data": {...}} of form events.
type formEnvelope struct {
	Data FormSpec `json:"data"`
}

// ResultData is the turn's terminal content delivery.
type ResultData struct {
	Response           string                    `json:"response"`
	SuggestedQuestions []string                  `json:"suggested_question"`
	CostEstimate       *model.CostEstimate       `json:"cost_estimate,omitempty"`
	// DocumentAttachment is the legacy top-level field; the attachment
	// nested under the cost estimate takes precedence when both are set.
	DocumentAttachment *model.DocumentAttachment `json:"document_attachment,omitempty"`
}

// Attachment returns the document attachment for this result, preferring the
// one nested under the cost estimate over the legacy top-level field.
func (r *ResultData) Attachment() *model.DocumentAttachment {
	if att := r.CostEstimate.Attachment(); att != nil {
		return att
	}
	return r.DocumentAttachment
}

// =============================================================================
// EVENT SUM TYPE
// =============================================================================

// Event is the tagged union over the six event kinds. Exactly the variant
// matching Kind is non-nil (End carries no payload). Payloads are decoded
// once, at the channel boundary; handlers never touch raw JSON.
type Event struct {
	Kind Kind

	Thinking *ThinkingData
	Start    *StartData
	Progress *ProgressData
	Form     *FormSpec
	Result   *ResultData
}

// decodeEvent parses a named event and its data payload into an Event.
// Unknown event names return an error so the caller can log and skip them.
func decodeEvent(name string, data []byte) (*Event, error) {
	ev := &Event{Kind: Kind(name)}

	switch ev.Kind {
	case KindThinking:
		ev.Thinking = &ThinkingData{}
		// No-payload variant: thinking without data is a bare pulse.
		if len(data) > 0 {
			if err := json.Unmarshal(data, ev.Thinking); err != nil {
				return nil, fmt.Errorf("thinking payload: %w", err)
			}
		}
	case KindStart:
		ev.Start = &StartData{}
		if err := json.Unmarshal(data, ev.Start); err != nil {
			return nil, fmt.Errorf("start payload: %w", err)
		}
	case KindProgress:
		ev.Progress = &ProgressData{}
		if err := json.Unmarshal(data, ev.Progress); err != nil {
			return nil, fmt.Errorf("progress payload: %w", err)
		}
	case KindForm:
		var env formEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("form payload: %w", err)
		}
		ev.Form = &env.Data
	case KindResult:
		ev.Result = &ResultData{}
		if err := json.Unmarshal(data, ev.Result); err != nil {
			return nil, fmt.Errorf("result payload: %w", err)
		}
	case KindEnd:
		// No payload.
	default:
		return nil, fmt.Errorf("unknown event %q", name)
	}

	return ev, nil
}
