// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions and messages.
//
// # Key Types
//
//   - Message: A single chat message (user or assistant)
//   - Session: An ordered message list with identity
//   - CostEstimate: The financial breakdown payload carried by a result
//   - DocumentAttachment: A base64-encoded generated document
//
// Messages are append-only: once a message is part of a session, only the
// content of the currently streaming assistant message may be rewritten in
// place, addressed by its ID. Everything else is immutable.
package model
