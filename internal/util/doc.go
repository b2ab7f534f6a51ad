// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small shared helpers for costchat.
//
// # Contents
//
//   - AtomicWriteFile: crash-safe file writes (temp file + fsync + rename),
//     used when saving document attachments to disk
//   - TruncateRunes / TruncateWidth / StringWidth: rune- and column-aware
//     string truncation for terminal rendering
//   - FormatEUR / FormatPercent: display formatting for cost estimates
//
// The package has no dependencies on other costchat packages and may be
// imported from anywhere.
package util
