// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across surveyor packages.
//
// # Key Functions
//
// String Utilities:
//   - SummarizeTitle: derive a conversation title from a prompt
//   - TruncateRunes: UTF-8 safe truncation with an ellipsis
//   - TruncateWidth, PadWidth: display-width aware table formatting
//
// Numeric Utilities:
//   - ClampInt, ClampFloat: bound tunable parameters
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	title := util.SummarizeTitle(prompt, 28, "New chat")
//	err := util.AtomicWriteFile(path, data, 0600)
package util
