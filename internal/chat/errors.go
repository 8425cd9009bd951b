// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "errors"

var (
	// ErrNoModel is returned by Ask when no model is selected. Nothing is
	// sent or recorded.
	ErrNoModel = errors.New("no model selected")

	// ErrEmptyPrompt is returned by Ask for a blank prompt.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrSuperseded is returned by an Ask whose request was replaced by a
	// newer Ask. Its outcome is discarded.
	ErrSuperseded = errors.New("request superseded by a newer request")
)

// Placeholder texts recorded when the gateway returns no usable content.
const (
	PlaceholderEmpty      = "(empty response)"
	PlaceholderNoResponse = "(no response)"
)
