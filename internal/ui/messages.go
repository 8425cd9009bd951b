// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui is the full-screen chat for interactive terminals.
//
// This file defines the Bubble Tea messages the chat screen handles.
// Engine events arrive through Bridge; the rest come from commands the
// model starts itself.
package ui

import (
	"time"

	"github.com/jeranaias/surveyor/internal/chat"
	"github.com/jeranaias/surveyor/internal/quota"
	"github.com/jeranaias/surveyor/internal/session"
)

// =============================================================================
// ENGINE EVENTS
// =============================================================================

// StatusMsg carries the busy indicator and status text.
type StatusMsg struct {
	Busy bool
	Text string
}

// PhaseMsg reports a request lifecycle transition.
type PhaseMsg struct {
	Phase chat.Phase
}

// MessageAppendedMsg fires after a message is persisted.
type MessageAppendedMsg struct {
	SessionID string
	Message   session.Message
}

// StreamChunkMsg delivers one content fragment of a streamed reply.
type StreamChunkMsg struct {
	SessionID   string
	Delta       string
	Accumulated string
}

// ThinkingMsg updates the elapsed-time indicator.
type ThinkingMsg struct {
	Elapsed time.Duration
	Active  bool
}

// CompletedMsg signals a recorded assistant reply.
type CompletedMsg struct {
	Completion chat.Completion
}

// NoticeMsg carries a user-facing error.
type NoticeMsg struct {
	Notice chat.Notice
}

// QuotaMsg carries a new quota snapshot.
type QuotaMsg struct {
	Snapshot quota.Snapshot
}

// LoginRequiredMsg signals that the gateway rejected our credentials.
type LoginRequiredMsg struct{}

// LoginStateMsg reports the token file's login state.
type LoginStateMsg struct {
	LoggedIn bool
}

// =============================================================================
// COMMAND RESULTS
// =============================================================================

// askDoneMsg is returned when Engine.Ask resolves.
type askDoneMsg struct {
	err error
}

// commandDoneMsg is returned when a slash command finishes.
type commandDoneMsg struct {
	input  string
	output string
	quit   bool
}

// modelsLoadedMsg is returned by the startup model refresh.
type modelsLoadedMsg struct {
	err error
}
