// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat drives a single conversational request from prompt to
// persisted reply.
//
// An Engine turns a prompt into a gateway request, consumes either a
// single JSON reply or an NDJSON stream, and records the outcome in the
// session store. At most one request is in flight per Engine: a new Ask
// cancels the previous one, whose late results are discarded.
//
// # Lifecycle
//
//	Idle -> Sending -> Streaming | Awaiting -> Completed | Failed | Cancelled -> Idle
//
// # Key Types
//
//   - Engine: Request lifecycle controller
//   - Observer: Event sink implemented by the UI
//   - Phase: Lifecycle state
//   - Completion: Metadata delivered when a reply has been recorded
//
// # Usage
//
//	engine := chat.New(store, client, relay, chat.Options{Observer: ui})
//	if err := engine.Ask(ctx, "What is a geoid?"); err != nil {
//	    // The error is already recorded in the session and reported to ui.
//	}
package chat
