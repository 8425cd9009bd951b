// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds surveyor's persisted application state: conversations,
// the active conversation pointer, system prompt templates, and generation
// parameters.
//
// The state is a single document loaded once at startup and written back
// through a storage.BlobStore after every mutation. Loading is tolerant:
// each field falls back to its default independently when it is missing
// or cannot be decoded, so one damaged field never costs the whole state.
//
// # Key Types
//
//   - AppState: The persisted document
//   - Session: One conversation thread
//   - Message: One turn (system, user, assistant, or error)
//   - Template: A named system prompt preset
//   - Store: Mutex-guarded owner of the AppState with write-through persistence
//
// # Invariants
//
// Whenever sessions exist, ActiveSessionID resolves to one of them. Store
// repairs the pointer on load and ActiveSession never returns a missing
// session.
//
// # Usage
//
//	store, err := session.Open(blobs, session.Options{Key: cfg.State.Key})
//	if err != nil {
//	    return err
//	}
//	sess, err := store.ActiveSession()
package session
