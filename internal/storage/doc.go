// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides durable persistence for surveyor's application state.
//
// The whole state (sessions, settings, templates) is one opaque blob stored
// under a namespaced key. This package does not interpret the blob; the
// session package owns its shape and per-field defaulting.
//
// # Key Types
//
//   - BlobStore: Read/write interface for a keyed blob
//   - FileBlobStore: One JSON file per key, written atomically
//   - SQLiteBlobStore: A key/value table in a local SQLite database
//
// # Usage
//
//	store, err := storage.Open("file", "~/.surveyor/state")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//	data, err := store.Get("surveyor_ai_v2")
//
// # Storage Location
//
// By default the file backend writes ~/.surveyor/state/<key>.json and the
// sqlite backend uses ~/.surveyor/state.db.
package storage
