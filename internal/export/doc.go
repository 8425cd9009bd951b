// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes saved conversations to files.
//
// # Supported Formats
//
//   - Markdown: Human-readable transcript with a YAML front matter header
//   - JSON: The session exactly as persisted
//
// # Usage
//
//	exporter, err := export.ForFormat("md", nil)
//	path, err := export.ToFile(sess, exporter, &export.Options{OutputDir: "."})
package export
