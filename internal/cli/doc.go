// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and execution for surveyor.
//
// It wires configuration, the state store, the gateway client, the quota
// relay and the chat engine into an App, and renders engine events through
// a Printer that implements chat.Observer.
//
// # Key Types
//
//   - Command: Enumeration of top-level commands
//   - Args: Parsed global flags and command arguments
//   - App: Collaborators for one invocation
//   - Printer: Terminal rendering of replies, notices and quota
//
// # Usage
//
//	cmd, args := cli.Parse(os.Args[1:])
//	os.Exit(cli.Run(cmd, args))
//
// # Commands Overview
//
//   - chat: Interactive REPL with slash commands (default)
//   - ask: Single question, optionally with --json output
//   - sessions: List, show, switch, create and clear conversations
//   - models, quota: Query the gateway
//   - config: Show, locate, validate or create the config file
//   - login, logout: Manage the bearer token
//
// Most commands support --json.
package cli
