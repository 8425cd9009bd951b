// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for surveyor.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure
//   - GatewayConfig: Inference gateway endpoints and request timeout
//   - StateConfig: Where conversations and settings are persisted
//   - AuthConfig: Bearer token sources
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (SURVEYOR_*)
//   - ~/.surveyor/config.toml
//   - ~/.surveyor/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	client := ollama.NewClient(cfg.Gateway.BaseURL, headers)
package config
