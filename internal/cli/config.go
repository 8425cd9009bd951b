// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config file command.
//
// Usage: surveyor config [show|path|init|validate]
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jeranaias/surveyor/internal/config"
)

func runConfig(args Args, out io.Writer) error {
	path, err := configPath(args)
	if err != nil {
		return err
	}

	switch args.Subcommand {
	case "path":
		if args.JSON {
			return NewJSONResponse("config path", map[string]string{"path": path}).Write(out)
		}
		fmt.Fprintln(out, path)
		return nil

	case "", "show", "validate":
		cfg, err := loadConfigStrict(args, path)
		if err != nil {
			return &CommandError{Command: "config", Action: "load", Reason: path, Err: err}
		}
		if args.Subcommand == "validate" {
			if !args.Quiet {
				fmt.Fprintf(out, "%s %s\n", RenderStatus("ok"), path)
			}
			return nil
		}
		if args.JSON {
			masked := *cfg
			if masked.Auth.Token != "" {
				masked.Auth.Token = "****"
			}
			return NewJSONResponse("config show", masked).Write(out)
		}
		fmt.Fprintln(out, DimStyle.Render("# "+path))
		fmt.Fprint(out, cfg.String())
		return nil

	case "init":
		parser := NewArgParser(args.Raw)
		if _, err := os.Stat(path); err == nil && !parser.BoolFlag("force") {
			return &UsageError{Message: fmt.Sprintf("%s already exists", path), Usage: "surveyor config init --force"}
		}
		cfg := config.Default()
		if url := parser.Flag("gateway"); url != "" {
			cfg.Gateway.BaseURL = url
		}
		cfg.SetDefaults()
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := config.SaveTOML(cfg, path); err != nil {
			return err
		}
		if !args.Quiet {
			fmt.Fprintf(out, "%s %s\n", SuccessStyle.Render("Wrote"), path)
		}
		return nil

	default:
		return &UsageError{
			Message: fmt.Sprintf("unknown config subcommand: %s", args.Subcommand),
			Usage:   "surveyor config [show|path|init|validate]",
		}
	}
}

// configPath returns --config, or the first existing default file, or the
// default TOML path.
func configPath(args Args) (string, error) {
	if args.ConfigPath != "" {
		return filepath.Abs(args.ConfigPath)
	}
	tomlPath, err := config.ConfigPathTOML()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath, nil
	}
	if jsonPath, err := config.ConfigPathJSON(); err == nil {
		if _, err := os.Stat(jsonPath); err == nil {
			return jsonPath, nil
		}
	}
	return tomlPath, nil
}

// loadConfigStrict surfaces a broken file instead of falling back.
func loadConfigStrict(args Args, path string) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil && args.ConfigPath == "" {
		return config.Load()
	}
	return config.LoadFromPath(path)
}
