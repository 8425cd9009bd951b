// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/jeranaias/surveyor/internal/auth"
	"github.com/jeranaias/surveyor/internal/chat"
	"github.com/jeranaias/surveyor/internal/config"
	"github.com/jeranaias/surveyor/internal/logging"
	"github.com/jeranaias/surveyor/internal/ollama"
	"github.com/jeranaias/surveyor/internal/quota"
	"github.com/jeranaias/surveyor/internal/session"
	"github.com/jeranaias/surveyor/internal/storage"
)

// App wires the engine and its collaborators for one CLI invocation.
type App struct {
	Config *config.Config
	Logger *log.Logger
	Store  *session.Store
	Client *ollama.Client
	Relay  *quota.Relay
	Auth   *auth.Provider
	Engine *chat.Engine

	blobs   storage.BlobStore
	closers []io.Closer
}

// NewApp loads configuration and opens state. observer receives engine and
// quota events; nil discards them.
func NewApp(args Args, observer chat.Observer) (*App, error) {
	cfg, err := loadConfig(args)
	if err != nil {
		return nil, &CommandError{Command: "config", Action: "load", Reason: "configuration is invalid", Err: err}
	}

	logOpts := logging.Options{Level: cfg.Log.Level, File: cfg.Log.File}
	if args.screen {
		logOpts.Out = io.Discard
	}
	if args.Verbose {
		logOpts.Level = "debug"
	}
	logger, logCloser, err := logging.New(logOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	app := &App{Config: cfg, Logger: logger, closers: []io.Closer{logCloser}}

	if args.Ephemeral {
		app.blobs = storage.NewMemoryBlobStore()
	} else {
		app.blobs, err = storage.Open(cfg.State.Backend, cfg.State.Path)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to open %s state store: %w", cfg.State.Backend, err)
		}
	}
	app.closers = append(app.closers, app.blobs)

	app.Store, err = session.Open(app.blobs, session.Options{
		Key:    cfg.State.Key,
		Logger: logger.With("component", "session"),
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	app.Auth = auth.NewProvider(cfg.Auth.Token, auth.NewTokenFile(cfg.Auth.TokenFile))
	app.Client = ollama.NewClient(&ollama.ClientConfig{
		BaseURL:   cfg.Gateway.BaseURL,
		ChatPath:  cfg.Gateway.ChatPath,
		TagsPath:  cfg.Gateway.TagsPath,
		QuotaPath: cfg.Gateway.QuotaPath,
		Headers:   app.Auth,
	})
	app.Relay = quota.NewRelay(app.Client, nil, quota.Options{
		MinRefreshInterval: cfg.QuotaRefreshInterval(),
		Logger:             logger.With("component", "quota"),
	})
	app.Engine = chat.New(app.Store, app.Client, app.Relay, chat.Options{
		Observer:         observer,
		Logger:           logger.With("component", "chat"),
		ThinkingInterval: cfg.ThinkingInterval(),
		RequestTimeout:   cfg.RequestTimeout(),
	})

	if args.Model != "" {
		if err := app.Store.SelectModel(args.Model); err != nil {
			logger.Warn("model selection not persisted", "err", err)
		}
	}
	return app, nil
}

// loadConfig honors --config, then the default locations. A broken default
// config file is reported and defaults are used.
func loadConfig(args Args) (*config.Config, error) {
	if args.ConfigPath != "" {
		return config.LoadFromPath(args.ConfigPath)
	}
	cfg, err := config.Load()
	if cfg == nil {
		return nil, err
	}
	if err != nil && !args.Quiet {
		fmt.Fprintf(os.Stderr, "%s %v (using defaults)\n", WarningStyle.Render("[Warning]"), err)
	}
	return cfg, nil
}

// requestContext bounds a single gateway call by the configured timeout.
func (a *App) requestContext() (context.Context, context.CancelFunc) {
	if d := a.Config.RequestTimeout(); d > 0 {
		return context.WithTimeout(context.Background(), d)
	}
	return context.WithCancel(context.Background())
}

// Close releases the state store and log file.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
