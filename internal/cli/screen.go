// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// screen.go - Full-screen chat for interactive terminals.
//
// The engine reports to a ui.Bridge, which forwards every event into the
// Bubble Tea program. Slash commands reuse the REPL handlers with their
// output captured for display.
package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/surveyor/internal/auth"
	"github.com/jeranaias/surveyor/internal/ui"
)

// useChatScreen reports whether chat should open full screen.
func useChatScreen(args Args) bool {
	return !args.JSON && IsTTY() && IsStdoutTTY()
}

// runChatScreen runs the full-screen chat until the user quits.
func runChatScreen(args Args) error {
	args.screen = true
	bridge := ui.NewBridge()
	app, err := NewApp(args, bridge)
	if err != nil {
		return err
	}
	defer app.Close()

	started := time.Now()
	model := ui.New(ui.Options{
		Engine:         app.Engine,
		Store:          app.Store,
		Commands:       slashRunner(app),
		LoggedIn:       app.Auth.LoggedIn,
		Gateway:        app.Config.Gateway.BaseURL,
		Version:        Version,
		Quota:          app.Relay.Last(),
		RequestTimeout: app.Config.RequestTimeout(),
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	bridge.Attach(p)
	defer bridge.Detach()

	watcher, err := auth.NewWatcher(app.Auth, bridge.OnLoginState)
	if err == nil {
		err = watcher.Watch()
		defer watcher.Close()
	}
	if err != nil {
		app.Logger.Debug("token file not watched", "err", err)
	}

	final, err := p.Run()
	// Whatever is still in flight is abandoned with the screen.
	bridge.Detach()
	app.Engine.Cancel()
	if err != nil {
		return fmt.Errorf("chat screen failed: %w", err)
	}

	if m, ok := final.(ui.Model); ok && !args.Quiet && m.Turns() > 0 {
		fmt.Fprintln(os.Stdout, DimStyle.Render(fmt.Sprintf("%d replies in %s", m.Turns(), formatDurationShort(time.Since(started)))))
	}
	return nil
}

// slashRunner runs REPL commands against app and returns what they print.
func slashRunner(app *App) ui.CommandFunc {
	return func(input string) (string, bool) {
		var buf bytes.Buffer
		r := newChatREPL(app, nil, &buf, &buf)
		keepGoing, err := r.handleSlash(input)
		if err != nil && !errors.Is(err, errReported) {
			DisplayError(&buf, err, false)
		}
		return buf.String(), !keepGoing
	}
}
