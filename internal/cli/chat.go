// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-mode chat REPL.
//
// Usage: surveyor [chat]
//
// Used when stdin or stdout is not a terminal, or with --json; terminals
// get the full-screen chat in screen.go.
//
// Lines starting with "/" are commands (see slash.go); everything else is
// sent to the selected model. Ctrl+C cancels a running request and Ctrl+D
// exits.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/surveyor/internal/chat"
	"github.com/jeranaias/surveyor/internal/config"
	"github.com/jeranaias/surveyor/internal/prompt"
	"github.com/jeranaias/surveyor/internal/quota"
	"github.com/jeranaias/surveyor/internal/util"
)

// chatREPL holds the state of one interactive session.
type chatREPL struct {
	app     *App
	printer *Printer
	out     io.Writer
	errOut  io.Writer

	line        *liner.State
	historyFile string

	turns   int
	started time.Time
}

func newChatREPL(app *App, printer *Printer, out, errOut io.Writer) *chatREPL {
	return &chatREPL{app: app, printer: printer, out: out, errOut: errOut, started: time.Now()}
}

// runChat runs the line-mode chat.
func runChat(app *App, printer *Printer, args Args) error {
	r := newChatREPL(app, printer, os.Stdout, os.Stderr)
	r.openLine()
	defer r.closeLine()

	stop := cancelOnInterrupt(app.Engine)
	defer stop()

	r.refreshModels()
	if !args.Quiet {
		r.printWelcome()
	}

	for {
		input, err := r.line.Prompt(r.promptText())
		if err != nil {
			// Ctrl+C at the prompt, Ctrl+D, or closed stdin.
			fmt.Fprintln(r.out)
			r.printExitSummary(args.Quiet)
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		r.line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			keepGoing, err := r.handleSlash(input)
			if err != nil && !errors.Is(err, errReported) {
				DisplayError(r.errOut, err, false)
			}
			if !keepGoing {
				r.printExitSummary(args.Quiet)
				return nil
			}
			continue
		}
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			r.printExitSummary(args.Quiet)
			return nil
		}

		r.send(input)
	}
}

// send runs one turn. Failures have already been shown by the printer.
func (r *chatREPL) send(input string) {
	err := r.app.Engine.Ask(context.Background(), input)
	switch {
	case err == nil:
		r.turns++
	case errors.Is(err, chat.ErrEmptyPrompt), errors.Is(err, chat.ErrSuperseded):
	default:
		r.app.Logger.Debug("turn failed", "err", err)
	}
}

// =============================================================================
// LINE EDITING
// =============================================================================

func (r *chatREPL) openLine() {
	r.line = liner.NewLiner()
	r.line.SetCtrlCAborts(true)
	r.line.SetCompleter(func(line string) []string {
		if !strings.HasPrefix(line, "/") {
			return nil
		}
		var out []string
		for _, c := range slashCommands {
			if strings.HasPrefix(c, line) {
				out = append(out, c)
			}
		}
		return out
	})

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	r.historyFile = filepath.Join(dir, "chat_history")
	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
}

// closeLine saves input history with owner-only permissions.
func (r *chatREPL) closeLine() {
	if r.line == nil {
		return
	}
	defer r.line.Close()
	if err := os.MkdirAll(filepath.Dir(r.historyFile), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	r.line.WriteHistory(f)
}

func (r *chatREPL) promptText() string {
	model := r.app.Store.Snapshot().SelectedModel
	if model == "" {
		model = "no model"
	}
	// liner does not measure escape sequences, so the prompt stays plain
	// unless colors are forced.
	text := fmt.Sprintf("surveyor (%s)> ", model)
	if ColorsEnabled() && os.Getenv("FORCE_COLOR") != "" {
		return promptStyle.Render(text)
	}
	return text
}

// =============================================================================
// OUTPUT
// =============================================================================

func (r *chatREPL) refreshModels() {
	ctx, cancel := r.app.requestContext()
	defer cancel()
	if _, err := r.app.Engine.RefreshModels(ctx); err != nil {
		r.app.Logger.Debug("model refresh failed", "err", err)
	}
}

func (r *chatREPL) printWelcome() {
	snap := r.app.Store.Snapshot()
	sess, _ := r.app.Store.ActiveSession()

	fmt.Fprintln(r.out, TitleStyle.Render("surveyor "+Version))
	fmt.Fprintln(r.out, RenderLabel("Gateway", r.app.Config.Gateway.BaseURL))
	model := snap.SelectedModel
	if model == "" {
		model = WarningStyle.Render("none (use /models)")
	}
	fmt.Fprintln(r.out, RenderLabel("Model", model))
	fmt.Fprintln(r.out, RenderLabel("Conversation", fmt.Sprintf("%s (%d messages)", sess.Name, len(sess.Messages))))
	fmt.Fprintln(r.out, RenderLabel("Template", snap.SelectedTemplate().Name))
	fmt.Fprintln(r.out, RenderLabel("Stream", onOff(snap.Stream)))
	if q := r.app.Relay.Last(); q.Status != quota.StatusUnknown {
		fmt.Fprintln(r.out, RenderLabel("Quota", q.String()))
	}
	if !r.app.Auth.LoggedIn() {
		fmt.Fprintln(r.out, DimStyle.Render("Not logged in. Use /login <token> if the gateway requires it."))
	}
	fmt.Fprintln(r.out, DimStyle.Render("Type /help for commands, Ctrl+C to cancel a reply, Ctrl+D to exit."))
	fmt.Fprintln(r.out)
}

func (r *chatREPL) printExitSummary(quiet bool) {
	if quiet || r.turns == 0 {
		return
	}
	fmt.Fprintln(r.out, DimStyle.Render(fmt.Sprintf("%d replies in %s", r.turns, formatDurationShort(time.Since(r.started)))))
}

// printSettings shows generation settings and the effective system prompt.
func (r *chatREPL) printSettings() {
	snap := r.app.Store.Snapshot()
	fmt.Fprintln(r.out, RenderLabel("Model", snap.SelectedModel))
	fmt.Fprintln(r.out, RenderLabel("Template", snap.SelectedTemplate().Name))
	fmt.Fprintln(r.out, RenderLabel("Stream", onOff(snap.Stream)))
	fmt.Fprintln(r.out, RenderLabel("Context", fmt.Sprintf("%d", snap.NumCtx)))
	fmt.Fprintln(r.out, RenderLabel("Temperature", fmt.Sprintf("%.2f", snap.Temperature)))
	fmt.Fprintln(r.out, RenderLabel("History", fmt.Sprintf("%d messages", snap.HistoryLimit)))
	system := util.TruncateWidth(util.CollapseSpace(prompt.EffectiveSystemPrompt(snap)), GetTerminalWidth()-28)
	if _, overridden := snap.TemplateOverride[snap.SelectedTemplateID]; overridden {
		system += DimStyle.Render(" (custom)")
	}
	fmt.Fprintln(r.out, RenderLabel("System", system))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
