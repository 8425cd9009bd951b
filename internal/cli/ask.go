// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - Single-question command.
//
// Usage: surveyor ask [--json] <prompt>
//        echo "prompt" | surveyor ask -
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/jeranaias/surveyor/internal/chat"
)

func runAsk(app *App, printer *Printer, args Args, in io.Reader, out io.Writer) error {
	query := strings.TrimSpace(args.Query)
	if query == "" || query == "-" {
		if query == "" && IsTTY() {
			return ErrMissingArgument("prompt", "surveyor ask <prompt>")
		}
		data, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("failed to read prompt from stdin: %w", err)
		}
		query = strings.TrimSpace(string(data))
	}
	if query == "" {
		return ErrMissingArgument("prompt", "surveyor ask <prompt>")
	}

	stop := cancelOnInterrupt(app.Engine)
	defer stop()

	err := app.Engine.Ask(context.Background(), query)
	if err != nil {
		if args.JSON || errors.Is(err, chat.ErrEmptyPrompt) {
			return err
		}
		// The printer has already shown the notice.
		return reportedError{err}
	}

	if args.JSON {
		c := printer.LastCompletion()
		if c == nil {
			return errors.New("no reply recorded")
		}
		return NewJSONResponse("ask", AskData{
			SessionID:        c.SessionID,
			Model:            c.Message.Model,
			Content:          c.Message.Content,
			Placeholder:      c.Placeholder,
			Streamed:         c.Streamed,
			ElapsedMs:        c.Elapsed.Milliseconds(),
			PromptTokens:     c.PromptTokens,
			CompletionTokens: c.CompletionTokens,
			TokensPerSecond:  c.TokensPerSecond,
			DroppedFrames:    c.Dropped,
		}).Write(out)
	}
	return nil
}

// cancelOnInterrupt turns SIGINT into an explicit engine cancel while a
// request runs. The returned func restores default handling.
func cancelOnInterrupt(engine *chat.Engine) func() {
	sigCh := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		for {
			select {
			case <-sigCh:
				engine.Cancel()
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
