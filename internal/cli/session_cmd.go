// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// session_cmd.go - Conversation management command.
//
// Usage: surveyor sessions [list|show|switch|new|clear]
package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jeranaias/surveyor/internal/export"
	"github.com/jeranaias/surveyor/internal/session"
)

func runSessions(app *App, args Args, out io.Writer) error {
	parser := NewArgParser(args.Raw)
	ref := parser.Positional(1)

	switch args.Subcommand {
	case "", "list", "ls":
		return listSessions(app.Store, args.JSON, out)

	case "show":
		sess, err := resolveSession(app.Store, ref)
		if err != nil {
			return err
		}
		if args.JSON {
			return NewJSONResponse("sessions show", sess).Write(out)
		}
		fmt.Fprintln(out, TitleStyle.Render(sess.Name))
		fmt.Fprintln(out, RenderSeparator(40))
		writeTranscript(out, sess.Messages, true)
		return nil

	case "switch", "use":
		if ref == "" {
			return ErrMissingArgument("session", "surveyor sessions switch <n|id>")
		}
		sess, err := resolveSession(app.Store, ref)
		if err != nil {
			return err
		}
		if err := app.Store.SetActiveSession(sess.ID); err != nil {
			return err
		}
		return reportSession(app.Store, "sessions switch", sess.ID, "Switched to", args, out)

	case "new":
		sess, err := app.Store.NewSession()
		if err != nil {
			return &CommandError{Command: "sessions", Action: "new", Reason: "state not saved", Err: err}
		}
		return reportSession(app.Store, "sessions new", sess.ID, "Started", args, out)

	case "clear":
		if err := app.Store.ClearActiveSession(); err != nil {
			return &CommandError{Command: "sessions", Action: "clear", Reason: "state not saved", Err: err}
		}
		return reportSession(app.Store, "sessions clear", app.Store.Snapshot().ActiveSessionID, "Cleared", args, out)

	case "export":
		sess, err := resolveSession(app.Store, ref)
		if err != nil {
			return err
		}
		path, err := exportSession(sess, parser)
		if err != nil {
			return err
		}
		if args.JSON {
			return NewJSONResponse("sessions export", map[string]string{"id": sess.ID, "path": path}).Write(out)
		}
		if !args.Quiet {
			fmt.Fprintf(out, "%s %s\n", SuccessStyle.Render("Exported to"), path)
		}
		return nil

	default:
		return &UsageError{
			Message: fmt.Sprintf("unknown sessions subcommand: %s", args.Subcommand),
			Usage:   "surveyor sessions [list|show|switch|new|clear|export]",
		}
	}
}

func listSessions(store *session.Store, jsonMode bool, out io.Writer) error {
	sessions := store.Sessions()
	active := store.Snapshot().ActiveSessionID

	if jsonMode {
		data := make([]SessionData, 0, len(sessions))
		for _, s := range sessions {
			data = append(data, sessionData(s, active))
		}
		return NewJSONResponse("sessions", data).Write(out)
	}

	if len(sessions) == 0 {
		fmt.Fprintln(out, DimStyle.Render("No conversations yet."))
		return nil
	}
	sessionTable(sessions).write(out, func(row int) bool {
		return sessions[row].ID == active
	})
	return nil
}

func reportSession(store *session.Store, command, id, verb string, args Args, out io.Writer) error {
	sess, err := store.Session(id)
	if err != nil {
		return err
	}
	if args.JSON {
		return NewJSONResponse(command, sessionData(sess, id)).Write(out)
	}
	if !args.Quiet {
		fmt.Fprintf(out, "%s %s\n", SuccessStyle.Render(verb), sess.Name)
	}
	return nil
}

func sessionData(s session.Session, activeID string) SessionData {
	return SessionData{
		ID:        s.ID,
		Name:      s.Name,
		Model:     s.Model,
		Template:  s.TemplateID,
		Messages:  len(s.Messages),
		Active:    s.ID == activeID,
		UpdatedAt: s.UpdatedAt,
	}
}

// exportSession writes sess using --format (md|json), --out DIR and
// --no-errors from parser.
func exportSession(sess session.Session, parser *ArgParser) (string, error) {
	opts := export.DefaultOptions()
	opts.OutputDir = parser.FlagOrDefault("out", ".")
	opts.IncludeErrors = !parser.BoolFlag("no-errors")

	exporter, err := export.ForFormat(parser.FlagOrDefault("format", "md"), opts)
	if err != nil {
		return "", &UsageError{Message: err.Error(), Usage: "--format md|json"}
	}
	return export.ToFile(&sess, exporter, opts)
}

// resolveSession accepts a 1-based index into the listing, a full id, or a
// unique id prefix. An empty ref means the active session.
func resolveSession(store *session.Store, ref string) (session.Session, error) {
	if ref == "" {
		return store.ActiveSession()
	}
	sessions := store.Sessions()
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(sessions) {
		return sessions[n-1], nil
	}

	var match *session.Session
	for i := range sessions {
		if sessions[i].ID == ref {
			return sessions[i], nil
		}
		if strings.HasPrefix(sessions[i].ID, ref) {
			if match != nil {
				return session.Session{}, &UsageError{Message: fmt.Sprintf("session id prefix %q is ambiguous", ref)}
			}
			match = &sessions[i]
		}
	}
	if match == nil {
		return session.Session{}, fmt.Errorf("%w: %s", session.ErrSessionNotFound, ref)
	}
	return *match, nil
}
