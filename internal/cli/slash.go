// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// slash.go - Chat REPL commands.
package cli

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/jeranaias/surveyor/internal/prompt"
	"github.com/jeranaias/surveyor/internal/session"
)

const chatHelp = `Commands:
  /new                     Start a new conversation
  /clear                   Clear the current conversation
  /sessions                List conversations
  /switch N|ID             Switch conversation
  /show                    Print the current conversation
  /export [md|json]        Save the current conversation to a file
  /models                  Refresh and list gateway models
  /model [NAME]            Show or select the model
  /templates               List prompt templates
  /template ID             Select a template
  /template add NAME TEXT  Add a template
  /template rm ID          Delete a template
  /system [TEXT|-]         Show, override, or reset the system prompt
  /stream on|off           Toggle streaming
  /ctx N                   Context window (256-32768)
  /temp F                  Temperature (0-1.5)
  /history N               Past messages sent with each prompt (0-50)
  /settings                Show generation settings
  /quota                   Refresh the quota display
  /login TOKEN, /logout    Manage the bearer token
  /quit                    Exit`

// handleSlash runs one REPL command. It returns false when the REPL
// should exit.
func (r *chatREPL) handleSlash(input string) (bool, error) {
	fields := strings.Fields(input)
	cmd := strings.ToLower(fields[0])
	parser := NewArgParser(fields[1:])
	rest := strings.TrimSpace(strings.TrimPrefix(input, fields[0]))
	store := r.app.Store

	switch cmd {
	case "/quit", "/exit", "/q":
		return false, nil

	case "/help", "/?":
		fmt.Fprintln(r.out, chatHelp)

	case "/new":
		sess, err := store.NewSession()
		if err != nil {
			return true, err
		}
		fmt.Fprintf(r.out, "%s %s\n", SuccessStyle.Render("Started"), sess.Name)

	case "/clear":
		if err := store.ClearActiveSession(); err != nil {
			return true, err
		}
		fmt.Fprintln(r.out, SuccessStyle.Render("Conversation cleared."))

	case "/sessions":
		return true, listSessions(store, false, r.out)

	case "/switch":
		if rest == "" {
			return true, ErrMissingArgument("session", "/switch N|ID")
		}
		sess, err := resolveSession(store, parser.Positional(0))
		if err != nil {
			return true, err
		}
		if err := store.SetActiveSession(sess.ID); err != nil {
			return true, err
		}
		fmt.Fprintf(r.out, "%s %s\n", SuccessStyle.Render("Switched to"), sess.Name)
		writeTranscript(r.out, lastMessages(sess.Messages, 6), false)

	case "/show":
		sess, err := store.ActiveSession()
		if err != nil {
			return true, err
		}
		fmt.Fprintln(r.out, TitleStyle.Render(sess.Name))
		writeTranscript(r.out, sess.Messages, true)

	case "/export":
		sess, err := store.ActiveSession()
		if err != nil {
			return true, err
		}
		if f := parser.Positional(0); f != "" {
			parser = NewArgParser(append([]string{"--format", f}, fields[2:]...))
		}
		path, err := exportSession(sess, parser)
		if err != nil {
			return true, err
		}
		fmt.Fprintf(r.out, "%s %s\n", SuccessStyle.Render("Exported to"), path)

	case "/models":
		return true, runModels(r.app, Args{}, r.out)

	case "/model":
		if rest == "" {
			fmt.Fprintln(r.out, RenderLabel("Model", store.Snapshot().SelectedModel))
			return true, nil
		}
		return true, r.selectModel(rest)

	case "/templates":
		r.listTemplates()

	case "/template":
		return true, r.template(parser, rest)

	case "/system":
		return true, r.system(rest)

	case "/stream":
		on, err := ParseBoolString(rest)
		if err != nil {
			return true, &UsageError{Message: err.Error(), Usage: "/stream on|off"}
		}
		if err := store.SetStream(on); err != nil {
			return true, err
		}
		fmt.Fprintln(r.out, RenderLabel("Stream", onOff(on)))

	case "/ctx":
		n, err := ParseIntWithValidation(rest, "context size")
		if err != nil {
			return true, &UsageError{Message: err.Error(), Usage: "/ctx N"}
		}
		n, err = store.SetNumCtx(n)
		if err != nil {
			return true, err
		}
		fmt.Fprintln(r.out, RenderLabel("Context", strconv.Itoa(n)))

	case "/temp":
		f, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return true, &UsageError{Message: "temperature must be a number", Usage: "/temp F"}
		}
		f, err = store.SetTemperature(f)
		if err != nil {
			return true, err
		}
		fmt.Fprintln(r.out, RenderLabel("Temperature", fmt.Sprintf("%.2f", f)))

	case "/history":
		n, err := strconv.Atoi(rest)
		if err != nil {
			return true, &UsageError{Message: "history limit must be an integer", Usage: "/history N"}
		}
		n, err = store.SetHistoryLimit(n)
		if err != nil {
			return true, err
		}
		fmt.Fprintln(r.out, RenderLabel("History", fmt.Sprintf("%d messages", n)))

	case "/settings":
		r.printSettings()

	case "/quota":
		ctx, cancel := r.app.requestContext()
		defer cancel()
		err := r.app.Engine.RefreshQuota(ctx)
		fmt.Fprintln(r.out, RenderLabel("Quota", r.app.Relay.Last().String()))
		return true, err

	case "/login":
		if rest == "" {
			return true, ErrMissingArgument("token", "/login TOKEN")
		}
		if err := r.app.Auth.Login(rest); err != nil {
			return true, err
		}
		fmt.Fprintf(r.out, "%s token stored in %s\n", SuccessStyle.Render("Logged in:"), r.app.Auth.Source())
		ctx, cancel := r.app.requestContext()
		defer cancel()
		_ = r.app.Engine.RefreshQuota(ctx)

	case "/logout":
		if err := r.app.Auth.Logout(); err != nil {
			return true, err
		}
		fmt.Fprintln(r.out, SuccessStyle.Render("Logged out."))

	default:
		msg := fmt.Sprintf("unknown command: %s", cmd)
		if s := SuggestSlashCommand(cmd); s != "" {
			msg += fmt.Sprintf(" (did you mean %s?)", s)
		}
		return true, &UsageError{Message: msg, Usage: "/help"}
	}
	return true, nil
}

func (r *chatREPL) selectModel(name string) error {
	known := r.app.Store.Snapshot().LastModels
	if len(known) > 0 && !slices.Contains(known, name) {
		fmt.Fprintf(r.errOut, "%s %s is not in the gateway's model list\n", WarningStyle.Render("[Warning]"), name)
	}
	if err := r.app.Store.SelectModel(name); err != nil {
		return err
	}
	fmt.Fprintln(r.out, RenderLabel("Model", name))
	return nil
}

func (r *chatREPL) listTemplates() {
	snap := r.app.Store.Snapshot()
	t := &table{headers: []string{"ID", "NAME"}, max: []int{36, 40}}
	for _, tpl := range snap.Templates {
		name := tpl.Name
		if _, ok := snap.TemplateOverride[tpl.ID]; ok {
			name += " (custom)"
		}
		t.add(tpl.ID, name)
	}
	t.write(r.out, func(row int) bool { return snap.Templates[row].ID == snap.SelectedTemplateID })
}

// template handles "/template ID", "/template add NAME TEXT" and
// "/template rm ID".
func (r *chatREPL) template(parser *ArgParser, rest string) error {
	store := r.app.Store
	switch parser.Subcommand() {
	case "":
		fmt.Fprintln(r.out, RenderLabel("Template", store.Snapshot().SelectedTemplate().Name))
		return nil
	case "add":
		name := parser.Positional(1)
		system := strings.Join(parser.PositionalFrom(2), " ")
		tpl, err := store.AddTemplate(name, system)
		if err != nil {
			return &UsageError{Message: err.Error(), Usage: "/template add NAME TEXT"}
		}
		fmt.Fprintf(r.out, "%s %s (%s)\n", SuccessStyle.Render("Added"), tpl.Name, tpl.ID)
		return nil
	case "rm", "delete":
		id := parser.Positional(1)
		if id == "" {
			return ErrMissingArgument("template", "/template rm ID")
		}
		if err := store.DeleteTemplate(id); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "%s %s\n", SuccessStyle.Render("Deleted"), id)
		return nil
	default:
		if err := store.SelectTemplate(rest); err != nil {
			return err
		}
		fmt.Fprintln(r.out, RenderLabel("Template", store.Snapshot().SelectedTemplate().Name))
		return nil
	}
}

// system shows the effective system prompt, overrides it for the selected
// template, or resets it with "-".
func (r *chatREPL) system(text string) error {
	store := r.app.Store
	snap := store.Snapshot()
	switch text {
	case "":
		fmt.Fprintln(r.out, prompt.EffectiveSystemPrompt(snap))
		return nil
	case "-":
		text = ""
	}
	if err := store.SetTemplateOverride(snap.SelectedTemplateID, text); err != nil {
		return err
	}
	if text == "" {
		fmt.Fprintln(r.out, SuccessStyle.Render("System prompt reset."))
	} else {
		fmt.Fprintln(r.out, SuccessStyle.Render("System prompt updated."))
	}
	return nil
}

func lastMessages(msgs []session.Message, n int) []session.Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
