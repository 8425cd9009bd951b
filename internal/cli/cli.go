// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command parsing and dispatch for surveyor.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Version information (overridden at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command is a top-level CLI command.
type Command int

const (
	CmdChat Command = iota
	CmdAsk
	CmdSessions
	CmdModels
	CmdQuota
	CmdConfig
	CmdLogin
	CmdLogout
	CmdVersion
	CmdHelp
	CmdUnknown
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet      bool
	Verbose    bool
	JSON       bool
	Ephemeral  bool // keep state in memory for this run only
	Model      string
	ConfigPath string

	// Command-specific
	Query      string
	Subcommand string

	// Raw holds the arguments after the command name, global flags removed.
	Raw []string

	// screen is set while the full-screen chat owns the terminal.
	screen bool
}

const usageText = `surveyor - streaming chat client for an LLM inference gateway

Usage:
  surveyor [chat]                    Interactive chat (default)
  surveyor ask <prompt>              Ask a single question ("-" reads stdin)
  surveyor sessions [subcommand]     Manage saved conversations
      list                           List conversations (default)
      show [n|id]                    Print a conversation
      switch <n|id>                  Make a conversation active
      new                            Start a new conversation
      clear                          Clear the active conversation
      export [n|id] [--format md|json] [--out DIR] [--no-errors]
  surveyor models                    List gateway models and select a default
  surveyor quota                     Show remaining request quota
  surveyor config [show|path|init]   Show, locate, or create the config file
  surveyor login [token]             Store a bearer token
  surveyor logout                    Remove the stored token
  surveyor version                   Show version information

Global Flags:
  --model NAME      Select a model (persists as the default)
  --config PATH     Use a specific config file (.toml or .json)
  --ephemeral       Keep conversations in memory for this run only
  --json            Machine-readable output
  -q, --quiet       Minimal output
  -v, --verbose     Debug logging and extra stats

Chat Commands:
  /help                  Show chat commands
  /new, /clear           Start a new conversation or clear this one
  /show, /export [FMT]   Print or save this conversation
  /sessions, /switch N   List or switch conversations
  /models, /model NAME   List or select models
  /templates, /template  List or select prompt templates
  /system [TEXT|-]       Show, override, or reset the system prompt
  /stream on|off         Toggle streaming
  /ctx N, /temp F        Set context window and temperature
  /history N             Number of past messages sent with each prompt
  /quota                 Refresh the quota display
  /quit                  Exit (Ctrl+D also exits)
  Ctrl+C, Esc            Cancel the current request

  On a terminal, chat opens full screen: Tab lists conversations,
  Ctrl+N starts a new one, Ctrl+Q quits. Piped or --json sessions
  use the line-mode prompt.

Environment:
  SURVEYOR_HOME          Config directory (default ~/.surveyor)
  SURVEYOR_GATEWAY_URL   Gateway API root
  SURVEYOR_TOKEN         Bearer token
  NO_COLOR               Disable colors

Version: %s
`

// PrintUsage writes the help text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// Parse parses argv (without the program name).
func Parse(argv []string) (Command, Args) {
	remaining, args := parseGlobalFlags(argv)
	if len(remaining) == 0 {
		return CmdChat, args
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	args.Raw = remaining

	switch cmd {
	case "chat":
		return CmdChat, args
	case "ask":
		args.Query = strings.Join(remaining, " ")
		return CmdAsk, args
	case "sessions", "session":
		if len(remaining) > 0 {
			args.Subcommand = strings.ToLower(remaining[0])
		}
		return CmdSessions, args
	case "models", "model":
		return CmdModels, args
	case "quota":
		return CmdQuota, args
	case "config":
		if len(remaining) > 0 {
			args.Subcommand = strings.ToLower(remaining[0])
		}
		return CmdConfig, args
	case "login":
		return CmdLogin, args
	case "logout":
		return CmdLogout, args
	case "version", "--version":
		return CmdVersion, args
	case "help", "-h", "--help":
		return CmdHelp, args
	default:
		args.Raw = append([]string{cmd}, remaining...)
		return CmdUnknown, args
	}
}

// parseGlobalFlags extracts global flags from args and returns the rest.
func parseGlobalFlags(argv []string) ([]string, Args) {
	var remaining []string
	var args Args

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch arg {
		case "-q", "--quiet":
			args.Quiet = true
		case "-v", "--verbose":
			args.Verbose = true
		case "--json":
			args.JSON = true
		case "--ephemeral":
			args.Ephemeral = true
		case "--model", "-m":
			if i+1 < len(argv) {
				i++
				args.Model = argv[i]
			}
		case "--config":
			if i+1 < len(argv) {
				i++
				args.ConfigPath = argv[i]
			}
		default:
			switch {
			case strings.HasPrefix(arg, "--model="):
				args.Model = strings.TrimPrefix(arg, "--model=")
			case strings.HasPrefix(arg, "--config="):
				args.ConfigPath = strings.TrimPrefix(arg, "--config=")
			default:
				remaining = append(remaining, arg)
			}
		}
	}
	return remaining, args
}

// =============================================================================
// DISPATCH
// =============================================================================

// Run executes cmd and returns the process exit code.
func Run(cmd Command, args Args) int {
	err := dispatch(cmd, args, os.Stdin, os.Stdout, os.Stderr)
	if err == nil {
		return ExitSuccess
	}
	if errors.Is(err, errReported) {
		return GetExitCode(err)
	}
	if args.JSON {
		DisplayError(os.Stdout, err, true)
	} else {
		DisplayError(os.Stderr, err, false)
	}
	return GetExitCode(err)
}

// errReported marks errors the observer has already shown to the user.
var errReported = errors.New("reported")

type reportedError struct{ err error }

func (e reportedError) Error() string { return e.err.Error() }

func (e reportedError) Unwrap() []error { return []error{e.err, errReported} }

func dispatch(cmd Command, args Args, in io.Reader, out, errOut io.Writer) error {
	switch cmd {
	case CmdHelp:
		PrintUsage(out)
		return nil
	case CmdVersion:
		return runVersion(args, out)
	case CmdUnknown:
		name := ""
		if len(args.Raw) > 0 {
			name = args.Raw[0]
		}
		msg := fmt.Sprintf("unknown command: %s", name)
		if s := SuggestCommand(name); s != "" {
			msg += fmt.Sprintf(" (did you mean %q?)", s)
		}
		return &UsageError{Message: msg, Usage: "surveyor help"}
	case CmdConfig:
		return runConfig(args, out)
	case CmdLogin:
		return runLogin(args, in, out)
	case CmdLogout:
		return runLogout(args, out)
	case CmdChat:
		if useChatScreen(args) {
			return runChatScreen(args)
		}
	}

	printer := NewPrinter(PrinterOptions{
		Out:         out,
		Err:         errOut,
		Markdown:    !args.JSON && IsStdoutTTY(),
		Interactive: !args.JSON && IsStderrTTY(),
		Quiet:       args.Quiet,
		Verbose:     args.Verbose,
		Silent:      args.JSON,
	})
	app, err := NewApp(args, printer)
	if err != nil {
		return err
	}
	defer app.Close()
	printer.SetMarkdown(printer.opts.Markdown && app.Config.UI.Markdown, app.Config.UI.WordWrap)

	switch cmd {
	case CmdAsk:
		return runAsk(app, printer, args, in, out)
	case CmdSessions:
		return runSessions(app, args, out)
	case CmdModels:
		return runModels(app, args, out)
	case CmdQuota:
		return runQuota(app, args, out)
	default:
		return runChat(app, printer, args)
	}
}
