// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types, display, and exit codes for CLI commands.
//
// Command handlers return errors; Run decides how to display them and which
// exit code to use.

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/surveyor/internal/chat"
	"github.com/jeranaias/surveyor/internal/config"
	"github.com/jeranaias/surveyor/internal/ollama"
	"github.com/jeranaias/surveyor/internal/session"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitAuthError     = 4
	ExitNetworkError  = 5
	ExitRateLimited   = 6
	ExitNotFoundError = 7
	ExitTimeoutError  = 8
	// ExitInterrupted follows the shell convention for SIGINT.
	ExitInterrupted = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError is a command failure with context.
type CommandError struct {
	Command string
	Action  string
	Reason  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// UsageError reports a malformed command line.
type UsageError struct {
	Message string
	Usage   string
}

func (e *UsageError) Error() string {
	if e.Usage != "" {
		return e.Message + "\nUsage: " + e.Usage
	}
	return e.Message
}

// ErrMissingArgument builds a UsageError for a required argument.
func ErrMissingArgument(argName, usage string) error {
	return &UsageError{Message: "missing required argument: " + argName, Usage: usage}
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError writes err to w, as JSON in JSON mode.
func DisplayError(w io.Writer, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		resp := NewJSONErrorResponse("", err)
		resp.ErrorType = errorType(err)
		_ = resp.Write(w)
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[Error]"), err.Error())
}

func errorType(err error) string {
	var (
		cmdErr   *CommandError
		usageErr *UsageError
		authErr  *ollama.AuthError
		rlErr    *ollama.RateLimitError
		httpErr  *ollama.HTTPError
		cliErr   *ollama.ClientError
	)
	switch {
	case errors.As(err, &usageErr):
		return "usage_error"
	case errors.As(err, &authErr):
		return "auth_error"
	case errors.As(err, &rlErr):
		return "rate_limit_error"
	case errors.As(err, &httpErr):
		return "http_error"
	case errors.As(err, &cliErr):
		return cliErr.Type.String() + "_error"
	case errors.As(err, &cmdErr):
		return "command_error"
	default:
		return "generic_error"
	}
}

// GetExitCode maps an error to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		usageErr *UsageError
		ttyErr   *TTYRequiredError
		cfgErrs  config.ValidateErrors
		cfgErr   config.ValidationError
	)
	switch {
	case errors.As(err, &usageErr), errors.As(err, &ttyErr):
		return ExitUsageError
	case errors.As(err, &cfgErrs), errors.As(err, &cfgErr), errors.Is(err, chat.ErrNoModel):
		return ExitConfigError
	case errors.Is(err, ollama.ErrUnauthorized):
		return ExitAuthError
	case errors.Is(err, ollama.ErrRateLimited):
		return ExitRateLimited
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrTemplateNotFound):
		return ExitNotFoundError
	case ollama.IsTimeout(err):
		return ExitTimeoutError
	case ollama.IsCanceled(err):
		return ExitInterrupted
	}

	var cliErr *ollama.ClientError
	if errors.As(err, &cliErr) && cliErr.Type == ollama.ErrTypeConnection {
		return ExitNetworkError
	}
	return ExitGeneralError
}
