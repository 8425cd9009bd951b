// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// auth_cmd.go - Bearer token login and logout.
//
// Usage: surveyor login [token|-]
//        surveyor logout
package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/surveyor/internal/auth"
)

func authProvider(args Args) (*auth.Provider, error) {
	cfg, err := loadConfig(args)
	if err != nil {
		return nil, err
	}
	return auth.NewProvider(cfg.Auth.Token, auth.NewTokenFile(cfg.Auth.TokenFile)), nil
}

func runLogin(args Args, in io.Reader, out io.Writer) error {
	provider, err := authProvider(args)
	if err != nil {
		return err
	}

	token := strings.TrimSpace(strings.Join(args.Raw, " "))
	switch {
	case token == "-":
		data, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("failed to read token from stdin: %w", err)
		}
		token = strings.TrimSpace(string(data))
	case token == "":
		if err := RequiresTTY("prompt for a token"); err != nil {
			return &UsageError{Message: err.Error(), Usage: "surveyor login <token>"}
		}
		line := liner.NewLiner()
		token, err = line.PasswordPrompt("Token: ")
		line.Close()
		if err != nil {
			return fmt.Errorf("failed to read token: %w", err)
		}
	}
	if strings.TrimSpace(token) == "" {
		return ErrMissingArgument("token", "surveyor login <token>")
	}

	if err := provider.Login(token); err != nil {
		if errors.Is(err, auth.ErrEmptyToken) {
			return ErrMissingArgument("token", "surveyor login <token>")
		}
		return &CommandError{Command: "login", Action: "save token", Reason: "token file not written", Err: err}
	}

	if args.JSON {
		return NewJSONResponse("login", map[string]string{"source": provider.Source()}).Write(out)
	}
	if !args.Quiet {
		fmt.Fprintf(out, "%s token stored in %s\n", SuccessStyle.Render("Logged in:"), provider.Source())
	}
	return nil
}

func runLogout(args Args, out io.Writer) error {
	provider, err := authProvider(args)
	if err != nil {
		return err
	}
	if err := provider.Logout(); err != nil {
		return &CommandError{Command: "logout", Action: "remove token", Err: err}
	}
	if args.JSON {
		return NewJSONResponse("logout", map[string]bool{"logged_in": provider.LoggedIn()}).Write(out)
	}
	if args.Quiet {
		return nil
	}
	if provider.LoggedIn() {
		fmt.Fprintf(out, "%s a token is still set in %s\n", WarningStyle.Render("Logged out of the token file;"), provider.Source())
		return nil
	}
	fmt.Fprintln(out, SuccessStyle.Render("Logged out."))
	return nil
}
