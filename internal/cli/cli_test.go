// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/surveyor/internal/chat"
	"github.com/jeranaias/surveyor/internal/config"
	"github.com/jeranaias/surveyor/internal/ollama"
	"github.com/jeranaias/surveyor/internal/quota"
	"github.com/jeranaias/surveyor/internal/session"
	"github.com/jeranaias/surveyor/internal/storage"
)

// =============================================================================
// ARG PARSER TESTS (args.go)
// =============================================================================

func TestArgParser_BasicParsing(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantSub  string
		validate func(*testing.T, *ArgParser)
	}{
		{
			name:    "simple subcommand",
			args:    []string{"show"},
			wantSub: "show",
		},
		{
			name:    "subcommand with flag",
			args:    []string{"init", "--gateway", "http://gw/api"},
			wantSub: "init",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("gateway") != "http://gw/api" {
					t.Errorf("Flag(gateway) = %q, want %q", p.Flag("gateway"), "http://gw/api")
				}
			},
		},
		{
			name:    "flag with equals",
			args:    []string{"init", "--gateway=http://gw/api"},
			wantSub: "init",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("--gateway") != "http://gw/api" {
					t.Errorf("Flag(--gateway) = %q", p.Flag("--gateway"))
				}
			},
		},
		{
			name:    "boolean flag",
			args:    []string{"init", "--force"},
			wantSub: "init",
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("force") {
					t.Error("BoolFlag(force) should be true")
				}
			},
		},
		{
			name:    "explicit false",
			args:    []string{"init", "--force=false"},
			wantSub: "init",
			validate: func(t *testing.T, p *ArgParser) {
				if p.BoolFlag("force") {
					t.Error("BoolFlag(force) should be false")
				}
				if !p.HasFlag("force") {
					t.Error("HasFlag(force) should be true")
				}
			},
		},
		{
			name:    "stdin dash is positional",
			args:    []string{"-"},
			wantSub: "-",
		},
		{
			name:    "template add",
			args:    []string{"add", "terse", "Answer", "in", "one", "line"},
			wantSub: "add",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Positional(1) != "terse" {
					t.Errorf("Positional(1) = %q", p.Positional(1))
				}
				if got := strings.Join(p.PositionalFrom(2), " "); got != "Answer in one line" {
					t.Errorf("PositionalFrom(2) = %q", got)
				}
				if p.PositionalCount() != 6 {
					t.Errorf("PositionalCount() = %d, want 6", p.PositionalCount())
				}
			},
		},
		{
			name:    "empty",
			args:    []string{},
			wantSub: "",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Positional(0) != "" || len(p.PositionalFrom(1)) != 0 {
					t.Error("expected no positionals")
				}
				if p.FlagOrDefault("gateway", "x") != "x" {
					t.Error("FlagOrDefault should fall back")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewArgParser(tt.args)
			if p.Subcommand() != tt.wantSub {
				t.Errorf("Subcommand() = %q, want %q", p.Subcommand(), tt.wantSub)
			}
			if tt.validate != nil {
				tt.validate(t, p)
			}
		})
	}
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"on", "ON", "yes", "y", "1", "true"} {
		got, err := ParseBoolString(s)
		if err != nil || !got {
			t.Errorf("ParseBoolString(%q) = %v, %v; want true", s, got, err)
		}
	}
	for _, s := range []string{"off", "no", "n", "0", " false "} {
		got, err := ParseBoolString(s)
		if err != nil || got {
			t.Errorf("ParseBoolString(%q) = %v, %v; want false", s, got, err)
		}
	}
	if _, err := ParseBoolString("maybe"); err == nil {
		t.Error("ParseBoolString(maybe) should fail")
	}
}

func TestParseIntWithValidation(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"3", 3, false},
		{"", 0, true},
		{"abc", 0, true},
		{"0", 0, true},
		{"-2", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseIntWithValidation(tt.in, "n")
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseIntWithValidation(%q) = %d, %v", tt.in, got, err)
		}
	}
}

// =============================================================================
// COMMAND PARSING TESTS (cli.go)
// =============================================================================

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantCommand Command
		validate    func(*testing.T, Args)
	}{
		{
			name:        "no args starts chat",
			args:        nil,
			wantCommand: CmdChat,
		},
		{
			name:        "ask joins words",
			args:        []string{"ask", "What", "is", "Go?"},
			wantCommand: CmdAsk,
			validate: func(t *testing.T, a Args) {
				assert.Equal(t, "What is Go?", a.Query)
			},
		},
		{
			name:        "global flags anywhere",
			args:        []string{"--json", "ask", "--model", "qwen2.5:14b", "-q", "Hello"},
			wantCommand: CmdAsk,
			validate: func(t *testing.T, a Args) {
				assert.True(t, a.JSON)
				assert.True(t, a.Quiet)
				assert.Equal(t, "qwen2.5:14b", a.Model)
				assert.Equal(t, "Hello", a.Query)
			},
		},
		{
			name:        "equals form",
			args:        []string{"--config=/tmp/s.toml", "--model=llama3", "--ephemeral", "-v"},
			wantCommand: CmdChat,
			validate: func(t *testing.T, a Args) {
				assert.Equal(t, "/tmp/s.toml", a.ConfigPath)
				assert.Equal(t, "llama3", a.Model)
				assert.True(t, a.Ephemeral)
				assert.True(t, a.Verbose)
			},
		},
		{
			name:        "sessions subcommand",
			args:        []string{"sessions", "SWITCH", "2"},
			wantCommand: CmdSessions,
			validate: func(t *testing.T, a Args) {
				assert.Equal(t, "switch", a.Subcommand)
				assert.Equal(t, []string{"SWITCH", "2"}, a.Raw)
			},
		},
		{
			name:        "session alias",
			args:        []string{"session"},
			wantCommand: CmdSessions,
		},
		{
			name:        "config path",
			args:        []string{"config", "path"},
			wantCommand: CmdConfig,
			validate: func(t *testing.T, a Args) {
				assert.Equal(t, "path", a.Subcommand)
			},
		},
		{
			name:        "login token",
			args:        []string{"login", "abc"},
			wantCommand: CmdLogin,
			validate: func(t *testing.T, a Args) {
				assert.Equal(t, []string{"abc"}, a.Raw)
			},
		},
		{name: "logout", args: []string{"logout"}, wantCommand: CmdLogout},
		{name: "models", args: []string{"models"}, wantCommand: CmdModels},
		{name: "quota", args: []string{"quota"}, wantCommand: CmdQuota},
		{name: "version flag", args: []string{"--version"}, wantCommand: CmdVersion},
		{name: "help flag", args: []string{"-h"}, wantCommand: CmdHelp},
		{
			name:        "unknown keeps name",
			args:        []string{"sesions", "list"},
			wantCommand: CmdUnknown,
			validate: func(t *testing.T, a Args) {
				assert.Equal(t, []string{"sesions", "list"}, a.Raw)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args := Parse(tt.args)
			assert.Equal(t, tt.wantCommand, cmd)
			if tt.validate != nil {
				tt.validate(t, args)
			}
		})
	}
}

func TestSuggest(t *testing.T) {
	assert.Equal(t, "sessions", SuggestCommand("sesions"))
	assert.Equal(t, "models", SuggestCommand("modles"))
	assert.Equal(t, "", SuggestCommand("x"))
	assert.Equal(t, "", SuggestCommand("completelydifferent"))

	assert.Equal(t, "/stream", SuggestSlashCommand("/strem"))
	assert.Equal(t, "/sessions", SuggestSlashCommand("/sesions"))
}

// =============================================================================
// ERROR TESTS (errors.go)
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", &UsageError{Message: "bad"}, ExitUsageError},
		{"missing arg", ErrMissingArgument("prompt", "surveyor ask <prompt>"), ExitUsageError},
		{"config", config.ValidateErrors{{Field: "gateway.base_url", Message: "empty"}}, ExitConfigError},
		{"no model", chat.ErrNoModel, ExitConfigError},
		{"auth", &ollama.AuthError{}, ExitAuthError},
		{"rate limited", &ollama.RateLimitError{}, ExitRateLimited},
		{"session", fmt.Errorf("%w: x", session.ErrSessionNotFound), ExitNotFoundError},
		{"reported keeps cause", reportedError{&ollama.AuthError{}}, ExitAuthError},
		{"generic", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestDisplayError_JSON(t *testing.T) {
	var buf bytes.Buffer
	DisplayError(&buf, &UsageError{Message: "unknown command: x"}, true)

	var resp JSONResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Contains(t, *resp.Error, "unknown command: x")
	assert.Equal(t, "usage_error", resp.ErrorType)
}

// =============================================================================
// PRINTER TESTS (printer.go)
// =============================================================================

func TestPrinter_StreamsRawDeltas(t *testing.T) {
	var out, errOut bytes.Buffer
	p := NewPrinter(PrinterOptions{Out: &out, Err: &errOut})

	p.OnStreamChunk("s1", "He", "He")
	p.OnStreamChunk("s1", "llo", "Hello")
	p.OnCompleted(chat.Completion{
		Message:          session.Message{Role: session.RoleAssistant, Content: "Hello", Model: "llama3"},
		Streamed:         true,
		Elapsed:          1500 * time.Millisecond,
		CompletionTokens: 4,
		TokensPerSecond:  2,
	})

	assert.Equal(t, "Hello\n", out.String())
	assert.Contains(t, errOut.String(), "llama3")
	assert.Contains(t, errOut.String(), "4 tokens")
	assert.Contains(t, errOut.String(), "2.0 tok/s")
	require.NotNil(t, p.LastCompletion())
	assert.Equal(t, "Hello", p.LastCompletion().Message.Content)
}

func TestPrinter_NonStreamedAndPlaceholder(t *testing.T) {
	var out bytes.Buffer
	p := NewPrinter(PrinterOptions{Out: &out, Quiet: true})

	p.OnCompleted(chat.Completion{Message: session.Message{Content: "Answer"}})
	p.OnCompleted(chat.Completion{Message: session.Message{Content: chat.PlaceholderEmpty}, Placeholder: true})

	assert.Equal(t, "Answer\n"+chat.PlaceholderEmpty+"\n", out.String())
}

func TestPrinter_Notices(t *testing.T) {
	var out, errOut bytes.Buffer
	p := NewPrinter(PrinterOptions{Out: &out, Err: &errOut})

	p.OnStreamChunk("s1", "partial", "partial")
	p.OnNotice(chat.Notice{Kind: chat.NoticeRateLimit, Message: "Rate limit exceeded."})
	p.OnNotice(chat.Notice{Kind: chat.NoticeHTTP, Message: "500 model crashed"})
	p.OnLoginRequired()

	assert.Equal(t, "partial\n", out.String())
	assert.Contains(t, errOut.String(), "[Rate limit] Rate limit exceeded.")
	assert.Contains(t, errOut.String(), "[Error] 500 model crashed")
	assert.Contains(t, errOut.String(), "surveyor login")
	assert.Equal(t, "500 model crashed", p.LastNotice().Message)
}

func TestPrinter_SilentAndQuota(t *testing.T) {
	var out, errOut bytes.Buffer
	p := NewPrinter(PrinterOptions{Out: &out, Err: &errOut, Silent: true})

	p.OnStreamChunk("s1", "x", "x")
	p.OnCompleted(chat.Completion{Message: session.Message{Content: "x"}})
	p.OnNotice(chat.Notice{Message: "boom"})
	p.OnQuota(quota.Snapshot{Status: quota.StatusKnown, Remaining: 3, Limit: 10})

	assert.Empty(t, out.String())
	assert.Empty(t, errOut.String())
	assert.Equal(t, 3, p.LastQuota().Remaining)
}

func TestPrinter_ThinkingIndicator(t *testing.T) {
	var errOut bytes.Buffer
	p := NewPrinter(PrinterOptions{Err: &errOut, Interactive: true})

	p.OnThinking(240*time.Millisecond, true)
	assert.Contains(t, errOut.String(), "thinking 0.2s")

	errOut.Reset()
	p.OnThinking(300*time.Millisecond, false)
	assert.Equal(t, "\r\x1b[K", errOut.String())

	errOut.Reset()
	p.OnThinking(0, false)
	assert.Empty(t, errOut.String(), "indicator cleared only once")
}

// =============================================================================
// TABLE AND SESSION HELPERS
// =============================================================================

func TestTable_WriteMarksRows(t *testing.T) {
	tbl := &table{headers: []string{"NAME", "SIZE"}}
	tbl.add("llama3", "4.7 GiB")
	tbl.add("mistral-large", "-")

	var buf bytes.Buffer
	tbl.write(&buf, func(row int) bool { return row == 1 })

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "NAME")
	assert.True(t, strings.HasPrefix(lines[1], "  llama3"))
	assert.Contains(t, lines[2], "* ")
	assert.Contains(t, lines[2], "mistral-large")
}

func newTestStore(t *testing.T) *session.Store {
	t.Helper()
	store, err := session.Open(storage.NewMemoryBlobStore(), session.Options{Key: "test"})
	require.NoError(t, err)
	return store
}

func TestResolveSession(t *testing.T) {
	store := newTestStore(t)
	first, err := store.ActiveSession()
	require.NoError(t, err)
	second, err := store.NewSession()
	require.NoError(t, err)

	sessions := store.Sessions()
	require.Len(t, sessions, 2)

	byIndex, err := resolveSession(store, "2")
	require.NoError(t, err)
	assert.Equal(t, sessions[1].ID, byIndex.ID)

	byID, err := resolveSession(store, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, byID.ID)

	byPrefix, err := resolveSession(store, second.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, second.ID, byPrefix.ID)

	active, err := resolveSession(store, "")
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	_, err = resolveSession(store, "nope")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

// =============================================================================
// SLASH COMMAND TESTS (slash.go)
// =============================================================================

func newTestREPL(t *testing.T) (*chatREPL, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := &App{Config: config.Default(), Store: newTestStore(t)}
	return newChatREPL(app, nil, &out, &errOut), &out, &errOut
}

func TestSlash_Settings(t *testing.T) {
	r, out, _ := newTestREPL(t)

	for _, cmd := range []string{"/stream off", "/ctx 100000", "/temp 0.2", "/history 99"} {
		keepGoing, err := r.handleSlash(cmd)
		require.NoError(t, err, cmd)
		assert.True(t, keepGoing)
	}

	snap := r.app.Store.Snapshot()
	assert.False(t, snap.Stream)
	assert.Equal(t, 32768, snap.NumCtx)
	assert.InDelta(t, 0.2, snap.Temperature, 1e-9)
	assert.Equal(t, 50, snap.HistoryLimit)
	assert.Contains(t, out.String(), "32768")

	_, err := r.handleSlash("/stream sometimes")
	var usage *UsageError
	assert.ErrorAs(t, err, &usage)
}

func TestSlash_TemplatesAndSystem(t *testing.T) {
	r, out, _ := newTestREPL(t)

	_, err := r.handleSlash("/template add terse Reply in one line.")
	require.NoError(t, err)
	snap := r.app.Store.Snapshot()
	assert.Equal(t, "terse", snap.SelectedTemplate().Name)
	assert.Equal(t, "Reply in one line.", snap.SelectedTemplate().System)

	_, err = r.handleSlash("/system Be formal.")
	require.NoError(t, err)
	out.Reset()
	_, err = r.handleSlash("/system")
	require.NoError(t, err)
	assert.Equal(t, "Be formal.\n", out.String())

	_, err = r.handleSlash("/system -")
	require.NoError(t, err)
	out.Reset()
	_, err = r.handleSlash("/system")
	require.NoError(t, err)
	assert.Equal(t, "Reply in one line.\n", out.String())

	_, err = r.handleSlash("/template code_assistant")
	require.NoError(t, err)
	assert.Equal(t, "code_assistant", r.app.Store.Snapshot().SelectedTemplateID)

	_, err = r.handleSlash("/template missing")
	assert.ErrorIs(t, err, session.ErrTemplateNotFound)
}

func TestSlash_Sessions(t *testing.T) {
	r, out, _ := newTestREPL(t)
	first, err := r.app.Store.ActiveSession()
	require.NoError(t, err)

	_, err = r.handleSlash("/new")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, r.app.Store.Snapshot().ActiveSessionID)

	_, err = r.handleSlash("/switch " + first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, r.app.Store.Snapshot().ActiveSessionID)

	out.Reset()
	_, err = r.handleSlash("/sessions")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "NAME")

	_, err = r.handleSlash("/switch")
	assert.Error(t, err)
}

func TestSlash_ModelAndQuit(t *testing.T) {
	r, _, errOut := newTestREPL(t)
	_, err := r.app.Store.SetModels([]string{"llama3"})
	require.NoError(t, err)

	_, err = r.handleSlash("/model mistral")
	require.NoError(t, err)
	assert.Equal(t, "mistral", r.app.Store.Snapshot().SelectedModel)
	assert.Contains(t, errOut.String(), "not in the gateway's model list")

	keepGoing, err := r.handleSlash("/quit")
	require.NoError(t, err)
	assert.False(t, keepGoing)
}

func TestSlash_UnknownSuggests(t *testing.T) {
	r, _, _ := newTestREPL(t)
	keepGoing, err := r.handleSlash("/strem on")
	assert.True(t, keepGoing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/stream")
}

func TestSlashRunner_CapturesOutputAndErrors(t *testing.T) {
	app := &App{Config: config.Default(), Store: newTestStore(t)}
	run := slashRunner(app)

	out, quit := run("/stream off")
	assert.False(t, quit)
	assert.Contains(t, out, "off")
	assert.False(t, app.Store.Snapshot().Stream)

	out, quit = run("/strem on")
	assert.False(t, quit)
	assert.Contains(t, out, "/stream")

	_, quit = run("/quit")
	assert.True(t, quit)
}

func TestUseChatScreen_NotForJSON(t *testing.T) {
	assert.False(t, useChatScreen(Args{JSON: true}))
}

// =============================================================================
// DISPATCH TESTS
// =============================================================================

func TestDispatch_VersionJSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, dispatch(CmdVersion, Args{JSON: true}, nil, &out, &out))

	var resp struct {
		Success bool        `json:"success"`
		Data    VersionData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, Version, resp.Data.Version)
}

func TestDispatch_UnknownCommand(t *testing.T) {
	var out bytes.Buffer
	err := dispatch(CmdUnknown, Args{Raw: []string{"qouta"}}, nil, &out, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `did you mean "quota"`)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

// fakeGateway serves the chat, tags and quota endpoints.
func fakeGateway(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req ollama.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !req.Stream {
			w.Header().Set("X-RateLimit-Remaining", "9")
			w.Header().Set("X-RateLimit-Limit", "10")
			_, _ = fmt.Fprintf(w, `{"model":%q,"message":{"role":"assistant","content":"Hi there"},"done":true,"eval_count":2,"eval_duration":1000000000}`, req.Model)
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = fmt.Fprintf(w, "{\"model\":%q,\"message\":{\"role\":\"assistant\",\"content\":\"Hi \"},\"done\":false}\n", req.Model)
		_, _ = fmt.Fprintf(w, "{\"model\":%q,\"message\":{\"role\":\"assistant\",\"content\":\"there\"},\"done\":false}\n", req.Model)
		_, _ = fmt.Fprintf(w, "{\"model\":%q,\"done\":true,\"eval_count\":2,\"eval_duration\":1000000000}\n", req.Model)
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"models":[{"name":"llama3","size":4700000000},{"name":"mistral"}]}`)
	})
	mux.HandleFunc("/api/user/rate-limit", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"remaining":8,"limit":10,"reset_at":1700000000}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func gatewayEnv(t *testing.T) {
	t.Helper()
	srv := fakeGateway(t)
	t.Setenv("SURVEYOR_HOME", t.TempDir())
	t.Setenv("SURVEYOR_GATEWAY_URL", srv.URL+"/api")
	t.Setenv("SURVEYOR_TOKEN", "")
}

func TestDispatch_AskJSON(t *testing.T) {
	gatewayEnv(t)

	var out, errOut bytes.Buffer
	args := Args{JSON: true, Ephemeral: true, Model: "llama3", Query: "hello"}
	require.NoError(t, dispatch(CmdAsk, args, strings.NewReader(""), &out, &errOut))

	var resp struct {
		Success bool    `json:"success"`
		Data    AskData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Hi there", resp.Data.Content)
	assert.Equal(t, "llama3", resp.Data.Model)
	assert.True(t, resp.Data.Streamed)
	assert.Equal(t, 2, resp.Data.CompletionTokens)
}

func TestDispatch_AskFromStdin(t *testing.T) {
	gatewayEnv(t)

	var out, errOut bytes.Buffer
	args := Args{Ephemeral: true, Model: "llama3", Query: "-", Quiet: true}
	require.NoError(t, dispatch(CmdAsk, args, strings.NewReader("from stdin\n"), &out, &errOut))
	assert.Equal(t, "Hi there\n", out.String())
}

func TestDispatch_ModelsJSON(t *testing.T) {
	gatewayEnv(t)

	var out bytes.Buffer
	require.NoError(t, dispatch(CmdModels, Args{JSON: true, Ephemeral: true}, nil, &out, &out))

	var resp struct {
		Data []ModelData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "llama3", resp.Data[0].Name)
	assert.True(t, resp.Data[0].Selected, "first model is selected when none was")
	assert.False(t, resp.Data[1].Selected)
}

func TestDispatch_QuotaJSON(t *testing.T) {
	gatewayEnv(t)

	var out bytes.Buffer
	require.NoError(t, dispatch(CmdQuota, Args{JSON: true, Ephemeral: true}, nil, &out, &out))

	var resp struct {
		Data QuotaData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "known", resp.Data.Status)
	assert.Equal(t, 8, resp.Data.Remaining)
	assert.Equal(t, 10, resp.Data.Limit)
	require.NotNil(t, resp.Data.ResetAt)
	assert.Equal(t, int64(1700000000), resp.Data.ResetAt.Unix())
}

func TestDispatch_LoginLogout(t *testing.T) {
	t.Setenv("SURVEYOR_HOME", t.TempDir())
	t.Setenv("SURVEYOR_TOKEN", "")

	var out bytes.Buffer
	require.NoError(t, dispatch(CmdLogin, Args{Raw: []string{"secret-token"}, Quiet: true}, nil, &out, &out))

	provider, err := authProvider(Args{Quiet: true})
	require.NoError(t, err)
	assert.Equal(t, "secret-token", provider.Token())

	require.NoError(t, dispatch(CmdLogout, Args{Quiet: true}, nil, &out, &out))
	assert.False(t, provider.LoggedIn())
}

func TestDispatch_ConfigInitAndShow(t *testing.T) {
	t.Setenv("SURVEYOR_HOME", t.TempDir())
	t.Setenv("SURVEYOR_TOKEN", "")

	var out bytes.Buffer
	initArgs := Args{Subcommand: "init", Raw: []string{"init", "--gateway", "http://gw.example/api"}, Quiet: true}
	require.NoError(t, dispatch(CmdConfig, initArgs, nil, &out, &out))

	err := dispatch(CmdConfig, initArgs, nil, &out, &out)
	var usage *UsageError
	require.ErrorAs(t, err, &usage, "init refuses to overwrite without --force")

	out.Reset()
	require.NoError(t, dispatch(CmdConfig, Args{Subcommand: "show"}, nil, &out, &out))
	assert.Contains(t, out.String(), "http://gw.example/api")
}

func TestSlash_Export(t *testing.T) {
	r, out, _ := newTestREPL(t)
	_, err := r.app.Store.AppendToActive(session.Message{Role: session.RoleUser, Content: "hello", TS: time.Now()})
	require.NoError(t, err)

	dir := t.TempDir()
	_, err = r.handleSlash("/export json --out " + dir)
	require.NoError(t, err)
	assert.Contains(t, out.String(), dir)

	matches, err := filepath.Glob(filepath.Join(dir, "conversation_*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	_, err = r.handleSlash("/export pdf --out " + dir)
	var usage *UsageError
	assert.ErrorAs(t, err, &usage)
}

func TestForceColorsEnabled(t *testing.T) {
	t.Cleanup(func() { ForceColorsEnabled(false) })

	ForceColorsEnabled(true)
	assert.True(t, ColorsEnabled())

	ForceColorsEnabled(false)
	assert.False(t, ColorsEnabled())
	assert.Equal(t, termenv.Ascii, GetColorProfile())
}
