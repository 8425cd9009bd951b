// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/surveyor/internal/chat"
	"github.com/jeranaias/surveyor/internal/ollama"
	"github.com/jeranaias/surveyor/internal/quota"
	"github.com/jeranaias/surveyor/internal/session"
)

// Engine is the part of chat.Engine the screen drives.
type Engine interface {
	Ask(ctx context.Context, prompt string) error
	Cancel() bool
	Busy() bool
	RefreshModels(ctx context.Context) ([]ollama.ModelInfo, error)
}

var _ Engine = (*chat.Engine)(nil)

// CommandFunc runs one slash command and returns its printed output. quit
// is true when the command ends the chat.
type CommandFunc func(input string) (output string, quit bool)

// Options configures a Model.
type Options struct {
	Engine Engine
	Store  *session.Store

	// Commands handles input starting with "/". Nil rejects every command.
	Commands CommandFunc

	// LoggedIn reports the current login state. It is checked at start and
	// after every command.
	LoggedIn func() bool

	Gateway string
	Version string
	Quota   quota.Snapshot

	// RequestTimeout bounds the startup model refresh. Zero means none.
	RequestTimeout time.Duration
}

// Model is the chat screen.
type Model struct {
	engine   Engine
	store    *session.Store
	commands CommandFunc
	loggedIn func() bool
	timeout  time.Duration

	keys     KeyMap
	help     help.Model
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	gateway string
	version string
	width   int
	height  int
	ready   bool

	// Transcript of the active session, as persisted.
	sessionID string
	title     string
	messages  []session.Message

	// In-flight request.
	busy          bool
	status        string
	phase         chat.Phase
	streaming     string
	streamSession string
	thinking      time.Duration
	thinkingShown bool
	last          *chat.Completion

	notice        *chat.Notice
	output        string
	quota         quota.Snapshot
	isLoggedIn    bool
	loginRequired bool
	turns         int

	showSessions bool
	sessions     []session.Session
	cursor       int
}

// New creates the chat screen.
func New(opts Options) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask something, or /help"
	ti.CharLimit = 16384
	ti.Focus()

	vp := viewport.New(80, 20)
	vp.SetContent("")

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}

	m := Model{
		engine:   opts.Engine,
		store:    opts.Store,
		commands: opts.Commands,
		loggedIn: opts.LoggedIn,
		timeout:  opts.RequestTimeout,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		viewport: vp,
		input:    ti,
		spinner:  sp,
		gateway:  opts.Gateway,
		version:  opts.Version,
		quota:    opts.Quota,
		status:   "ready",
	}
	m.checkLogin()
	m.reload()
	return m
}

// Init starts the cursor blink and refreshes the model list.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.refreshModels())
}

// Turns returns how many replies completed during this run.
func (m Model) Turns() int {
	return m.turns
}

// =============================================================================
// COMMANDS
// =============================================================================

func (m Model) ask(text string) tea.Cmd {
	engine := m.engine
	return func() tea.Msg {
		return askDoneMsg{err: engine.Ask(context.Background(), text)}
	}
}

func (m Model) runCommand(input string) tea.Cmd {
	commands := m.commands
	return func() tea.Msg {
		if commands == nil {
			return commandDoneMsg{input: input, output: "commands are not available"}
		}
		out, quit := commands(input)
		return commandDoneMsg{input: input, output: out, quit: quit}
	}
}

func (m Model) refreshModels() tea.Cmd {
	engine, timeout := m.engine, m.timeout
	return func() tea.Msg {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		_, err := engine.RefreshModels(ctx)
		return modelsLoadedMsg{err: err}
	}
}

// =============================================================================
// STATE
// =============================================================================

// reload reads the active session from the store.
func (m *Model) reload() {
	if m.store == nil {
		return
	}
	sess, err := m.store.ActiveSession()
	if err != nil && sess.ID == "" {
		return
	}
	if sess.ID != m.sessionID {
		m.streaming = ""
	}
	m.sessionID = sess.ID
	m.title = sess.Name
	m.messages = sess.Messages
	m.updateViewport()
}

func (m *Model) checkLogin() {
	if m.loggedIn == nil {
		return
	}
	m.isLoggedIn = m.loggedIn()
	if m.isLoggedIn {
		m.loginRequired = false
	}
}

func (m Model) selectedModel() string {
	if m.store == nil {
		return ""
	}
	return m.store.Snapshot().SelectedModel
}
