// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/surveyor/internal/chat"
	"github.com/jeranaias/surveyor/internal/session"
)

// Layout rows outside the viewport: header, notice, input, status, help.
const chromeHeight = 5

// Update handles one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case StatusMsg:
		wasBusy := m.busy
		m.busy = msg.Busy
		m.status = msg.Text
		if m.busy && !wasBusy {
			return m, m.spinner.Tick
		}
		return m, nil

	case PhaseMsg:
		m.phase = msg.Phase
		switch msg.Phase {
		case chat.PhaseSending:
			m.streaming = ""
			m.thinking = 0
			m.thinkingShown = false
		case chat.PhaseFailed, chat.PhaseCancelled:
			m.streaming = ""
			m.thinkingShown = false
			m.updateViewport()
		}
		return m, nil

	case MessageAppendedMsg:
		if msg.Message.Role == session.RoleAssistant || msg.Message.Role == session.RoleError {
			m.streaming = ""
			m.thinkingShown = false
		}
		if msg.SessionID == m.sessionID || msg.SessionID == "" {
			m.reload()
		}
		return m, nil

	case StreamChunkMsg:
		m.streamSession = msg.SessionID
		m.streaming = msg.Accumulated
		m.thinkingShown = false
		m.updateViewport()
		return m, nil

	case ThinkingMsg:
		m.thinking = msg.Elapsed
		m.thinkingShown = msg.Active
		m.updateViewport()
		return m, nil

	case CompletedMsg:
		c := msg.Completion
		m.last = &c
		m.streaming = ""
		m.thinkingShown = false
		m.reload()
		return m, nil

	case NoticeMsg:
		n := msg.Notice
		m.notice = &n
		return m, nil

	case QuotaMsg:
		m.quota = msg.Snapshot
		return m, nil

	case LoginRequiredMsg:
		m.loginRequired = true
		m.isLoggedIn = false
		return m, nil

	case LoginStateMsg:
		m.isLoggedIn = msg.LoggedIn
		if msg.LoggedIn {
			m.loginRequired = false
		}
		return m, nil

	case askDoneMsg:
		if msg.err == nil {
			m.turns++
		}
		if errors.Is(msg.err, chat.ErrEmptyPrompt) {
			m.input.Focus()
		}
		return m, nil

	case commandDoneMsg:
		m.output = strings.TrimRight(msg.output, "\n")
		m.checkLogin()
		m.reload()
		if msg.quit {
			return m, tea.Quit
		}
		return m, nil

	case modelsLoadedMsg:
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.ready = true

	m.viewport.Width = max(m.width, 1)
	m.viewport.Height = max(m.height-chromeHeight, 1)

	const promptLen = 2 // "> "
	m.input.Width = max(m.width-promptLen-1, 10)
	m.help.Width = m.width

	m.updateViewport()
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}
	if m.showSessions {
		return m.handleSessionKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Cancel):
		if m.engine.Busy() {
			m.engine.Cancel()
			return m, nil
		}
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		m.notice = nil
		m.output = ""
		m.input.Reset()
		m.updateViewport()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.NewSession):
		if _, err := m.store.NewSession(); err != nil {
			m.notice = &chat.Notice{Kind: chat.NoticeClient, Message: err.Error(), Err: err}
		}
		m.output = ""
		m.reload()
		return m, nil

	case key.Matches(msg, m.keys.Sessions):
		m.openSessions()
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.viewport.LineUp(1)
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.viewport.LineDown(1)
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input line as a prompt or runs it as a command.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	m.input.Reset()
	m.notice = nil
	m.output = ""

	if strings.HasPrefix(text, "/") {
		return m, m.runCommand(text)
	}
	if strings.EqualFold(text, "exit") || strings.EqualFold(text, "quit") {
		return m, tea.Quit
	}
	m.updateViewport()
	return m, m.ask(text)
}

// =============================================================================
// CONVERSATION PICKER
// =============================================================================

func (m *Model) openSessions() {
	m.sessions = m.store.Sessions()
	m.cursor = 0
	for i, s := range m.sessions {
		if s.ID == m.sessionID {
			m.cursor = i
		}
	}
	m.showSessions = true
}

func (m Model) handleSessionKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.sessions)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Submit):
		m.showSessions = false
		if m.cursor < len(m.sessions) {
			if err := m.store.SetActiveSession(m.sessions[m.cursor].ID); err != nil {
				m.notice = &chat.Notice{Kind: chat.NoticeClient, Message: err.Error(), Err: err}
			}
		}
		m.output = ""
		m.reload()
	case key.Matches(msg, m.keys.Sessions), key.Matches(msg, m.keys.Cancel):
		m.showSessions = false
	}
	return m, nil
}
