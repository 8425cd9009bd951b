// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/surveyor/internal/quota"
	"github.com/jeranaias/surveyor/internal/session"
	"github.com/jeranaias/surveyor/internal/util"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("141")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82")).
			Bold(true)
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the screen.
func (m Model) View() string {
	if !m.ready {
		return "starting surveyor…"
	}

	body := m.viewport.View()
	if m.showSessions {
		body = m.renderSessions()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.renderNotice(),
		m.input.View(),
		m.renderStatusBar(),
		m.help.View(m.keys),
	)
}

func (m Model) renderHeader() string {
	title := m.title
	if title == "" {
		title = session.DefaultSessionName
	}
	left := headerStyle.Render("surveyor") + " " + title
	right := dimStyle.Render(m.gateway)
	return spread(left, right, m.width)
}

func (m Model) renderNotice() string {
	switch {
	case m.notice != nil:
		return errorStyle.Render(util.TruncateWidth(m.notice.Message, max(m.width, 10)))
	case m.loginRequired:
		return warningStyle.Render("Authentication required. Run /login <token>.")
	}
	return ""
}

func (m Model) renderStatusBar() string {
	var left string
	if m.busy {
		left = m.spinner.View() + " " + m.status
	} else {
		left = m.status
	}
	if c := m.last; c != nil && !m.busy {
		left += dimStyle.Render(" · " + completionStats(c.Elapsed, c.CompletionTokens, c.TokensPerSecond))
	}

	model := m.selectedModel()
	if model == "" {
		model = warningStyle.Render("no model")
	}

	login := okStyle.Render("logged in")
	if !m.isLoggedIn {
		login = warningStyle.Render("not logged in")
	}

	right := model + " │ quota " + quotaText(m.quota) + " │ " + login
	return statusBarStyle.Render(spread(left, right, m.width))
}

func (m Model) renderSessions() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Conversations") + dimStyle.Render("  Enter to open, Tab to close") + "\n\n")
	for i, s := range m.sessions {
		line := fmt.Sprintf("%s  %s", util.PadWidth(util.TruncateWidth(s.Name, 40), 40), dimStyle.Render(fmt.Sprintf("%d messages", len(s.Messages))))
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> ") + line + "\n")
		} else {
			b.WriteString("  " + line + "\n")
		}
	}
	return lipgloss.NewStyle().Height(m.viewport.Height).MaxHeight(m.viewport.Height).Render(b.String())
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// updateViewport re-renders the transcript, following the bottom unless
// the user has scrolled up.
func (m *Model) updateViewport() {
	follow := m.viewport.AtBottom() || m.viewport.TotalLineCount() == 0
	m.viewport.SetContent(m.renderTranscript())
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m Model) renderTranscript() string {
	width := max(m.viewport.Width-2, 20)
	body := lipgloss.NewStyle().Width(width).PaddingLeft(2)

	var b strings.Builder
	for _, msg := range m.messages {
		b.WriteString(roleLabel(msg.Role))
		if !msg.TS.IsZero() {
			b.WriteString(dimStyle.Render("  " + msg.TS.Local().Format("15:04")))
		}
		b.WriteString("\n")
		content := msg.Content
		if msg.Role == session.RoleError {
			content = errorStyle.Render(content)
		}
		b.WriteString(body.Render(content) + "\n\n")
	}

	if m.streaming != "" && m.streamSession == m.sessionID {
		b.WriteString(roleLabel(session.RoleAssistant) + "\n")
		b.WriteString(body.Render(m.streaming+"▌") + "\n\n")
	} else if m.thinkingShown {
		b.WriteString(dimStyle.Render(fmt.Sprintf("thinking %s", formatElapsed(m.thinking))) + "\n\n")
	}

	if m.output != "" {
		b.WriteString(m.output + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func roleLabel(r session.Role) string {
	switch r {
	case session.RoleUser:
		return userStyle.Render("you")
	case session.RoleAssistant:
		return assistantStyle.Render("assistant")
	case session.RoleError:
		return errorStyle.Render("error")
	default:
		return warningStyle.Render(string(r))
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func quotaText(s quota.Snapshot) string {
	if s.Status == quota.StatusLoginRequired || s.Status == quota.StatusFetchFailed {
		return warningStyle.Render(s.String())
	}
	return s.String()
}

func completionStats(elapsed time.Duration, tokens int, tps float64) string {
	out := formatElapsed(elapsed)
	if tokens > 0 {
		out += fmt.Sprintf(" · %d tokens", tokens)
	}
	if tps > 0 {
		out += fmt.Sprintf(" · %.1f tok/s", tps)
	}
	return out
}

func formatElapsed(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return d.Truncate(time.Second).String()
}

// spread places left and right on one line of width columns.
func spread(left, right string, width int) string {
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return lipgloss.NewStyle().MaxWidth(max(width, 1)).Render(left + " " + right)
	}
	return left + strings.Repeat(" ", gap) + right
}
