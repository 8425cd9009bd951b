// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line interface functionality.
// This file contains formatting helpers shared by commands and the REPL.
package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/surveyor/internal/session"
	"github.com/jeranaias/surveyor/internal/util"
)

// formatDurationShort formats a short duration string.
func formatDurationShort(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}

// formatAge renders t relative to now ("3 minutes ago").
func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

// =============================================================================
// TABLES
// =============================================================================

// table renders rows in aligned columns. Widths are measured in terminal
// cells, so CJK titles line up.
type table struct {
	headers []string
	rows    [][]string
	// max caps a column's width; 0 means unlimited.
	max []int
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) widths() []int {
	w := make([]int, len(t.headers))
	measure := func(cells []string) {
		for i, c := range cells {
			if i >= len(w) {
				break
			}
			if cw := runewidth.StringWidth(c); cw > w[i] {
				w[i] = cw
			}
		}
	}
	measure(t.headers)
	for _, r := range t.rows {
		measure(r)
	}
	for i := range w {
		if i < len(t.max) && t.max[i] > 0 && w[i] > t.max[i] {
			w[i] = t.max[i]
		}
	}
	return w
}

// write prints the table. marker, when non-nil, picks rows to highlight.
func (t *table) write(out io.Writer, marker func(row int) bool) {
	w := t.widths()
	line := func(cells []string) string {
		parts := make([]string, len(cells))
		for i, c := range cells {
			if i < len(w) {
				c = util.PadWidth(util.TruncateWidth(c, w[i]), w[i])
			}
			parts[i] = c
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	fmt.Fprintln(out, "  "+DimStyle.Render(line(t.headers)))
	for i, r := range t.rows {
		prefix := "  "
		text := line(r)
		if marker != nil && marker(i) {
			prefix = activeMarkerStyle.Render("* ")
			text = activeMarkerStyle.Render(text)
		}
		fmt.Fprintln(out, prefix+text)
	}
}

// sessionTable lists sessions with a 1-based index usable by /switch.
func sessionTable(sessions []session.Session) *table {
	t := &table{
		headers: []string{"#", "NAME", "MESSAGES", "MODEL", "UPDATED"},
		max:     []int{0, 40, 0, 24, 0},
	}
	for i, s := range sessions {
		t.add(
			fmt.Sprintf("%d", i+1),
			s.Name,
			fmt.Sprintf("%d", len(s.Messages)),
			s.Model,
			formatAge(s.UpdatedAt),
		)
	}
	return t
}

// roleLabel styles a message role for transcripts.
func roleLabel(r session.Role) string {
	switch r {
	case session.RoleUser:
		return userRoleStyle.Render("You")
	case session.RoleAssistant:
		return assistantRoleStyle.Render("AI")
	case session.RoleError:
		return errorRoleStyle.Render("Error")
	default:
		return systemRoleStyle.Render("System")
	}
}

// writeTranscript prints messages, one line each unless full is set.
func writeTranscript(out io.Writer, msgs []session.Message, full bool) {
	if len(msgs) == 0 {
		fmt.Fprintln(out, DimStyle.Render("  (no messages yet)"))
		return
	}
	width := GetTerminalWidth() - 12
	for i, m := range msgs {
		content := m.Content
		if !full {
			content = util.TruncateWidth(util.CollapseSpace(content), width)
		}
		fmt.Fprintf(out, "  %d. %s: %s\n", i+1, roleLabel(m.Role), content)
	}
}
