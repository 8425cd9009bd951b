// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/surveyor/internal/session"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports sessions as Markdown transcripts.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a session to Markdown.
func (e *MarkdownExporter) Export(sess *session.Session) ([]byte, error) {
	if sess == nil {
		return nil, fmt.Errorf("session is nil")
	}
	msgs := visibleMessages(sess.Messages, e.options)
	if len(msgs) == 0 {
		return nil, fmt.Errorf("session has no messages")
	}

	var sb strings.Builder
	title := sess.Name
	if title == "" {
		title = session.DefaultSessionName
	}

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(title))
		fmt.Fprintf(&sb, "id: %s\n", sess.ID)
		if sess.Model != "" {
			fmt.Fprintf(&sb, "model: %s\n", escapeYAML(sess.Model))
		}
		if sess.TemplateID != "" {
			fmt.Fprintf(&sb, "template: %s\n", escapeYAML(sess.TemplateID))
		}
		if !sess.CreatedAt.IsZero() {
			fmt.Fprintf(&sb, "date: %s\n", sess.CreatedAt.Format(time.RFC3339))
		}
		if !sess.UpdatedAt.IsZero() {
			fmt.Fprintf(&sb, "updated: %s\n", sess.UpdatedAt.Format(time.RFC3339))
		}
		fmt.Fprintf(&sb, "messages: %d\n", len(msgs))
		fmt.Fprintf(&sb, "exported: %s\n", e.options.now().Format(time.RFC3339))
		sb.WriteString("generator: surveyor\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(title))

	for i, msg := range msgs {
		label := roleLabel(msg.Role)
		if msg.Role == session.RoleAssistant && msg.Model != "" {
			label += " (" + msg.Model + ")"
		}
		if e.options.IncludeTimestamps && !msg.TS.IsZero() {
			fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", label, msg.TS.Format("2006-01-02 15:04:05"))
		} else {
			fmt.Fprintf(&sb, "### %s\n\n", label)
		}

		content := strings.TrimSpace(msg.Content)
		if msg.Role == session.RoleError {
			content = "> " + strings.ReplaceAll(content, "\n", "\n> ")
		}
		sb.WriteString(content)
		sb.WriteString("\n\n")

		if i < len(msgs)-1 {
			sb.WriteString("---\n\n")
		}
	}

	return []byte(sb.String()), nil
}

func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

func roleLabel(role session.Role) string {
	switch role {
	case session.RoleUser:
		return "[User]"
	case session.RoleAssistant:
		return "[Assistant]"
	case session.RoleSystem:
		return "[System]"
	case session.RoleError:
		return "[Error]"
	case "":
		return "Unknown"
	default:
		s := string(role)
		return strings.ToUpper(s[:1]) + s[1:]
	}
}

// escapeMarkdown escapes characters that would break a heading.
func escapeMarkdown(s string) string {
	return strings.NewReplacer(
		"#", `\#`,
		"*", `\*`,
		"_", `\_`,
		"[", `\[`,
		"]", `\]`,
	).Replace(s)
}

// escapeYAML quotes values that contain YAML syntax, newlines included.
func escapeYAML(s string) string {
	if !strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") && !strings.HasPrefix(s, " ") && !strings.HasSuffix(s, " ") {
		return s
	}
	s = strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
		"\r", `\r`,
	).Replace(s)
	return `"` + s + `"`
}
