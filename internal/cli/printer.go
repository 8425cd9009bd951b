// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/surveyor/internal/chat"
	"github.com/jeranaias/surveyor/internal/quota"
	"github.com/jeranaias/surveyor/internal/session"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// PrinterOptions configures a Printer.
type PrinterOptions struct {
	Out io.Writer
	Err io.Writer

	// Markdown renders completed replies with glamour instead of streaming
	// raw text.
	Markdown bool
	WordWrap int

	// Interactive enables the thinking indicator and quota line on Err.
	Interactive bool
	Quiet       bool
	Verbose     bool

	// Silent suppresses reply text; used by --json.
	Silent bool
}

// Printer renders engine events on a terminal. It implements chat.Observer.
type Printer struct {
	mu   sync.Mutex
	opts PrinterOptions
	md   *glamour.TermRenderer

	streamed      bool
	thinkingShown bool
	last          *chat.Completion
	lastNotice    *chat.Notice
	lastQuota     quota.Snapshot
}

var _ chat.Observer = (*Printer)(nil)

// NewPrinter creates a Printer. A markdown renderer that fails to build
// falls back to raw streaming.
func NewPrinter(opts PrinterOptions) *Printer {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Err == nil {
		opts.Err = io.Discard
	}
	p := &Printer{opts: opts}
	p.SetMarkdown(opts.Markdown, opts.WordWrap)
	return p
}

// SetMarkdown switches glamour rendering on or off.
func (p *Printer) SetMarkdown(on bool, wrap int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opts.Markdown = on
	p.opts.WordWrap = wrap
	p.md = nil
	if !on {
		return
	}
	if wrap <= 0 {
		wrap = DefaultTerminalWidth
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err == nil {
		p.md = r
	}
}

// LastCompletion returns the most recent completion, or nil.
func (p *Printer) LastCompletion() *chat.Completion {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// LastNotice returns the most recent notice, or nil.
func (p *Printer) LastNotice() *chat.Notice {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastNotice
}

// LastQuota returns the most recent quota snapshot.
func (p *Printer) LastQuota() quota.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastQuota
}

// =============================================================================
// OBSERVER
// =============================================================================

func (p *Printer) OnQuota(s quota.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastQuota = s
	if p.opts.Interactive && !p.opts.Quiet && s.Status != quota.StatusUnknown {
		p.clearThinking()
		fmt.Fprintln(p.opts.Err, DimStyle.Render("quota "+s.String()))
	}
}

func (p *Printer) OnStatus(busy bool, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.opts.Verbose && !busy {
		p.clearThinking()
		fmt.Fprintln(p.opts.Err, DimStyle.Render("["+text+"]"))
	}
}

func (p *Printer) OnPhase(chat.Phase) {}

func (p *Printer) OnMessageAppended(string, session.Message) {}

func (p *Printer) OnStreamChunk(_, delta, _ string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearThinking()
	if p.md != nil || p.opts.Silent {
		return
	}
	io.WriteString(p.opts.Out, delta)
	p.streamed = true
}

func (p *Printer) OnThinking(elapsed time.Duration, active bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.opts.Interactive {
		return
	}
	if !active {
		p.clearThinking()
		return
	}
	frame := spinnerFrames[int(elapsed/chat.DefaultThinkingInterval)%len(spinnerFrames)]
	fmt.Fprintf(p.opts.Err, "\r%s", DimStyle.Render(fmt.Sprintf("%s thinking %.1fs", frame, elapsed.Seconds())))
	p.thinkingShown = true
}

func (p *Printer) OnCompleted(c chat.Completion) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearThinking()
	p.last = &c
	streamed := p.streamed
	p.streamed = false
	if p.opts.Silent {
		return
	}

	switch {
	case c.Placeholder:
		if streamed {
			fmt.Fprintln(p.opts.Out)
		}
		fmt.Fprintln(p.opts.Out, DimStyle.Render(c.Message.Content))
	case p.md != nil:
		fmt.Fprint(p.opts.Out, p.render(c.Message.Content))
	case streamed:
		fmt.Fprintln(p.opts.Out)
	default:
		fmt.Fprintln(p.opts.Out, c.Message.Content)
	}

	if !p.opts.Quiet {
		fmt.Fprintln(p.opts.Err, DimStyle.Render(completionStats(c, p.opts.Verbose)))
	}
}

func (p *Printer) OnNotice(n chat.Notice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearThinking()
	if p.streamed {
		fmt.Fprintln(p.opts.Out)
		p.streamed = false
	}
	p.lastNotice = &n
	if p.opts.Silent {
		return
	}
	tag := ErrorStyle.Render("[Error]")
	if n.Kind == chat.NoticeRateLimit {
		tag = WarningStyle.Render("[Rate limit]")
	}
	fmt.Fprintf(p.opts.Err, "%s %s\n", tag, n.Message)
}

func (p *Printer) OnLoginRequired() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.opts.Silent {
		return
	}
	fmt.Fprintln(p.opts.Err, DimStyle.Render("Run `surveyor login <token>` (or /login <token>) to authenticate."))
}

// =============================================================================
// HELPERS
// =============================================================================

// clearThinking erases the indicator line. Callers hold p.mu.
func (p *Printer) clearThinking() {
	if p.thinkingShown {
		fmt.Fprint(p.opts.Err, "\r\x1b[K")
		p.thinkingShown = false
	}
}

func (p *Printer) render(content string) string {
	out, err := p.md.Render(content)
	if err != nil {
		return content + "\n"
	}
	return out
}

// completionStats formats the dim line printed under a reply.
func completionStats(c chat.Completion, verbose bool) string {
	parts := []string{}
	if c.Message.Model != "" {
		parts = append(parts, c.Message.Model)
	}
	parts = append(parts, formatDurationShort(c.Elapsed))
	if c.CompletionTokens > 0 {
		parts = append(parts, fmt.Sprintf("%d tokens", c.CompletionTokens))
	}
	if c.TokensPerSecond > 0 {
		parts = append(parts, fmt.Sprintf("%.1f tok/s", c.TokensPerSecond))
	}
	if verbose {
		if c.TTFT > 0 {
			parts = append(parts, "ttft "+formatDurationShort(c.TTFT))
		}
		if c.Streamed {
			parts = append(parts, fmt.Sprintf("%d frames", c.Frames))
		}
	}
	if c.Dropped > 0 {
		parts = append(parts, fmt.Sprintf("%d dropped", c.Dropped))
	}
	return "[" + strings.Join(parts, " · ") + "]"
}
