// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jeranaias/surveyor/internal/ollama"
	"github.com/jeranaias/surveyor/internal/prompt"
	"github.com/jeranaias/surveyor/internal/quota"
	"github.com/jeranaias/surveyor/internal/session"
)

// Gateway is the subset of the ollama client the engine needs.
type Gateway interface {
	Send(ctx context.Context, req ollama.ChatRequest) (*ollama.Response, error)
	ListModels(ctx context.Context) ([]ollama.ModelInfo, error)
}

// Options configures an Engine.
type Options struct {
	Observer Observer
	Logger   *log.Logger

	// ThinkingInterval is the elapsed-time refresh period. Default 120ms.
	ThinkingInterval time.Duration

	// RequestTimeout bounds each chat request. Zero means no bound; the
	// request then ends only on completion, failure, or cancellation.
	RequestTimeout time.Duration

	// Clock stamps recorded messages. Default: time.Now.
	Clock func() time.Time
}

// flight is one in-flight request. Fields other than id and cancel are
// guarded by Engine.mu.
type flight struct {
	id         uint64
	cancel     context.CancelFunc
	superseded bool
	explicit   bool
}

// Engine is the request lifecycle controller. Ask may be called from any
// goroutine; a second Ask cancels the first.
type Engine struct {
	store    *session.Store
	gateway  Gateway
	relay    *quota.Relay
	observer Observer
	logger   *log.Logger

	thinkingInterval time.Duration
	requestTimeout   time.Duration
	clock            func() time.Time

	mu      sync.Mutex
	seq     uint64
	current *flight
	phase   Phase
}

// New creates an Engine. relay may be nil to disable quota tracking; when
// set, its display is pointed at the observer.
func New(store *session.Store, gateway Gateway, relay *quota.Relay, opts Options) *Engine {
	e := &Engine{
		store:            store,
		gateway:          gateway,
		relay:            relay,
		observer:         opts.Observer,
		logger:           opts.Logger,
		thinkingInterval: opts.ThinkingInterval,
		requestTimeout:   opts.RequestTimeout,
		clock:            opts.Clock,
	}
	if e.observer == nil {
		e.observer = NopObserver{}
	}
	if e.logger == nil {
		e.logger = log.New(io.Discard)
	}
	if e.thinkingInterval <= 0 {
		e.thinkingInterval = DefaultThinkingInterval
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if relay != nil {
		relay.SetDisplay(e.observer)
	}
	return e
}

// Store returns the session store the engine writes to.
func (e *Engine) Store() *session.Store {
	return e.store
}

// Phase returns the current lifecycle phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Busy reports whether a request is in flight.
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current != nil
}

// Cancel aborts the in-flight request, if any. Unlike a superseding Ask,
// an explicit cancel is recorded in the session as an error. Reports
// whether there was anything to cancel.
func (e *Engine) Cancel() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return false
	}
	e.current.explicit = true
	e.current.cancel()
	return true
}

// =============================================================================
// ASK
// =============================================================================

// Ask sends promptText to the selected model and records the reply in the
// active session. It blocks until the request resolves.
//
// The user message is persisted before the request is sent. Every failure
// except ErrNoModel and ErrEmptyPrompt is also recorded as an error message
// and reported to the observer; the returned error is informational. An
// Ask replaced by a newer one returns ErrSuperseded and records nothing
// further.
func (e *Engine) Ask(ctx context.Context, promptText string) error {
	if strings.TrimSpace(promptText) == "" {
		return ErrEmptyPrompt
	}

	snap := e.store.Snapshot()
	model := snap.SelectedModel
	if model == "" {
		e.observer.OnNotice(Notice{
			Kind:    NoticeConfig,
			Message: "No model selected. Pick one with /model or check the gateway's model list.",
			Err:     ErrNoModel,
		})
		return ErrNoModel
	}

	// Any previous request is superseded before this turn touches the
	// session, so its late reply cannot land after our user message.
	f, reqCtx, release := e.begin(ctx)
	defer release()

	sess, err := e.store.ActiveSession()
	if err != nil {
		e.logger.Warn("active session not persisted", "err", err)
	}

	userMsg, err := e.beginTurn(f, sess.ID, promptText, model, snap.SelectedTemplateID)
	if errors.Is(err, ErrSuperseded) || errors.Is(err, session.ErrSessionNotFound) {
		return err
	}
	if err != nil {
		e.logger.Warn("user message not persisted", "err", err)
	}
	e.observer.OnMessageAppended(sess.ID, userMsg)

	// The payload is built from the session as stored, so with history
	// enabled the new prompt is also the newest history entry.
	snap = e.store.Snapshot()
	messages := prompt.BuildMessages(snap, snap.FindSession(sess.ID), promptText)

	req := ollama.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   snap.Stream,
		Options: ollama.Options{
			NumCtx:      session.NormalizeNumCtx(snap.NumCtx),
			Temperature: session.NormalizeTemperature(snap.Temperature),
		},
	}

	e.logger.Debug("chat request", "id", f.id, "model", model, "stream", req.Stream, "messages", len(messages))
	e.observer.OnStatus(true, "sending request…")
	e.setPhase(f, PhaseSending)

	started := time.Now()
	think := startThinking(e.thinkingInterval, func(elapsed time.Duration, active bool) {
		if e.isCurrent(f) {
			e.observer.OnThinking(elapsed, active)
		}
	})
	defer think.Stop()

	resp, err := e.gateway.Send(reqCtx, req)
	if err != nil {
		think.Stop()
		return e.fail(f, sess.ID, err)
	}

	if !req.Stream {
		return e.awaitReply(reqCtx, f, sess.ID, model, resp, think, started)
	}
	return e.consumeStream(reqCtx, f, sess.ID, model, resp, think, started)
}

// awaitReply handles a non-streamed response.
func (e *Engine) awaitReply(ctx context.Context, f *flight, sessionID, model string, resp *ollama.Response, think *thinking, started time.Time) error {
	e.setPhase(f, PhaseAwaiting)

	result, err := resp.Decode()
	think.Stop()
	if err != nil {
		return e.fail(f, sessionID, err)
	}
	text := result.Content()
	placeholder := strings.TrimSpace(text) == ""
	if placeholder {
		text = PlaceholderEmpty
	}

	msg, ok := e.record(f, sessionID, session.Message{Role: session.RoleAssistant, Content: text, TS: e.now(), Model: model})
	if !ok {
		return ErrSuperseded
	}
	e.observer.OnCompleted(Completion{
		SessionID:        sessionID,
		Message:          msg,
		Elapsed:          time.Since(started),
		Placeholder:      placeholder,
		PromptTokens:     result.PromptEvalCount,
		CompletionTokens: result.EvalCount,
		TokensPerSecond:  result.TokensPerSecond(),
	})
	e.complete(f)

	if e.relay != nil && e.isCurrent(f) && !e.relay.UpdateFromHeaders(resp.Header) {
		e.refreshQuota(ctx, f)
	}
	return nil
}

// consumeStream handles an NDJSON response.
func (e *Engine) consumeStream(ctx context.Context, f *flight, sessionID, model string, resp *ollama.Response, think *thinking, started time.Time) error {
	e.setPhase(f, PhaseStreaming)
	defer resp.Close()

	reader := ollama.NewStreamReader(resp.Body)
	err := reader.Process(ctx, func(chunk ollama.StreamChunk) {
		if chunk.Content != "" {
			think.Stop()
			if e.isCurrent(f) {
				e.observer.OnStreamChunk(sessionID, chunk.Content, reader.Accumulated())
			}
		}
		if chunk.Done && e.isCurrent(f) {
			e.observer.OnStatus(true, fmt.Sprintf("completed • %.1fs", time.Since(started).Seconds()))
		}
	})
	think.Stop()

	if reader.Dropped() > 0 {
		e.logger.Debug("dropped malformed stream frames", "id", f.id, "dropped", reader.Dropped())
	}
	if err != nil {
		return e.fail(f, sessionID, err)
	}

	text := reader.Accumulated()
	placeholder := false
	switch {
	case reader.ContentFrames() == 0:
		text, placeholder = PlaceholderNoResponse, true
	case strings.TrimSpace(text) == "":
		text, placeholder = PlaceholderEmpty, true
	}

	msg, ok := e.record(f, sessionID, session.Message{Role: session.RoleAssistant, Content: text, TS: e.now(), Model: model})
	if !ok {
		return ErrSuperseded
	}
	completion := Completion{
		SessionID:   sessionID,
		Message:     msg,
		Streamed:    true,
		Elapsed:     time.Since(started),
		Placeholder: placeholder,
		Frames:      reader.Frames(),
		Dropped:     reader.Dropped(),
		TTFT:        reader.TTFT(),
	}
	if final := reader.Final(); final != nil {
		completion.PromptTokens = final.PromptTokens
		completion.CompletionTokens = final.CompletionTokens
		if final.EvalDuration > 0 {
			completion.TokensPerSecond = float64(final.CompletionTokens) / final.EvalDuration.Seconds()
		}
	}
	e.observer.OnCompleted(completion)
	e.complete(f)
	e.refreshQuota(ctx, f)
	return nil
}

// fail records err in the session and reports it, unless f was superseded.
func (e *Engine) fail(f *flight, sessionID string, err error) error {
	var (
		authErr  *ollama.AuthError
		rlErr    *ollama.RateLimitError
		httpErr  *ollama.HTTPError
		content  = err.Error()
		explicit = e.isExplicit(f)
		notice   Notice
		ok       bool
	)

	switch {
	case errors.As(err, &authErr):
		notice = Notice{Kind: NoticeAuth, Message: "Authentication required. Run `surveyor login <token>`.", Err: err}
		_, ok = e.record(f, sessionID, e.errorMessage(content))
	case errors.As(err, &rlErr):
		notice = Notice{Kind: NoticeRateLimit, Message: rateLimitText(rlErr), Err: err}
		_, ok = e.record(f, sessionID, e.errorMessage(content))
	case errors.As(err, &httpErr):
		notice = Notice{Kind: NoticeHTTP, Message: content, Err: err}
		_, ok = e.record(f, sessionID, e.errorMessage(content))
	default:
		if explicit {
			content = "request canceled"
		}
		notice = Notice{Kind: NoticeClient, Message: content, Err: err}
		// Transport failures go to whatever session is active now.
		_, ok = e.record(f, "", e.errorMessage(content))
	}

	if !ok {
		e.logger.Debug("discarding superseded request", "id", f.id, "err", err)
		return ErrSuperseded
	}

	e.observer.OnNotice(notice)
	switch {
	case authErr != nil:
		e.observer.OnLoginRequired()
	case rlErr != nil:
		e.refreshQuota(context.Background(), f)
	}

	e.logger.Debug("chat request failed", "id", f.id, "err", err)
	e.observer.OnStatus(false, "error")
	if explicit {
		e.setPhase(f, PhaseCancelled)
	} else {
		e.setPhase(f, PhaseFailed)
	}
	return err
}

func rateLimitText(err *ollama.RateLimitError) string {
	if err.ResetAt.IsZero() {
		return "Rate limit exceeded."
	}
	return fmt.Sprintf("Rate limit exceeded. Resets at %s.", err.ResetAt.Local().Format("15:04:05"))
}

func (e *Engine) errorMessage(content string) session.Message {
	return session.Message{Role: session.RoleError, Content: content, TS: e.now()}
}

// beginTurn records the user prompt unless f has been superseded. The
// check and the write share e.mu, so a superseded request cannot land its
// prompt after the newer request's.
func (e *Engine) beginTurn(f *flight, sessionID, promptText, model, templateID string) (session.Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if f.superseded {
		return session.Message{}, ErrSuperseded
	}
	return e.store.BeginTurn(sessionID, promptText, model, templateID)
}

// record appends msg to sessionID, or to the active session when
// sessionID is empty or has vanished, and notifies the observer. The
// superseded check and the write happen under e.mu so a newer request
// cannot slip in between. ok is false when f was superseded.
func (e *Engine) record(f *flight, sessionID string, msg session.Message) (stored session.Message, ok bool) {
	e.mu.Lock()
	if f.superseded {
		e.mu.Unlock()
		return msg, false
	}
	var err error
	stored = msg
	if sessionID != "" {
		stored, err = e.store.Append(sessionID, msg)
	}
	if sessionID == "" || errors.Is(err, session.ErrSessionNotFound) {
		sessionID, err = e.store.AppendToActive(msg)
		stored = msg
	}
	e.mu.Unlock()

	if err != nil {
		e.logger.Warn("message not persisted", "role", msg.Role, "err", err)
	}
	e.observer.OnMessageAppended(sessionID, stored)
	return stored, true
}

// refreshQuota asks the relay for fresh quota on behalf of f. Once f is
// superseded the display belongs to the newer request, so nothing is
// fetched; a fetch cut short by a later supersede publishes nothing.
func (e *Engine) refreshQuota(ctx context.Context, f *flight) {
	if e.relay == nil || !e.isCurrent(f) {
		return
	}
	if err := e.relay.Refresh(ctx); err != nil {
		e.logger.Debug("quota refresh failed", "id", f.id, "err", err)
	}
}

func (e *Engine) complete(f *flight) {
	e.observer.OnStatus(true, "ready")
	e.setPhase(f, PhaseCompleted)
}

func (e *Engine) now() time.Time {
	return e.clock().UTC().Round(0)
}

// =============================================================================
// SINGLE FLIGHT
// =============================================================================

// begin registers a new flight, superseding any current one. release must
// be called when the request resolves.
func (e *Engine) begin(parent context.Context) (*flight, context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	if e.requestTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, e.requestTimeout)
		base := cancel
		cancel = func() {
			cancelTimeout()
			base()
		}
	}

	e.mu.Lock()
	if prev := e.current; prev != nil {
		prev.superseded = true
		prev.cancel()
	}
	e.seq++
	f := &flight{id: e.seq, cancel: cancel}
	e.current = f
	e.mu.Unlock()

	release := func() {
		cancel()
		e.mu.Lock()
		idle := e.current == f
		if idle {
			e.current = nil
			e.phase = PhaseIdle
		}
		e.mu.Unlock()
		if idle {
			e.observer.OnPhase(PhaseIdle)
		}
	}
	return f, ctx, release
}

func (e *Engine) isCurrent(f *flight) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current == f
}

func (e *Engine) isExplicit(f *flight) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return f.explicit
}

// setPhase updates the phase only while f is the current flight.
func (e *Engine) setPhase(f *flight, p Phase) {
	e.mu.Lock()
	current := e.current == f
	if current {
		e.phase = p
	}
	e.mu.Unlock()
	if current {
		e.observer.OnPhase(p)
	}
}

// =============================================================================
// MODELS AND QUOTA
// =============================================================================

// RefreshModels fetches the gateway's model list, caches the names, and
// selects the first model when the current selection is missing. On
// failure the cached names are returned alongside the error.
func (e *Engine) RefreshModels(ctx context.Context) ([]ollama.ModelInfo, error) {
	models, err := e.gateway.ListModels(ctx)
	if err != nil {
		if errors.Is(err, ollama.ErrUnauthorized) {
			e.observer.OnNotice(Notice{Kind: NoticeAuth, Message: "Authentication required to list models.", Err: err})
			e.observer.OnLoginRequired()
		} else {
			e.observer.OnNotice(Notice{Kind: NoticeClient, Message: "Could not load models: " + err.Error(), Err: err})
		}
		var cached []ollama.ModelInfo
		for _, name := range e.store.Snapshot().LastModels {
			cached = append(cached, ollama.ModelInfo{Name: name})
		}
		return cached, fmt.Errorf("list models: %w", err)
	}

	named := make([]ollama.ModelInfo, 0, len(models))
	names := make([]string, 0, len(models))
	for _, m := range models {
		if m.Name != "" {
			named = append(named, m)
			names = append(names, m.Name)
		}
	}
	selected, err := e.store.SetModels(names)
	if err != nil {
		e.logger.Warn("model list not persisted", "err", err)
	}
	e.logger.Debug("models refreshed", "count", len(names), "selected", selected)
	return named, nil
}

// RefreshQuota fetches and publishes the current quota.
func (e *Engine) RefreshQuota(ctx context.Context) error {
	if e.relay == nil {
		return nil
	}
	return e.relay.Refresh(ctx)
}
