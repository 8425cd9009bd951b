// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package quota relays the gateway's per-user rate-limit state to the UI.
//
// Quota arrives two ways: as X-RateLimit-* headers on chat responses, or
// from an explicit fetch of the quota endpoint when headers are absent.
package quota

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/jeranaias/surveyor/internal/ollama"
)

// Response header names set by the gateway.
const (
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderReset     = "X-RateLimit-Reset"
)

// defaultLimit is shown when the quota endpoint omits or zeroes the limit.
const defaultLimit = 100

// =============================================================================
// SNAPSHOT
// =============================================================================

// Status describes how current a Snapshot is.
type Status int

const (
	StatusUnknown Status = iota
	StatusKnown
	StatusLoginRequired
	StatusFetchFailed
)

// Snapshot is what the quota display shows.
type Snapshot struct {
	Status    Status
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// String renders the snapshot as "remaining/limit (HH:MM)".
func (s Snapshot) String() string {
	switch s.Status {
	case StatusKnown:
		if s.ResetAt.IsZero() {
			return fmt.Sprintf("%d/%d", s.Remaining, s.Limit)
		}
		return fmt.Sprintf("%d/%d (%s)", s.Remaining, s.Limit, s.ResetAt.Local().Format("15:04"))
	case StatusLoginRequired:
		return "login required"
	case StatusFetchFailed:
		return "quota unavailable"
	default:
		return "-"
	}
}

// Display receives every quota update.
type Display interface {
	OnQuota(Snapshot)
}

// Fetcher performs the explicit quota query.
type Fetcher interface {
	FetchQuota(ctx context.Context) (*ollama.QuotaStatus, error)
}

// =============================================================================
// RELAY
// =============================================================================

// Options configures a Relay.
type Options struct {
	// MinRefreshInterval throttles Refresh. Zero disables throttling.
	MinRefreshInterval time.Duration
	Clock              func() time.Time
	Logger             *log.Logger
}

// Relay tracks the latest quota and forwards it to a Display.
type Relay struct {
	fetcher Fetcher
	display Display
	limiter *rate.Limiter
	clock   func() time.Time
	logger  *log.Logger

	mu   sync.Mutex
	last Snapshot
}

// NewRelay creates a relay. display may be nil.
func NewRelay(fetcher Fetcher, display Display, opts Options) *Relay {
	limit := rate.Inf
	if opts.MinRefreshInterval > 0 {
		limit = rate.Every(opts.MinRefreshInterval)
	}
	r := &Relay{
		fetcher: fetcher,
		display: display,
		limiter: rate.NewLimiter(limit, 1),
		clock:   opts.Clock,
		logger:  opts.Logger,
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	if r.logger == nil {
		r.logger = log.New(io.Discard)
	}
	return r
}

// SetDisplay replaces the display target.
func (r *Relay) SetDisplay(d Display) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.display = d
}

// Last returns the most recent snapshot.
func (r *Relay) Last() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// UpdateFromHeaders publishes quota from response headers. It reports true
// when both remaining and limit were present, meaning no explicit refresh
// is needed. A missing reset is taken as one hour from now.
func (r *Relay) UpdateFromHeaders(h http.Header) bool {
	remainingRaw := h.Get(HeaderRemaining)
	limitRaw := h.Get(HeaderLimit)
	if remainingRaw == "" || limitRaw == "" {
		return false
	}
	remaining, err1 := strconv.Atoi(strings.TrimSpace(remainingRaw))
	limit, err2 := strconv.Atoi(strings.TrimSpace(limitRaw))
	if err1 != nil || err2 != nil {
		r.logger.Debug("ignoring malformed rate-limit headers", "remaining", remainingRaw, "limit", limitRaw)
		return false
	}

	reset := r.clock().Add(time.Hour)
	if raw := strings.TrimSpace(h.Get(HeaderReset)); raw != "" {
		if secs, err := strconv.ParseFloat(raw, 64); err == nil && secs > 0 {
			reset = (ollama.QuotaStatus{ResetAt: secs}).ResetTime()
		}
	}

	r.publish(Snapshot{Status: StatusKnown, Remaining: remaining, Limit: limit, ResetAt: reset})
	return true
}

// Refresh fetches quota from the gateway and publishes it. On failure the
// display shows a failed (or login required) state and the error is
// returned; a canceled fetch publishes nothing. Calls closer together than
// MinRefreshInterval are skipped.
func (r *Relay) Refresh(ctx context.Context) error {
	if !r.limiter.Allow() {
		r.logger.Debug("quota refresh throttled")
		return nil
	}

	q, err := r.fetcher.FetchQuota(ctx)
	if err != nil && ollama.IsCanceled(err) {
		// An abandoned fetch says nothing about the quota; leave the
		// display to whoever canceled it.
		r.logger.Debug("quota fetch canceled", "err", err)
		return fmt.Errorf("fetch quota: %w", err)
	}
	if err != nil {
		status := StatusFetchFailed
		if errors.Is(err, ollama.ErrUnauthorized) {
			status = StatusLoginRequired
		}
		r.logger.Warn("quota fetch failed", "err", err)
		r.publish(Snapshot{Status: status})
		return fmt.Errorf("fetch quota: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	remaining := q.Remaining
	if remaining < 0 {
		remaining = 0
	}
	r.publish(Snapshot{Status: StatusKnown, Remaining: remaining, Limit: limit, ResetAt: q.ResetTime()})
	return nil
}

func (r *Relay) publish(s Snapshot) {
	r.mu.Lock()
	r.last = s
	display := r.display
	r.mu.Unlock()

	if display != nil {
		display.OnQuota(s)
	}
}
