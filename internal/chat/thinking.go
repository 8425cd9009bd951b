// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"
	"time"
)

// DefaultThinkingInterval is how often elapsed wait time is reported.
const DefaultThinkingInterval = 120 * time.Millisecond

// thinking reports elapsed time on a ticker until stopped.
type thinking struct {
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	started time.Time
	report  func(elapsed time.Duration, active bool)
}

// startThinking begins ticking every interval. report is called from the
// ticker goroutine while active and once more, with active false, by Stop.
func startThinking(interval time.Duration, report func(time.Duration, bool)) *thinking {
	if interval <= 0 {
		interval = DefaultThinkingInterval
	}
	t := &thinking{
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		started: time.Now(),
		report:  report,
	}

	report(0, true)
	go func() {
		defer close(t.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				t.report(time.Since(t.started), true)
			}
		}
	}()
	return t
}

// Stop ends the ticker and waits for it, so no tick is reported after Stop
// returns. Safe to call more than once.
func (t *thinking) Stop() {
	t.once.Do(func() {
		close(t.stop)
		<-t.done
		t.report(time.Since(t.started), false)
	})
}
