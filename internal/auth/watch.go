// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// TOKEN FILE WATCHER
// =============================================================================

// Watcher follows the token file and reports login state changes, including
// a `surveyor login` or `logout` run from another shell.
type Watcher struct {
	provider *Provider
	path     string
	watcher  *fsnotify.Watcher
	onChange func(loggedIn bool)

	mu       sync.Mutex
	loggedIn bool
	started  bool

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewWatcher creates a watcher for p's token file. onChange runs on the
// watcher goroutine whenever the login state flips.
func NewWatcher(p *Provider, onChange func(loggedIn bool)) (*Watcher, error) {
	if p.file == nil || p.file.Path() == "" {
		return nil, ErrNoTokenFile
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		provider: p,
		path:     filepath.Clean(p.file.Path()),
		watcher:  watcher,
		onChange: onChange,
		loggedIn: p.LoggedIn(),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}, nil
}

// Watch starts watching. The token is replaced by rename, so the parent
// directory is watched and events are filtered by name.
func (w *Watcher) Watch() error {
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	w.mu.Lock()
	w.started = true
	w.mu.Unlock()
	go w.processEvents()
	return nil
}

// LoggedIn returns the last observed login state.
func (w *Watcher) LoggedIn() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loggedIn
}

// Close stops watching and waits for the event loop to exit.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.cancel()
		err = w.watcher.Close()
		w.mu.Lock()
		started := w.started
		w.mu.Unlock()
		if started {
			<-w.done
		}
	})
	return err
}

func (w *Watcher) processEvents() {
	defer close(w.done)

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.check()
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// check re-reads the login state and reports a change.
func (w *Watcher) check() {
	now := w.provider.LoggedIn()
	w.mu.Lock()
	changed := now != w.loggedIn
	w.loggedIn = now
	w.mu.Unlock()
	if changed && w.onChange != nil {
		w.onChange(now)
	}
}
