// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/poiesic/brainvault/ingestion"
	"github.com/poiesic/brainvault/scanner"
)

// DefaultDebounce is how long a path must stay quiet before it is processed.
const DefaultDebounce = 500 * time.Millisecond

var (
	// ErrIndexerRequired is returned when no indexer is provided.
	ErrIndexerRequired = errors.New("indexer required")

	// ErrScannerRequired is returned when no scanner is provided.
	ErrScannerRequired = errors.New("scanner required")
)

// Indexer is the part of the ingestion pipeline the watcher drives.
type Indexer interface {
	Process(ctx context.Context, path string) (*ingestion.DocumentResult, error)
	Forget(ctx context.Context, path string) (int, error)
	ForgetTree(ctx context.Context, dir string) (int, error)
}

var _ Indexer = (*ingestion.Pipeline)(nil)

type action int

const (
	actionIndex action = iota
	actionForget
	actionForgetTree
)

type pending struct {
	action action
	due    time.Time
}

// Watcher keeps the vector store in step with a directory tree.
// Created and written files are re-ingested; removed and renamed files are
// forgotten, as is everything beneath a removed or renamed directory. Bursts of events on one path collapse into a single action.
type Watcher struct {
	indexer  Indexer
	scanner  *scanner.Scanner
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]pending
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a changed path is processed.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New creates a Watcher over the scanner's root. The scanner decides which
// files are eligible and which directories are skipped.
func New(indexer Indexer, sc *scanner.Scanner, opts ...Option) (*Watcher, error) {
	if indexer == nil {
		return nil, ErrIndexerRequired
	}
	if sc == nil {
		return nil, ErrScannerRequired
	}
	w := &Watcher{
		indexer:  indexer,
		scanner:  sc,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		pending:  make(map[string]pending),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("component", "watcher")
	return w, nil
}

// Run watches until ctx is done. It returns nil on cancellation and an error
// only when watching could not start.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fsw.Close()

	if err := w.addTree(fsw, w.scanner.Root(), false); err != nil {
		return err
	}
	w.logger.Info("watching directory", "root", w.scanner.Root(), "debounce", w.debounce)

	tick := time.NewTicker(max(w.debounce/4, 10*time.Millisecond))
	defer tick.Stop()

	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fsw, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "err", err)
		case now := <-tick.C:
			w.flush(ctx, now)
		case <-ctx.Done():
			w.logger.Info("stopping watcher")
			return nil
		}
	}
}

func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, event fsnotify.Event) {
	w.logger.Debug("file event", "path", event.Name, "op", event.Op.String())

	if event.Has(fsnotify.Create) {
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(fsw, event.Name, true); err != nil {
				w.logger.Warn("error watching new directory", "path", event.Name, "err", err)
			}
			return
		}
	}

	if !w.scanner.Eligible(event.Name) {
		// A vanished path can no longer be checked for being a directory.
		if (event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) && w.scanner.Descends(event.Name) {
			w.schedule(event.Name, actionForgetTree)
		}
		return
	}

	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		w.schedule(event.Name, actionForget)
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		w.schedule(event.Name, actionIndex)
	}
}

// addTree watches dir and every directory beneath it the scanner would
// descend into. When index is set, files already present are scheduled;
// they may have been written before the watch was in place.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string, index bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			w.logger.Warn("error walking directory", "path", path, "err", err)
			return nil
		}
		if d.IsDir() {
			if !w.scanner.Descends(path) {
				return filepath.SkipDir
			}
			if err := fsw.Add(path); err != nil {
				return fmt.Errorf("watching %s: %w", path, err)
			}
			return nil
		}
		if index && d.Type().IsRegular() && w.scanner.Eligible(path) {
			w.schedule(path, actionIndex)
		}
		return nil
	})
}

// schedule records the latest action for path and pushes its deadline out.
func (w *Watcher) schedule(path string, a action) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = pending{action: a, due: time.Now().Add(w.debounce)}
}

// flush runs the actions whose quiet period has passed.
func (w *Watcher) flush(ctx context.Context, now time.Time) {
	w.mu.Lock()
	var ready []string
	actions := make(map[string]action)
	for path, p := range w.pending {
		if !now.Before(p.due) {
			ready = append(ready, path)
			actions[path] = p.action
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		if ctx.Err() != nil {
			return
		}
		w.apply(ctx, path, actions[path])
	}
}

func (w *Watcher) apply(ctx context.Context, path string, a action) {
	// A write can be reported after the file is already gone.
	if a == actionIndex {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			a = actionForget
		}
	}

	// The directory came back before the quiet period ended; its files
	// were scheduled when it was watched again.
	if a == actionForgetTree {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return
		}
	}

	switch a {
	case actionForgetTree:
		removed, err := w.indexer.ForgetTree(ctx, path)
		if err != nil {
			w.logger.Error("error forgetting directory", "path", path, "err", err)
		} else if removed > 0 {
			w.logger.Info("forgot directory", "path", path, "records", removed)
		}
	case actionForget:
		removed, err := w.indexer.Forget(ctx, path)
		if err != nil {
			w.logger.Error("error forgetting document", "path", path, "err", err)
		} else {
			w.logger.Info("forgot document", "path", path, "records", removed)
		}
	case actionIndex:
		res, err := w.indexer.Process(ctx, path)
		switch {
		case err != nil && ingestion.IsSoftFailure(err):
			w.logger.Warn("skipping document", "path", path, "err", err)
		case err != nil:
			w.logger.Error("error ingesting document", "path", path, "err", err)
		default:
			w.logger.Info("re-indexed document", "path", path, "status", res.Status, "records", res.Records)
		}
	}
}
