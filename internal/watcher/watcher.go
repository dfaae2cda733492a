// Package watcher monitors the pack drop directory. A pack file copied
// into the directory is reported once it has settled, so half-written
// files never reach the importer.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event reports one settled pack file.
type Event struct {
	Path string
}

// Options configures the watcher behavior.
type Options struct {
	// Pattern filters files by base name, e.g. "*.json".
	Pattern string
	// SettleDelay is how long a file must stay unchanged before its
	// event fires.
	SettleDelay time.Duration
}

func (o *Options) setDefaults() {
	if o.Pattern == "" {
		o.Pattern = "*.json"
	}
	if o.SettleDelay == 0 {
		o.SettleDelay = 500 * time.Millisecond
	}
}

// Watcher reports settled files appearing under one directory.
type Watcher struct {
	dir    string
	opts   Options
	fs     *fsnotify.Watcher
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer

	events chan Event
	done   chan struct{}
	wg     sync.WaitGroup
}

// New creates a watcher for dir, creating the directory when missing.
func New(dir string, logger *slog.Logger, opts Options) (*Watcher, error) {
	opts.setDefaults()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create watch dir: %w", err)
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fs.Add(dir); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &Watcher{
		dir:     dir,
		opts:    opts,
		fs:      fs,
		logger:  logger,
		pending: make(map[string]*time.Timer),
		events:  make(chan Event, 16),
		done:    make(chan struct{}),
	}, nil
}

// Events is the channel of settled pack files.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start begins watching. It returns immediately; events flow until the
// context is cancelled or Stop is called. Files already present in the
// directory are reported as well, so drops made while the daemon was
// down are not lost.
func (w *Watcher) Start(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("read watch dir: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() && w.matches(e.Name()) {
			w.schedule(filepath.Join(w.dir, e.Name()))
		}
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case ev, ok := <-w.fs.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				if !w.matches(filepath.Base(ev.Name)) {
					continue
				}
				w.schedule(ev.Name)
			case err, ok := <-w.fs.Errors:
				if !ok {
					return
				}
				w.logger.Warn("watch error", "dir", w.dir, "error", err)
			case <-ctx.Done():
				return
			case <-w.done:
				return
			}
		}
	}()

	w.logger.Info("watching pack directory", "dir", w.dir, "pattern", w.opts.Pattern)
	return nil
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.done)
	err := w.fs.Close()
	w.wg.Wait()

	w.mu.Lock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	return err
}

func (w *Watcher) matches(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	ok, err := filepath.Match(w.opts.Pattern, name)
	return err == nil && ok
}

// schedule (re)arms the settle timer for path. Every write pushes the
// timer back, so the event fires only after the file stops changing.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.opts.SettleDelay)
		return
	}
	w.pending[path] = time.AfterFunc(w.opts.SettleDelay, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		if _, err := os.Stat(path); err != nil {
			return
		}
		select {
		case w.events <- Event{Path: path}:
		case <-w.done:
		}
	})
}
