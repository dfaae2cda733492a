// Package sync reconciles one signed-in user's local store with the
// remote backend. A single engine instance exists per active session;
// at most one reconciliation pass runs at a time, and triggers arriving
// mid-pass coalesce into one follow-up pass.
package sync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cardboxapp/cardbox/internal/remote"
	"github.com/cardboxapp/cardbox/internal/store"
)

const (
	// DefaultDebounce batches bursts of local mutations into one pass.
	DefaultDebounce = 2 * time.Second
	// DefaultInterval drives the periodic pass that catches remote
	// updates from other devices.
	DefaultInterval = 15 * time.Second

	pullBatchSize = 500
)

// Options tune an engine. Zero values fall back to defaults.
type Options struct {
	Debounce time.Duration
	Interval time.Duration
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Engine owns the sync state for one signed-in user.
type Engine struct {
	store  *store.Store
	remote remote.Store
	logger *slog.Logger
	userID string

	debounce time.Duration
	interval time.Duration
	now      func() time.Time

	mu        sync.Mutex
	isSyncing bool
	pending   bool
	timer     *time.Timer
	closed    bool

	stopPeriodic chan struct{}
	wg           sync.WaitGroup
}

// New creates an engine for the given user session. Call Start to begin
// periodic passes and Close at sign-out.
func New(st *store.Store, rs remote.Store, userID string, logger *slog.Logger, opts Options) *Engine {
	if opts.Debounce == 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Interval == 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Engine{
		store:    st,
		remote:   rs,
		logger:   logger,
		userID:   userID,
		debounce: opts.Debounce,
		interval: opts.Interval,
		now:      opts.Clock,
	}
}

// Start launches the periodic pass loop. It returns immediately.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.closed || e.stopPeriodic != nil {
		e.mu.Unlock()
		return
	}
	e.stopPeriodic = make(chan struct{})
	stop := e.stopPeriodic
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := e.SyncOnce(ctx, false); err != nil {
					e.logger.Warn("periodic sync failed", "user", e.userID, "error", err)
				}
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RequestSync notes that local state changed and schedules a pass after
// the debounce window. Bursts of mutations collapse into one pass; a
// request arriving while a pass is in flight queues exactly one rerun.
func (e *Engine) RequestSync(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.pending = true
	if e.timer != nil {
		return
	}
	e.timer = time.AfterFunc(e.debounce, func() {
		e.mu.Lock()
		e.timer = nil
		e.mu.Unlock()
		if err := e.SyncOnce(ctx, false); err != nil {
			e.logger.Warn("debounced sync failed", "user", e.userID, "error", err)
		}
	})
}

// OnFocus runs a pull-inclusive pass immediately. The UI calls this when
// the window regains focus, so edits made on another device show up
// without waiting for the next periodic tick.
func (e *Engine) OnFocus(ctx context.Context) error {
	return e.SyncOnce(ctx, true)
}

// SyncOnce runs one reconciliation pass: fetch the remote snapshot,
// merge, push local changes, flush queued deletions, then advance the
// watermark. A failed pass leaves the watermark untouched; the next
// trigger retries the whole pass, which is idempotent.
//
// At most one pass runs at a time. A call arriving mid-pass sets the
// pending flag and returns nil; the running pass reruns once afterward.
func (e *Engine) SyncOnce(ctx context.Context, forcePull bool) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	if e.isSyncing {
		e.pending = true
		e.mu.Unlock()
		return nil
	}
	e.isSyncing = true
	e.pending = false
	e.mu.Unlock()

	err := e.runPass(ctx, forcePull)

	e.mu.Lock()
	e.isSyncing = false
	rerun := e.pending && !e.closed
	e.pending = false
	e.mu.Unlock()

	if err != nil {
		e.logger.Warn("sync pass failed", "user", e.userID, "error", err)
		return err
	}
	if rerun {
		return e.SyncOnce(ctx, false)
	}
	return nil
}

// QueueCardDelete records a remote deletion for a pushed card and
// schedules a pass. Store.DeleteCardCascade already enqueues the cloud
// id when it deletes the card; this is for callers deleting through
// other paths.
func (e *Engine) QueueCardDelete(ctx context.Context, cloudID string) error {
	if cloudID == "" {
		return nil
	}
	if err := e.store.EnqueueRemoteDelete(ctx, cloudID); err != nil {
		return err
	}
	e.RequestSync(ctx)
	return nil
}

// Close tears the engine down at sign-out: the debounce timer is
// stopped, the periodic loop exits, and any in-flight pass is waited
// out. No pass starts after Close returns.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if e.stopPeriodic != nil {
		close(e.stopPeriodic)
		e.stopPeriodic = nil
	}
	e.mu.Unlock()

	e.wg.Wait()
}
