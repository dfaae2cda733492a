package providers

import (
	"context"
	"path/filepath"
	"time"

	"github.com/samber/do/v2"

	"github.com/cardboxapp/cardbox/internal/backup"
	"github.com/cardboxapp/cardbox/internal/config"
	"github.com/cardboxapp/cardbox/internal/logger"
	"github.com/cardboxapp/cardbox/internal/remote"
	"github.com/cardboxapp/cardbox/internal/search"
	"github.com/cardboxapp/cardbox/internal/service"
	"github.com/cardboxapp/cardbox/internal/store"
	"github.com/cardboxapp/cardbox/internal/sync"
	"github.com/cardboxapp/cardbox/internal/watcher"
)

// StoreHandle wraps the local card store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideLocalStore provides the badger-backed card store.
func ProvideLocalStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	st, err := store.Open(cfg.StorePath(), log.Logger)
	if err != nil {
		return nil, err
	}
	log.Info("Local store opened", "path", cfg.StorePath())
	return &StoreHandle{Store: st}, nil
}

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the bleve card index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	idx, err := search.NewIndex(search.Options{
		Path:   cfg.SearchIndexPath(),
		Logger: log.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &SearchIndexHandle{Index: idx}, nil
}

// RemoteSession is the signed-in backend session. Client and Session
// are nil when no sync server is configured.
type RemoteSession struct {
	Client  *remote.Client
	Session *remote.Session
}

// ProvideRemoteSession signs in against the configured sync backend.
func ProvideRemoteSession(i do.Injector) (*RemoteSession, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Sync.ServerURL == "" {
		log.Info("Sync disabled, running local-only")
		return &RemoteSession{}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), loginTimeout)
	defer cancel()

	client, sess, err := remote.Login(ctx, cfg.Sync.ServerURL, remote.Credentials{
		Email:      cfg.Sync.Email,
		Password:   cfg.Sync.Password,
		DeviceName: cfg.Sync.DeviceName,
	}, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Signed in to sync backend",
		"server", cfg.Sync.ServerURL,
		"user", sess.Email,
		"device", cfg.Sync.DeviceName,
	)
	return &RemoteSession{Client: client, Session: sess}, nil
}

// SyncEngineHandle wraps the sync engine with its lifecycle. Engine is
// nil when sync is disabled.
type SyncEngineHandle struct {
	*sync.Engine
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SyncEngineHandle) Shutdown() error {
	if h.Engine == nil {
		return nil
	}
	h.cancel()
	h.Engine.Close()
	return nil
}

// ProvideSyncEngine provides the running sync engine for the signed-in
// session, or an empty handle when sync is disabled.
func ProvideSyncEngine(i do.Injector) (*SyncEngineHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	session := do.MustInvoke[*RemoteSession](i)

	if session.Client == nil {
		return &SyncEngineHandle{}, nil
	}

	engine := sync.New(storeHandle.Store, session.Client, session.Session.UserID, log.Logger, sync.Options{
		Debounce: cfg.Sync.Debounce,
		Interval: cfg.Sync.Interval,
	})

	ctx, cancel := context.WithCancel(context.Background())
	engine.Start(ctx)

	// First pass pulls the remote snapshot so a fresh device hydrates
	// before the first tick.
	go func() {
		if err := engine.OnFocus(ctx); err != nil {
			log.Warn("Initial sync failed", "error", err)
		}
	}()

	log.Info("Sync engine started",
		"debounce", cfg.Sync.Debounce,
		"interval", cfg.Sync.Interval,
	)

	return &SyncEngineHandle{Engine: engine, cancel: cancel}, nil
}

// BackupJob runs periodic local backups.
type BackupJob struct {
	Service *backup.Service
	cancel  context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (j *BackupJob) Shutdown() error {
	j.cancel()
	return nil
}

// ProvideBackupJob provides the daily local backup job.
func ProvideBackupJob(i do.Injector) (*BackupJob, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	svc := backup.NewService(storeHandle.Store, filepath.Join(cfg.Data.BasePath, "backups"), log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		// One backup at startup, then daily.
		for {
			if _, err := svc.Create(ctx); err != nil {
				log.Warn("Backup failed", "error", err)
			} else if err := svc.Prune(backupKeep); err != nil {
				log.Warn("Backup prune failed", "error", err)
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()

	return &BackupJob{Service: svc, cancel: cancel}, nil
}

// PackWatcherHandle wraps the pack drop watcher with its lifecycle.
type PackWatcherHandle struct {
	*watcher.Watcher
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *PackWatcherHandle) Shutdown() error {
	h.cancel()
	return h.Stop()
}

// ProvidePackWatcher watches {data}/packs and imports dropped pack
// files.
func ProvidePackWatcher(i do.Injector) (*PackWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	cards := do.MustInvoke[*service.CardService](i)

	w, err := watcher.New(filepath.Join(cfg.Data.BasePath, "packs"), log.Logger, watcher.Options{})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		cancel()
		return nil, err
	}

	go func() {
		for {
			select {
			case ev, ok := <-w.Events():
				if !ok {
					return
				}
				result, err := cards.ImportPackFile(ctx, ev.Path)
				if err != nil {
					log.Warn("Pack import failed", "path", ev.Path, "error", err)
					continue
				}
				log.Info("Pack file imported",
					"path", ev.Path,
					"imported", result.Imported,
					"skipped", result.Skipped,
				)
			case <-ctx.Done():
				return
			}
		}
	}()

	return &PackWatcherHandle{Watcher: w, cancel: cancel}, nil
}

// ProvideSyncNotifier provides the mutation nudge target for services.
func ProvideSyncNotifier(i do.Injector) (service.SyncNotifier, error) {
	handle := do.MustInvoke[*SyncEngineHandle](i)
	if handle.Engine == nil {
		return service.NoopNotifier{}, nil
	}
	return handle.Engine, nil
}
