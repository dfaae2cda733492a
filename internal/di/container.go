// Package di provides dependency injection configuration for the
// cardbox client daemon and the cardboxd server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/cardboxapp/cardbox/internal/auth"
	"github.com/cardboxapp/cardbox/internal/config"
	"github.com/cardboxapp/cardbox/internal/di/providers"
	"github.com/cardboxapp/cardbox/internal/logger"
	"github.com/cardboxapp/cardbox/internal/server"
	"github.com/cardboxapp/cardbox/internal/service"
)

// NewClientContainer configures the DI container for the cardbox
// client daemon.
func NewClientContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideValidator)

	// Local storage
	do.Provide(injector, providers.ProvideLocalStore)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Sync layer
	do.Provide(injector, providers.ProvideRemoteSession)
	do.Provide(injector, providers.ProvideSyncEngine)
	do.Provide(injector, providers.ProvideSyncNotifier)

	// Workers
	do.Provide(injector, providers.ProvideBackupJob)
	do.Provide(injector, providers.ProvidePackWatcher)

	// Business services
	do.Provide(injector, providers.ProvideCardService)
	do.Provide(injector, providers.ProvideReviewService)
	do.Provide(injector, providers.ProvideSearchService)
	do.Provide(injector, providers.ProvideSettingsService)

	return injector
}

// BootstrapClient triggers lazy initialization of the client services.
func BootstrapClient(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*logger.Logger](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.SearchIndexHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.RemoteSession](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.SyncEngineHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.BackupJob](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*service.CardService](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*service.ReviewService](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*service.SearchService](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*service.SettingsService](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.PackWatcherHandle](injector); err != nil {
		return err
	}
	return nil
}

// NewServerContainer configures the DI container for cardboxd.
func NewServerContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideValidator)

	// Auth layer
	do.Provide(injector, providers.ProvideAuthKey)
	do.Provide(injector, providers.ProvideTokenService)

	// Database layer
	do.Provide(injector, providers.ProvideDatabase)

	// Services
	do.Provide(injector, providers.ProvideAuthService)

	// Workers
	do.Provide(injector, providers.ProvideSessionCleanupJob)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// BootstrapServer triggers lazy initialization of the server stack.
func BootstrapServer(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*logger.Logger](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[providers.AuthKey](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*auth.TokenService](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.DatabaseHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*server.AuthService](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.SessionCleanupJob](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}
	return nil
}
