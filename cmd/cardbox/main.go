// Package main provides the entry point for the cardbox client daemon.
// It owns the local store, the search index and the sync engine; UIs
// talk to the services it wires up.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/cardboxapp/cardbox/internal/di"
	"github.com/cardboxapp/cardbox/internal/di/providers"
	"github.com/cardboxapp/cardbox/internal/logger"
)

func main() {
	injector := di.NewClientContainer()

	if err := di.BootstrapClient(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap cardbox: %v\n", err)
		os.Exit(1)
	}

	log := do.MustInvoke[*logger.Logger](injector)
	engineHandle := do.MustInvoke[*providers.SyncEngineHandle](injector)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// SIGUSR1 forces a pull-inclusive pass, the headless equivalent of
	// the window regaining focus.
	focus := make(chan os.Signal, 1)
	signal.Notify(focus, syscall.SIGUSR1)

	for {
		select {
		case <-focus:
			if engineHandle.Engine == nil {
				continue
			}
			go func() {
				if err := engineHandle.OnFocus(context.Background()); err != nil {
					log.Warn("Focus sync failed", "error", err)
				}
			}()
		case <-quit:
			log.Info("Shutting down cardbox gracefully...")

			// The DI container shuts services down in reverse
			// dependency order.
			if err := injector.Shutdown(); err != nil {
				log.Error("Shutdown error", "error", err)
			}

			log.Info("See you tomorrow")
			return
		}
	}
}
