package providers

import "time"

const (
	// shutdownTimeout bounds graceful shutdown of long-lived services.
	shutdownTimeout = 30 * time.Second

	// loginTimeout bounds the startup sign-in against the sync backend.
	loginTimeout = 30 * time.Second

	// backupKeep is how many local backup archives to retain.
	backupKeep = 5
)
