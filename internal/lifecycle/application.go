// file: internal/lifecycle/application.go

// Package lifecycle provides application lifecycle management including
// graceful shutdown and runtime reloading via SIGHUP signal.
package lifecycle

import "context"

// Application is a runnable application that supports graceful shutdown and
// being rebuilt on reload. The webhook gateway implements it; a reload
// creates a fresh instance so configuration and sender keys are re-read.
type Application interface {
	// Run starts the application and blocks until the context is cancelled.
	// Normal shutdown returns nil.
	Run(ctx context.Context) error

	// Close releases everything the application holds: HTTP servers, the
	// NATS connection, background collectors and the logger.
	//
	// Close should be idempotent and safe to call multiple times.
	Close() error
}
