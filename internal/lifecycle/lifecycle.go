// file: internal/lifecycle/lifecycle.go

package lifecycle

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webhook-gateway/internal/logger"
)

// stopReason records why a running application instance was stopped
type stopReason int

const (
	stopShutdown stopReason = iota
	stopReload
	stopFailed
)

// RunWithReload runs an application until SIGTERM/SIGINT, rebuilding it on
// every SIGHUP.
//
// The createApp function is called on initial startup and each reload to
// create a fresh application instance. If createApp returns an error the
// function returns it; a bad key during reload is as fatal as at startup.
//
// Example usage:
//
//	createApp := func() (Application, error) {
//	    cfg, err := config.Load(configPath)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return app.NewGatewayApp(cfg, nil)
//	}
//	err := lifecycle.RunWithReload(createApp, logger)
func RunWithReload(createApp func() (Application, error), log *logger.Logger) error {
	return runWithSignals(createApp, log, notifySignals)
}

// signalSource returns shutdown and reload channels plus a stop function
type signalSource func() (shutdown, reload <-chan os.Signal, stop func())

func notifySignals() (<-chan os.Signal, <-chan os.Signal, func()) {
	shutdownSig := make(chan os.Signal, 1)
	reloadSig := make(chan os.Signal, 1)
	signal.Notify(shutdownSig, os.Interrupt, syscall.SIGTERM)
	signal.Notify(reloadSig, syscall.SIGHUP)

	return shutdownSig, reloadSig, func() {
		signal.Stop(shutdownSig)
		signal.Stop(reloadSig)
	}
}

func runWithSignals(createApp func() (Application, error), log *logger.Logger, signals signalSource) error {
	for reloadCount := 0; ; reloadCount++ {
		if reloadCount > 0 {
			log.Info("initiating application reload", "reloadCount", reloadCount)
		}

		shutdownSig, reloadSig, stopSignals := signals()

		startTime := time.Now()
		application, err := createApp()
		if err != nil {
			stopSignals()
			if reloadCount > 0 {
				log.Error("FATAL: failed to reload application",
					"reloadCount", reloadCount,
					"error", err)
				log.Info("process will exit - fix the error and restart")
			}
			return fmt.Errorf("failed to create application: %w", err)
		}

		if reloadCount > 0 {
			log.Info("application reload completed successfully",
				"reloadCount", reloadCount,
				"duration", time.Since(startTime))
		}

		reason, runErr := runOnce(application, log, shutdownSig, reloadSig)
		stopSignals()

		closeApp(application, log)

		if reason != stopReload {
			log.Info("shutdown complete")
			return runErr
		}
		log.Info("reloading configuration and sender keys")
	}
}

// runOnce runs the application until a signal arrives or Run fails, then
// cancels its context and waits for Run to return.
func runOnce(application Application, log *logger.Logger, shutdownSig, reloadSig <-chan os.Signal) (stopReason, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Run(ctx)
	}()

	var reason stopReason
	select {
	case sig := <-shutdownSig:
		log.Info("shutdown signal received - initiating graceful shutdown", "signal", sig)
		reason = stopShutdown
	case <-reloadSig:
		log.Info("SIGHUP received - initiating reload")
		log.Info("draining queued webhooks and closing connections")
		reason = stopReload
	case err := <-errCh:
		log.Error("application stopped with error", "error", err)
		return stopFailed, err
	}

	cancel()
	if err := <-errCh; err != nil {
		log.Error("application returned error during shutdown", "error", err)
	}
	return reason, nil
}

func closeApp(application Application, log *logger.Logger) {
	log.Info("closing application")
	closeStart := time.Now()
	if err := application.Close(); err != nil {
		log.Error("error during application close",
			"error", err,
			"duration", time.Since(closeStart))
		return
	}
	log.Info("application closed successfully", "duration", time.Since(closeStart))
}
