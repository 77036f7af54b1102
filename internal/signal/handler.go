// Package signal provides signal handling for graceful shutdown of the ce-dps CLI.
//
// SetupSignalHandler registers handlers for SIGINT and SIGTERM so that a
// command in flight sees its context cancelled and the process can exit with
// the interrupted exit code instead of dying mid-write.
package signal

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// Handler records whether an interrupt signal was received.
type Handler struct {
	interrupted atomic.Bool
	done        chan struct{}
}

// SetupSignalHandler registers SIGINT and SIGTERM handlers.
// When a signal is received, it marks the handler interrupted, calls the
// onInterrupt callback (if non-nil), then cancels the context.
//
// The listening goroutine terminates when either a signal is received or the
// context is canceled; signal delivery is restored to the default behaviour
// when it exits.
//
// Example usage:
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	h := signal.SetupSignalHandler(ctx, cancel, func() {
//	    logging.Warn("Interrupted")
//	})
//	...
//	if h.Interrupted() {
//	    os.Exit(exitcode.Interrupted)
//	}
func SetupSignalHandler(ctx context.Context, cancel context.CancelFunc, onInterrupt func()) *Handler {
	h := &Handler{done: make(chan struct{})}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer close(h.done)
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			h.interrupted.Store(true)
			if onInterrupt != nil {
				onInterrupt()
			}
			cancel()
		case <-ctx.Done():
			return
		}
	}()
	return h
}

// Interrupted reports whether a signal was received.
func (h *Handler) Interrupted() bool {
	return h.interrupted.Load()
}

// Done is closed once the handler stopped listening.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
