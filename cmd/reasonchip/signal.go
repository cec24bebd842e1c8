package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// withSignalCancel returns a context cancelled on SIGINT/SIGTERM/SIGHUP
// (spec §5 "Broker and Worker install handlers for the standard
// interrupt/terminate/hangup signals, each setting a single shutdown
// sentinel that triggers orderly drain"), grounded in goa-ai's
// example/cmd/assistant main signal-to-context wiring.
func withSignalCancel(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		select {
		case <-c:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(c)
	}()
	return ctx, cancel
}
