//go:build windows

package main

import (
	"context"
	"os"
	"os/signal"
)

// notifyContext returns a context that is canceled when an interrupt
// signal is received. Call stop() to release resources.
// Note: syscall.SIGTERM is not available on Windows.
func notifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt)
}

// notifyMemoryPressure returns a channel that never fires; Windows has no
// user signal to map memory pressure to.
func notifyMemoryPressure() (<-chan os.Signal, func()) {
	return make(chan os.Signal), func() {}
}
