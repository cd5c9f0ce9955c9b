//go:build unix

package main

import (
	"os"
	"os/signal"
	"syscall"
)

// shutdownSignals delivers SIGINT and SIGTERM.
func shutdownSignals() <-chan os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	return sigChan
}

// reloadSignals delivers SIGHUP, which rescans the resource directories.
func reloadSignals() <-chan os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP)
	return sigChan
}
