//go:build windows

package main

import (
	"os"
	"os/signal"
)

// shutdownSignals delivers interrupts; Windows only supports os.Interrupt.
func shutdownSignals() <-chan os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	return sigChan
}

// reloadSignals never fires on Windows.
func reloadSignals() <-chan os.Signal {
	return make(chan os.Signal)
}
