//go:build unix

package main

import (
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

const daemonBinary = "fstspell-daemon"

// detach starts the daemon in its own session so it outlives the shell.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

// killDaemon asks the daemon to stop with SIGTERM and kills it if it is
// still there after five seconds.
func killDaemon(pid int) error {
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		return err
	}

	for i := 0; i < 50; i++ {
		if err := unix.Kill(pid, 0); err != nil {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	return unix.Kill(pid, unix.SIGKILL)
}
