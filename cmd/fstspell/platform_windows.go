//go:build windows

package main

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

const daemonBinary = "fstspell-daemon.exe"

func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: windows.CREATE_NEW_PROCESS_GROUP | windows.DETACHED_PROCESS}
}

// killDaemon terminates the daemon and waits up to five seconds for it to
// go away.
func killDaemon(pid int) error {
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE|windows.SYNCHRONIZE, false, uint32(pid))
	if err != nil {
		return nil
	}
	defer windows.CloseHandle(h)

	if err := windows.TerminateProcess(h, 0); err != nil {
		return err
	}
	_, err = windows.WaitForSingleObject(h, 5000)
	return err
}
