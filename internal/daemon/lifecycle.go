package daemon

import (
	"fmt"
	"path/filepath"
	"time"
)

// LifecycleManager keeps one daemon per base directory: an exclusive lock
// while it runs and an instance file for the CLI.
type LifecycleManager struct {
	lockFile     *LockFile
	instanceFile *InstanceFile
	socketPath   string
}

func NewLifecycleManager(baseDir, socketPath string) *LifecycleManager {
	return &LifecycleManager{
		lockFile:     NewLockFile(filepath.Join(baseDir, "daemon.lock")),
		instanceFile: NewInstanceFile(filepath.Join(baseDir, "daemon.pid")),
		socketPath:   socketPath,
	}
}

func (lm *LifecycleManager) AcquireInstanceLock() error {
	if err := lm.lockFile.Acquire(); err != nil {
		return fmt.Errorf("failed to acquire instance lock: %w", err)
	}
	return nil
}

// IsSocketResponsive reports whether a daemon accepts connections on the socket.
func (lm *LifecycleManager) IsSocketResponsive() bool {
	return IsSocketResponsive(lm.socketPath)
}

func IsSocketResponsive(socketPath string) bool {
	conn, err := dialSocket(socketPath, 500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// RegisterRunningDaemon records this process as the daemon serving the
// socket.
func (lm *LifecycleManager) RegisterRunningDaemon(httpAddr, version string) error {
	return lm.instanceFile.Write(Instance{
		Socket:   lm.socketPath,
		HTTPAddr: httpAddr,
		Version:  version,
	})
}

func (lm *LifecycleManager) Cleanup() {
	lm.instanceFile.Remove()
	lm.lockFile.Release()
}

func (lm *LifecycleManager) InstanceFile() *InstanceFile {
	return lm.instanceFile
}
