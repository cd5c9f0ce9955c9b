package daemon

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

// ErrSocketInUse means another process answers on the socket path.
var ErrSocketInUse = errors.New("socket in use by a running daemon")

type SocketListener struct {
	path     string
	listener net.Listener
}

func NewSocketListener(socketPath string) *SocketListener {
	return &SocketListener{path: socketPath}
}

// Start listens on the socket with owner-only access. A socket file left
// by a dead daemon is replaced; one that still answers is not.
func (sl *SocketListener) Start() error {
	if err := os.MkdirAll(filepath.Dir(sl.path), 0700); err != nil {
		return err
	}

	if _, err := os.Lstat(sl.path); err == nil {
		if IsSocketResponsive(sl.path) {
			return fmt.Errorf("%s: %w", sl.path, ErrSocketInUse)
		}
		log.Info("removing stale socket", "socket", sl.path)
		if err := os.Remove(sl.path); err != nil {
			return err
		}
	}

	listener, err := net.Listen("unix", sl.path)
	if err != nil {
		return err
	}
	if err := os.Chmod(sl.path, 0700); err != nil {
		listener.Close()
		return err
	}
	sl.listener = listener
	return nil
}

func (sl *SocketListener) Accept() (net.Conn, error) {
	if sl.listener == nil {
		return nil, fmt.Errorf("listener not started")
	}
	return sl.listener.Accept()
}

// Close stops listening and removes the socket file.
func (sl *SocketListener) Close() error {
	if sl.listener == nil {
		return nil
	}
	err := sl.listener.Close()
	sl.listener = nil
	os.Remove(sl.path)
	return err
}

// dialSocket connects to the daemon socket within timeout.
func dialSocket(path string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("unix", path, timeout)
}
