package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/alucardeht/fstspell/internal/logger"
	"github.com/alucardeht/fstspell/internal/rpc"
)

var log = logger.ForComponent("daemon")

// Daemon serves a JSON-RPC handler on a unix socket, and optionally on
// stdio and over HTTP.
type Daemon struct {
	socketPath   string
	listener     *SocketListener
	handler      *rpc.Handler
	httpServer   *http.Server
	connections  map[*jsonrpc2.Conn]struct{}
	connMu       sync.Mutex
	shutdown     chan struct{}
	shutdownOnce sync.Once
	startTime    time.Time
}

func New(socketPath string, handler *rpc.Handler) *Daemon {
	return &Daemon{
		socketPath:  socketPath,
		listener:    NewSocketListener(socketPath),
		handler:     handler,
		connections: make(map[*jsonrpc2.Conn]struct{}),
		shutdown:    make(chan struct{}),
		startTime:   time.Now(),
	}
}

// Start listens on the socket and accepts connections in the background.
func (d *Daemon) Start() error {
	if err := d.listener.Start(); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", d.socketPath, err)
	}
	log.Info("daemon listening", "socket", d.socketPath)

	go d.acceptConnections()
	return nil
}

func (d *Daemon) acceptConnections() {
	for {
		nc, err := d.listener.Accept()
		if err != nil {
			select {
			case <-d.shutdown:
				return
			default:
				log.Warn("accept failed", "error", err)
				time.Sleep(50 * time.Millisecond)
				continue
			}
		}
		d.serve(jsonrpc2.NewBufferedStream(nc, jsonrpc2.PlainObjectCodec{}))
	}
}

// serve runs one connection until the peer disconnects.
func (d *Daemon) serve(stream jsonrpc2.ObjectStream) *jsonrpc2.Conn {
	conn := jsonrpc2.NewConn(context.Background(), stream, d.handler.JSONRPC())

	d.connMu.Lock()
	d.connections[conn] = struct{}{}
	d.connMu.Unlock()

	go func() {
		<-conn.DisconnectNotify()
		d.connMu.Lock()
		delete(d.connections, conn)
		d.connMu.Unlock()
	}()
	return conn
}

// ServeStdio serves one client on r and w with Content-Length framing, as
// editors speak to language servers. It returns when the client goes away
// or the daemon shuts down.
func (d *Daemon) ServeStdio(r io.ReadCloser, w io.WriteCloser) {
	conn := d.serve(jsonrpc2.NewBufferedStream(stdio{r, w}, jsonrpc2.VSCodeObjectCodec{}))
	select {
	case <-conn.DisconnectNotify():
	case <-d.shutdown:
	}
}

type stdio struct {
	io.ReadCloser
	w io.WriteCloser
}

func (s stdio) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

func (s stdio) Close() error {
	rerr := s.ReadCloser.Close()
	werr := s.w.Close()
	if rerr != nil {
		return rerr
	}
	return werr
}

// ServeHTTP serves h on addr in the background.
func (d *Daemon) ServeHTTP(addr string, h http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	d.httpServer = &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info("http api listening", "addr", ln.Addr().String())

	go func() {
		if err := d.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped", "error", err)
		}
	}()
	return nil
}

func (d *Daemon) Shutdown() {
	d.shutdownOnce.Do(func() {
		log.Info("daemon shutting down")
		close(d.shutdown)

		d.listener.Close()

		if d.httpServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			d.httpServer.Shutdown(ctx)
			cancel()
		}

		d.connMu.Lock()
		for conn := range d.connections {
			conn.Close()
		}
		d.connMu.Unlock()
	})
}

// Done is closed once Shutdown has been called.
func (d *Daemon) Done() <-chan struct{} {
	return d.shutdown
}

func (d *Daemon) SocketPath() string {
	return d.socketPath
}

func (d *Daemon) Uptime() time.Duration {
	return time.Since(d.startTime)
}

func (d *Daemon) Connections() int {
	d.connMu.Lock()
	defer d.connMu.Unlock()
	return len(d.connections)
}
