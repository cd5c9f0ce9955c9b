package daemon

import (
	"context"
	"time"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/alucardeht/fstspell/internal/rpc"
)

// Client calls the daemon over its socket.
type Client struct {
	conn    *jsonrpc2.Conn
	timeout time.Duration
}

// Dial connects to the daemon at socketPath. timeout bounds the dial and
// every call made without its own deadline.
func Dial(ctx context.Context, socketPath string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = rpc.DefaultTimeout
	}
	nc, err := dialSocket(socketPath, timeout)
	if err != nil {
		return nil, err
	}
	stream := jsonrpc2.NewBufferedStream(nc, jsonrpc2.PlainObjectCodec{})
	conn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(ignoreRequests))
	return &Client{conn: conn, timeout: timeout}, nil
}

func ignoreRequests(context.Context, *jsonrpc2.Conn, *jsonrpc2.Request) (any, error) {
	return nil, nil
}

// Call invokes method and decodes its result. Engine errors come back with
// their kind.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if result == nil {
		result = &struct{}{}
	}
	return rpc.FromRPCError(c.conn.Call(ctx, method, params, result))
}

func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
