package rpc

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/alucardeht/fstspell/internal/logger"
	"github.com/alucardeht/fstspell/pkg/protocol"
)

var log = logger.ForComponent("rpc")

// Handler answers JSON-RPC requests from the methods of a registry plus
// the protocol methods initialize, ping and methods/list.
type Handler struct {
	registry *Registry

	mu         sync.Mutex
	clientInfo protocol.ClientInfo
}

func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

// JSONRPC returns the handler for a jsonrpc2 connection. Requests on one
// connection are served concurrently.
func (h *Handler) JSONRPC() jsonrpc2.Handler {
	return jsonrpc2.AsyncHandler(jsonrpc2.HandlerWithError(h.handle))
}

func (h *Handler) ClientInfo() protocol.ClientInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clientInfo
}

func (h *Handler) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	var params json.RawMessage
	if req.Params != nil {
		params = *req.Params
	}

	result, err := h.Handle(ctx, req.Method, params)
	if err != nil {
		if req.Notif {
			log.Warn("notification failed", "method", req.Method, "error", err)
			return nil, nil
		}
		return nil, ToRPCError(err)
	}
	return result, nil
}

// Handle dispatches one call by method name.
func (h *Handler) Handle(ctx context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case protocol.MethodInitialize:
		return typed(h.initialize)(ctx, params)
	case protocol.MethodPing:
		return protocol.Empty{}, nil
	case protocol.MethodList:
		return h.list(), nil
	}
	return h.registry.Execute(ctx, method, params)
}

func (h *Handler) initialize(ctx context.Context, p protocol.InitializeParams) (protocol.InitializeResult, error) {
	h.mu.Lock()
	h.clientInfo = p.ClientInfo
	h.mu.Unlock()

	log.Info("client initialized", "name", p.ClientInfo.Name, "version", p.ClientInfo.Version)

	names := append([]string{protocol.MethodInitialize, protocol.MethodPing, protocol.MethodList}, h.registry.Names()...)
	return protocol.InitializeResult{
		ServerInfo: protocol.ServerInfo{Name: protocol.ServerName, Version: protocol.Version},
		Methods:    names,
	}, nil
}

func (h *Handler) list() protocol.ListResult {
	methods := h.registry.List()
	out := protocol.ListResult{Methods: make([]protocol.MethodInfo, 0, len(methods)+3)}
	out.Methods = append(out.Methods,
		protocol.MethodInfo{Name: protocol.MethodInitialize, Description: "Exchange client and server info"},
		protocol.MethodInfo{Name: protocol.MethodPing, Description: "Check the connection"},
		protocol.MethodInfo{Name: protocol.MethodList, Description: "List the methods"},
	)
	for _, m := range methods {
		out.Methods = append(out.Methods, protocol.MethodInfo{Name: m.Name, Description: m.Description})
	}
	return out
}
