package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"
)

// DefaultTimeout bounds a single method call.
const DefaultTimeout = 30 * time.Second

// Method is one callable entry point. Call receives the raw params, which
// are nil when the request carried none.
type Method struct {
	Name        string
	Description string
	Call        func(ctx context.Context, params json.RawMessage) (any, error)
}

type Registry struct {
	mu      sync.RWMutex
	methods map[string]Method
	timeout time.Duration
}

func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Registry{
		methods: make(map[string]Method),
		timeout: timeout,
	}
}

func (r *Registry) Register(m Method) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m.Name == "" || m.Call == nil {
		return fmt.Errorf("method needs a name and a call")
	}
	if _, exists := r.methods[m.Name]; exists {
		return fmt.Errorf("method already registered: %s", m.Name)
	}

	r.methods[m.Name] = m
	return nil
}

func (r *Registry) Get(name string) (Method, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.methods[name]
	return m, ok
}

// Execute runs a method under the registry timeout. A panicking method
// fails the call instead of the connection.
func (r *Registry) Execute(ctx context.Context, name string, params json.RawMessage) (result any, err error) {
	m, ok := r.Get(name)
	if !ok {
		return nil, &methodNotFoundError{name: name}
	}

	defer func() {
		if p := recover(); p != nil {
			log.Error("method panic recovered", "method", name, "panic", p, "stack", string(debug.Stack()))
			result, err = nil, fmt.Errorf("method %s panicked: %v", name, p)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	result, err = m.Call(ctx, params)
	log.Debug("method called", "method", name, "elapsed", time.Since(start), "error", err)
	return result, err
}

// List returns the methods sorted by name.
func (r *Registry) List() []Method {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Method, 0, len(r.methods))
	for _, m := range r.methods {
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func (r *Registry) Names() []string {
	methods := r.List()
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = m.Name
	}
	return names
}

// typed adapts a function over decoded params to a Method call.
func typed[P any, R any](f func(ctx context.Context, p P) (R, error)) func(context.Context, json.RawMessage) (any, error) {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p P
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, &invalidParamsError{err: err}
			}
		}
		return f(ctx, p)
	}
}
