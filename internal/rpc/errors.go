package rpc

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/alucardeht/fstspell/internal/errors"
	"github.com/alucardeht/fstspell/pkg/protocol"
)

type methodNotFoundError struct {
	name string
}

func (e *methodNotFoundError) Error() string {
	return fmt.Sprintf("method not found: %s", e.name)
}

type invalidParamsError struct {
	err error
}

func (e *invalidParamsError) Error() string {
	return fmt.Sprintf("invalid params: %v", e.err)
}

func (e *invalidParamsError) Unwrap() error {
	return e.err
}

var kindCodes = map[errors.Kind]int64{
	errors.ResourceNotFound:   protocol.CodeResourceNotFound,
	errors.CorruptArchive:     protocol.CodeCorruptArchive,
	errors.UnsupportedVersion: protocol.CodeUnsupportedVersion,
	errors.EngineInitError:    protocol.CodeEngineInitError,
	errors.UseAfterInvalidate: protocol.CodeUseAfterInvalidate,
	errors.PipelineError:      protocol.CodePipelineError,
	errors.InvalidArgument:    protocol.CodeInvalidArgument,
}

// Code returns the JSON-RPC error code for err.
func Code(err error) int64 {
	var nf *methodNotFoundError
	var ip *invalidParamsError
	switch {
	case stderrors.As(err, &nf):
		return protocol.CodeMethodNotFound
	case stderrors.As(err, &ip):
		return protocol.CodeInvalidParams
	}
	if code, ok := kindCodes[errors.KindOf(err)]; ok {
		return code
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return protocol.CodePipelineError
	}
	return protocol.CodeInternalError
}

// ToRPCError converts err for the wire, carrying the kind name in data.
func ToRPCError(err error) *jsonrpc2.Error {
	var rpcErr *jsonrpc2.Error
	if stderrors.As(err, &rpcErr) {
		return rpcErr
	}
	out := &jsonrpc2.Error{Code: Code(err), Message: err.Error()}
	if kind := errors.KindOf(err); kind != errors.Unknown {
		out.SetError(protocol.ErrorData{Kind: kind.String()})
	}
	return out
}

// FromRPCError turns an error received from the daemon back into an engine
// error, so callers can test its kind.
func FromRPCError(err error) error {
	var rpcErr *jsonrpc2.Error
	if !stderrors.As(err, &rpcErr) {
		return err
	}
	if rpcErr.Data != nil {
		var data protocol.ErrorData
		if json.Unmarshal(*rpcErr.Data, &data) == nil {
			if kind := errors.ParseKind(data.Kind); kind != errors.Unknown {
				return errors.E(kind, "rpc", "", rpcErr.Message)
			}
		}
	}
	return err
}
