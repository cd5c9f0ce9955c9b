package rpc

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/alucardeht/fstspell/internal/engine"
	"github.com/alucardeht/fstspell/internal/errors"
	"github.com/alucardeht/fstspell/internal/fst"
	"github.com/alucardeht/fstspell/internal/grammar"
	"github.com/alucardeht/fstspell/internal/resources"
	"github.com/alucardeht/fstspell/pkg/protocol"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	dir := t.TempDir()

	b := fst.NewBuilder(fst.Metadata{Locale: "se", MaxEdits: 2})
	for _, w := range []string{"dát", "lea", "čáppa", "giella"} {
		b.Add(w, 1)
	}
	data, err := b.Bytes()
	if err != nil {
		t.Fatalf("failed to build archive: %v", err)
	}
	os.WriteFile(filepath.Join(dir, "se.fsta"), data, 0644)

	m := grammar.Manifest{Locale: "se", Rules: []grammar.RuleSpec{
		{ID: "spacing", Kind: grammar.KindSpacing},
		{ID: "spelling", Kind: grammar.KindSpelling},
	}}
	if err := grammar.WriteFile(filepath.Join(dir, "se.grb"), m, nil); err != nil {
		t.Fatalf("failed to write bundle: %v", err)
	}

	reg := resources.NewRegistry(dir)
	if _, _, err := reg.Rescan(); err != nil {
		t.Fatalf("Rescan failed: %v", err)
	}
	e := engine.New(reg, nil, engine.Options{})
	t.Cleanup(func() { e.Close() })
	return e
}

// dial connects a client to a handler over an in-memory pipe.
func dial(t *testing.T, h *Handler) *jsonrpc2.Conn {
	t.Helper()
	ctx := context.Background()
	a, b := net.Pipe()

	server := jsonrpc2.NewConn(ctx, jsonrpc2.NewBufferedStream(a, jsonrpc2.PlainObjectCodec{}), h.JSONRPC())
	client := jsonrpc2.NewConn(ctx, jsonrpc2.NewBufferedStream(b, jsonrpc2.PlainObjectCodec{}),
		jsonrpc2.HandlerWithError(func(context.Context, *jsonrpc2.Conn, *jsonrpc2.Request) (any, error) {
			return nil, nil
		}))
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client
}

func rpcCode(t *testing.T, err error) int64 {
	t.Helper()
	var rpcErr *jsonrpc2.Error
	if !stderrors.As(err, &rpcErr) {
		t.Fatalf("expected a JSON-RPC error, got %v", err)
	}
	return rpcErr.Code
}

func TestInitializeAndList(t *testing.T) {
	h := NewHandler(NewServiceRegistry(newTestEngine(t), 0))
	conn := dial(t, h)
	ctx := context.Background()

	var init protocol.InitializeResult
	err := conn.Call(ctx, protocol.MethodInitialize, protocol.InitializeParams{
		ClientInfo: protocol.ClientInfo{Name: "test", Version: "1"},
	}, &init)
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	if init.ServerInfo.Name != protocol.ServerName {
		t.Errorf("expected server name %s, got %s", protocol.ServerName, init.ServerInfo.Name)
	}
	if h.ClientInfo().Name != "test" {
		t.Errorf("expected client info recorded, got %+v", h.ClientInfo())
	}

	var list protocol.ListResult
	if err := conn.Call(ctx, protocol.MethodList, nil, &list); err != nil {
		t.Fatalf("methods/list failed: %v", err)
	}
	found := map[string]bool{}
	for _, m := range list.Methods {
		found[m.Name] = true
	}
	for _, name := range []string{protocol.MethodSuggest, protocol.MethodProofread, protocol.MethodLearn, protocol.MethodPing} {
		if !found[name] {
			t.Errorf("expected %s in methods/list", name)
		}
	}

	var empty protocol.Empty
	if err := conn.Call(ctx, protocol.MethodPing, nil, &empty); err != nil {
		t.Errorf("ping failed: %v", err)
	}
}

func TestSpellMethods(t *testing.T) {
	conn := dial(t, NewHandler(NewServiceRegistry(newTestEngine(t), 0)))
	ctx := context.Background()

	var correct protocol.IsCorrectResult
	if err := conn.Call(ctx, protocol.MethodIsCorrect, protocol.WordParams{Locale: "se-NO", Word: "Giella"}, &correct); err != nil {
		t.Fatalf("isCorrect failed: %v", err)
	}
	if !correct.Correct {
		t.Error("expected Giella to be correct")
	}

	var sugg protocol.SuggestResult
	if err := conn.Call(ctx, protocol.MethodSuggest, protocol.SuggestParams{Locale: "se", Word: "cappa", Limit: 3}, &sugg); err != nil {
		t.Fatalf("suggest failed: %v", err)
	}
	if len(sugg.Suggestions) == 0 || sugg.Suggestions[0] != "čáppa" {
		t.Errorf("expected čáppa, got %v", sugg.Suggestions)
	}

	var check protocol.CheckResult
	err := conn.Call(ctx, protocol.MethodCheck, protocol.CheckParams{Locale: "se", Words: []string{"dát", "giela", "lea"}}, &check)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if len(check.Misspellings) != 1 || check.Misspellings[0].Index != 1 {
		t.Errorf("expected giela at index 1, got %+v", check.Misspellings)
	}
}

func TestProofreadMethod(t *testing.T) {
	conn := dial(t, NewHandler(NewServiceRegistry(newTestEngine(t), 0)))

	var res protocol.ProofreadResult
	err := conn.Call(context.Background(), protocol.MethodProofread, protocol.ProofreadParams{Locale: "se", Text: "Dát lea  čáppa giella."}, &res)
	if err != nil {
		t.Fatalf("proofread failed: %v", err)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("expected 1 error, got %+v", res.Errors)
	}
	e := res.Errors[0]
	if e.RuleID != "spacing" || e.Start != 8 || e.CharStart != 7 {
		t.Errorf("expected spacing at byte 8 / char 7, got %+v", e)
	}
}

func TestHostLocaleParams(t *testing.T) {
	conn := dial(t, NewHandler(NewServiceRegistry(newTestEngine(t), 0)))
	ctx := context.Background()

	private := &protocol.HostLocale{Language: "qlt", Variant: "sme-x-lule"}
	var correct protocol.IsCorrectResult
	if err := conn.Call(ctx, protocol.MethodIsCorrect, protocol.WordParams{HostLocale: private, Word: "giella"}, &correct); err != nil {
		t.Fatalf("isCorrect with a private-use host locale failed: %v", err)
	}
	if !correct.Correct {
		t.Error("expected giella to be correct under qlt sme-x-lule")
	}

	var res protocol.ProofreadResult
	norway := &protocol.HostLocale{Language: "se", Country: "NO"}
	if err := conn.Call(ctx, protocol.MethodProofread, protocol.ProofreadParams{HostLocale: norway, Text: "Dát lea  čáppa giella."}, &res); err != nil {
		t.Fatalf("proofread with a host locale failed: %v", err)
	}
	if len(res.Errors) != 1 || res.Errors[0].RuleID != "spacing" {
		t.Errorf("expected one spacing error, got %+v", res.Errors)
	}

	var has protocol.HasLocaleResult
	if err := conn.Call(ctx, protocol.MethodHasLocale, protocol.LocaleParams{HostLocale: private}, &has); err != nil || !has.Available {
		t.Errorf("expected the private-use locale available, got %v %v", has.Available, err)
	}
	err := conn.Call(ctx, protocol.MethodHasLocale, protocol.LocaleParams{HostLocale: &protocol.HostLocale{Language: "qlt"}}, &has)
	if err != nil || has.Available {
		t.Errorf("expected qlt without a variant unavailable, got %v %v", has.Available, err)
	}

	err = conn.Call(ctx, protocol.MethodSuggest, protocol.SuggestParams{HostLocale: &protocol.HostLocale{}, Word: "giela"}, &protocol.SuggestResult{})
	if code := rpcCode(t, err); code != protocol.CodeInvalidArgument {
		t.Errorf("expected InvalidArgument for an empty host locale, got %d", code)
	}
}

func TestErrorKindsReachTheClient(t *testing.T) {
	conn := dial(t, NewHandler(NewServiceRegistry(newTestEngine(t), 0)))
	ctx := context.Background()

	var sugg protocol.SuggestResult
	err := conn.Call(ctx, protocol.MethodSuggest, protocol.SuggestParams{Locale: "fi", Word: "sauna"}, &sugg)
	if code := rpcCode(t, err); code != protocol.CodeResourceNotFound {
		t.Errorf("expected code %d, got %d", protocol.CodeResourceNotFound, code)
	}
	if !errors.IsResourceNotFound(FromRPCError(err)) {
		t.Errorf("expected ResourceNotFound after conversion, got %v", FromRPCError(err))
	}

	err = conn.Call(ctx, protocol.MethodLearn, protocol.WordParams{Locale: "se", Word: "x"}, nil)
	if code := rpcCode(t, err); code != protocol.CodeInvalidArgument {
		t.Errorf("expected code %d without a store, got %d", protocol.CodeInvalidArgument, code)
	}

	err = conn.Call(ctx, "spell/nothing", nil, nil)
	if code := rpcCode(t, err); code != protocol.CodeMethodNotFound {
		t.Errorf("expected method not found, got %d", code)
	}

	err = conn.Call(ctx, protocol.MethodCheck, map[string]any{"locale": "se", "words": "dát"}, nil)
	if code := rpcCode(t, err); code != protocol.CodeInvalidParams {
		t.Errorf("expected invalid params, got %d", code)
	}
}

func TestPanicsStayInsideTheCall(t *testing.T) {
	reg := NewRegistry(0)
	reg.Register(Method{Name: "boom", Call: func(context.Context, json.RawMessage) (any, error) {
		panic("kaboom")
	}})
	conn := dial(t, NewHandler(reg))
	ctx := context.Background()

	err := conn.Call(ctx, "boom", nil, nil)
	if code := rpcCode(t, err); code != protocol.CodeInternalError {
		t.Errorf("expected internal error, got %d", code)
	}
	var empty protocol.Empty
	if err := conn.Call(ctx, protocol.MethodPing, nil, &empty); err != nil {
		t.Errorf("expected connection to survive a panic, got %v", err)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	reg := NewRegistry(0)
	m := Method{Name: "a", Call: func(context.Context, json.RawMessage) (any, error) { return nil, nil }}
	if err := reg.Register(m); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := reg.Register(m); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestCodeMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int64
	}{
		{errors.E(errors.ResourceNotFound, "", "", ""), protocol.CodeResourceNotFound},
		{errors.E(errors.CorruptArchive, "", "", ""), protocol.CodeCorruptArchive},
		{errors.E(errors.UnsupportedVersion, "", "", ""), protocol.CodeUnsupportedVersion},
		{errors.E(errors.EngineInitError, "", "", ""), protocol.CodeEngineInitError},
		{errors.E(errors.UseAfterInvalidate, "", "", ""), protocol.CodeUseAfterInvalidate},
		{errors.E(errors.PipelineError, "", "", ""), protocol.CodePipelineError},
		{errors.E(errors.InvalidArgument, "", "", ""), protocol.CodeInvalidArgument},
		{errors.Tag(errors.E(errors.CorruptArchive, "", "", ""), "loading"), protocol.CodeCorruptArchive},
		{context.DeadlineExceeded, protocol.CodePipelineError},
		{stderrors.New("plain"), protocol.CodeInternalError},
	}
	for _, tt := range tests {
		if got := Code(tt.err); got != tt.want {
			t.Errorf("Code(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
