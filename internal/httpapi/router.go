package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/alucardeht/fstspell/internal/errors"
	"github.com/alucardeht/fstspell/internal/logger"
	"github.com/alucardeht/fstspell/internal/rpc"
	"github.com/alucardeht/fstspell/pkg/protocol"
)

var log = logger.ForComponent("httpapi")

// MaxBodySize caps request bodies.
const MaxBodySize = 2 << 20

type controller struct {
	registry *rpc.Registry
}

// NewRouter exposes the registry's methods over HTTP. Bodies and results
// use the JSON-RPC param and result shapes.
func NewRouter(registry *rpc.Registry) http.Handler {
	h := &controller{registry: registry}

	router := mux.NewRouter()
	router.Use(noCache())
	router.HandleFunc("/status", h.status).Methods(http.MethodGet)
	router.Handle("/health", h.call(protocol.MethodHealth)).Methods(http.MethodGet)

	spelling := router.PathPrefix("/spelling/api").Subrouter()
	spelling.Handle("/check", h.call(protocol.MethodCheck)).Methods(http.MethodPost)
	spelling.Handle("/suggest", h.call(protocol.MethodSuggest)).Methods(http.MethodPost)
	spelling.Handle("/isCorrect", h.call(protocol.MethodIsCorrect)).Methods(http.MethodPost)
	spelling.Handle("/learn", h.call(protocol.MethodLearn)).Methods(http.MethodPost)
	spelling.Handle("/unlearn", h.call(protocol.MethodUnlearn)).Methods(http.MethodPost)
	spelling.Handle("/dict/{locale}", h.call(protocol.MethodLearned)).Methods(http.MethodGet)

	grammar := router.PathPrefix("/grammar/api").Subrouter()
	grammar.Handle("/proofread", h.call(protocol.MethodProofread)).Methods(http.MethodPost)
	grammar.Handle("/ignoreRule", h.call(protocol.MethodIgnoreRule)).Methods(http.MethodPost)
	grammar.Handle("/resetIgnoreRules", h.call(protocol.MethodResetIgnoreRules)).Methods(http.MethodPost)

	router.Handle("/locales", h.call(protocol.MethodLocales)).Methods(http.MethodGet)
	router.Handle("/locales/{locale}", h.call(protocol.MethodHasLocale)).Methods(http.MethodGet)
	router.Handle("/resources/refresh", h.call(protocol.MethodRefresh)).Methods(http.MethodPost)

	return router
}

func noCache() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-cache")
			next.ServeHTTP(w, r)
		})
	}
}

func (h *controller) status(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("fstspell is alive\n"))
}

// call serves one method. POST bodies are its params; GET routes take
// them from the path.
func (h *controller) call(method string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params, err := readParams(w, r)
		if err != nil {
			errorResponse(w, http.StatusBadRequest, errors.InvalidArgument, err.Error())
			return
		}

		result, err := h.registry.Execute(r.Context(), method, params)
		if err != nil {
			status := Status(err)
			if status >= http.StatusInternalServerError {
				log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
			}
			errorResponse(w, status, errors.KindOf(err), err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(result)
	})
}

func readParams(w http.ResponseWriter, r *http.Request) (json.RawMessage, error) {
	if r.Method == http.MethodGet {
		vars := mux.Vars(r)
		if len(vars) == 0 {
			return nil, nil
		}
		return json.Marshal(vars)
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodySize))
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Status maps an error to its HTTP status.
func Status(err error) int {
	switch rpc.Code(err) {
	case protocol.CodeMethodNotFound, protocol.CodeResourceNotFound:
		return http.StatusNotFound
	case protocol.CodeInvalidParams, protocol.CodeInvalidArgument:
		return http.StatusBadRequest
	case protocol.CodeUseAfterInvalidate:
		return http.StatusServiceUnavailable
	case protocol.CodeCorruptArchive, protocol.CodeUnsupportedVersion, protocol.CodeEngineInitError:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func errorResponse(w http.ResponseWriter, code int, kind errors.Kind, message string) {
	body := errorBody{Error: message}
	if kind != errors.Unknown {
		body.Kind = kind.String()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
