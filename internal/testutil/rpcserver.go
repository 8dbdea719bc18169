package testutil

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/goccy/go-json"
)

// RPCHandler answers one JSON-RPC call. Returning an error produces a
// JSON-RPC error object instead of a result.
type RPCHandler func(params []json.RawMessage) (any, error)

// RPCServer is a fake Solana JSON-RPC node backed by per-method handlers.
type RPCServer struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]RPCHandler
	calls    map[string]int
	params   map[string][][]json.RawMessage
}

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      any               `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result"`
	Error   *rpcError `json:"error,omitempty"`
}

// NewRPCServer starts a fake node that is closed when the test ends.
// Methods without a handler answer with a "method not found" error.
func NewRPCServer(t *testing.T) *RPCServer {
	t.Helper()

	s := &RPCServer{
		handlers: make(map[string]RPCHandler),
		calls:    make(map[string]int),
		params:   make(map[string][][]json.RawMessage),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)

	return s
}

// Handle registers fn for method.
func (s *RPCServer) Handle(method string, fn RPCHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = fn
}

// Result makes method always answer with result.
func (s *RPCServer) Result(method string, result any) {
	s.Handle(method, func([]json.RawMessage) (any, error) {
		return result, nil
	})
}

// Fail makes method always answer with a JSON-RPC error.
func (s *RPCServer) Fail(method, message string) {
	s.Handle(method, func([]json.RawMessage) (any, error) {
		return nil, errors.New(message)
	})
}

// Calls returns how many times method was called.
func (s *RPCServer) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// Params returns the params of every call to method, in arrival order.
func (s *RPCServer) Params(method string) [][]json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]json.RawMessage(nil), s.params[method]...)
}

func (s *RPCServer) serve(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.calls[req.Method]++
	s.params[req.Method] = append(s.params[req.Method], req.Params)
	handler, ok := s.handlers[req.Method]
	s.mu.Unlock()

	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	switch {
	case !ok:
		resp.Error = &rpcError{Code: -32601, Message: "Method not found: " + req.Method}
	default:
		result, err := handler(req.Params)
		if err != nil {
			resp.Error = &rpcError{Code: -32000, Message: err.Error()}
		} else {
			resp.Result = result
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
