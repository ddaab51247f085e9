// This file implements the Streamable HTTP transport for /mcp (MCP spec
// 2025-03-26) and the GET/POST /rpc surface, both dispatching against the
// same Registry as the URL function-call transport (spec.md §4.10).
package registry

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/latticeframe/gateway/internal/apierr"
)

const maxMCPBody = 10 * 1024 * 1024

// HTTPTransport wraps an MCPServer with the Streamable HTTP transport and
// an adjacent GET/POST /rpc handler reading from the same Registry.
type HTTPTransport struct {
	mcp      *MCPServer
	reg      *Registry
	logger   *zap.Logger
	sessions sync.Map // sessionID -> time.Time (createdAt)
}

func NewHTTPTransport(mcp *MCPServer, reg *Registry, logger *zap.Logger) *HTTPTransport {
	return &HTTPTransport{mcp: mcp, reg: reg, logger: logger}
}

// ServeMCP handles POST/GET/DELETE /mcp.
func (h *HTTPTransport) ServeMCP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodGet:
		h.handleGet(w, r)
	case http.MethodDelete:
		h.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
	}
}

func (h *HTTPTransport) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxMCPBody))
	if err != nil {
		http.Error(w, `{"error":"failed to read request body"}`, http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	if len(body) == 0 {
		http.Error(w, `{"error":"empty request body"}`, http.StatusBadRequest)
		return
	}

	if strings.HasPrefix(strings.TrimSpace(string(body)), "[") {
		h.handleBatch(w, r, body)
		return
	}
	h.handleSingle(w, r, body)
}

func (h *HTTPTransport) handleSingle(w http.ResponseWriter, r *http.Request, body []byte) {
	var peek struct {
		ID     json.RawMessage `json:"id,omitempty"`
		Method string          `json:"method,omitempty"`
	}
	if err := json.Unmarshal(body, &peek); err != nil {
		h.writeJSONError(w, http.StatusBadRequest, ErrCodeParse, "parse error", err.Error())
		return
	}

	resp := h.mcp.HandleMessage(r.Context(), body)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if peek.Method == "initialize" && resp.Error == nil {
		w.Header().Set("Mcp-Session-Id", h.createSession())
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPTransport) handleBatch(w http.ResponseWriter, r *http.Request, body []byte) {
	var messages []json.RawMessage
	if err := json.Unmarshal(body, &messages); err != nil {
		h.writeJSONError(w, http.StatusBadRequest, ErrCodeParse, "parse error", err.Error())
		return
	}
	if len(messages) == 0 {
		h.writeJSONError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "empty batch", nil)
		return
	}

	var responses []*RPCResponse
	for _, msg := range messages {
		if resp := h.mcp.HandleMessage(r.Context(), msg); resp != nil {
			responses = append(responses, resp)
		}
	}
	if len(responses) == 0 {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	h.writeJSON(w, http.StatusOK, responses)
}

// handleGet serves the SSE stream per the Streamable HTTP spec. This
// server has no server-initiated messages to push, so it reports 405 as
// the spec permits.
func (h *HTTPTransport) handleGet(w http.ResponseWriter, r *http.Request) {
	accept := r.Header.Get("Accept")
	if !strings.Contains(accept, "text/event-stream") {
		http.Error(w, `{"error":"Accept header must include text/event-stream"}`, http.StatusBadRequest)
		return
	}
	w.Header().Set("Allow", "POST, DELETE")
	http.Error(w, `{"error":"SSE stream not supported; use POST for requests"}`, http.StatusMethodNotAllowed)
}

func (h *HTTPTransport) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("Mcp-Session-Id")
	if sessionID == "" {
		http.Error(w, `{"error":"Mcp-Session-Id header required"}`, http.StatusBadRequest)
		return
	}
	if _, ok := h.sessions.LoadAndDelete(sessionID); !ok {
		http.Error(w, `{"error":"session not found"}`, http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *HTTPTransport) createSession() string {
	b := make([]byte, 16)
	id := fmt.Sprintf("session-%d", time.Now().UnixNano())
	if _, err := rand.Read(b); err == nil {
		id = hex.EncodeToString(b)
	}
	h.sessions.Store(id, time.Now())
	return id
}

func (h *HTTPTransport) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to write mcp response", zap.Error(err))
	}
}

func (h *HTTPTransport) writeJSONError(w http.ResponseWriter, httpStatus int, code int, message string, data any) {
	h.writeJSON(w, httpStatus, &RPCResponse{JSONRPC: "2.0", Error: &RPCError{Code: code, Message: message, Data: data}})
}

// rpcRequest is the POST /rpc body shape from spec.md §4.10.
type rpcRequest struct {
	Path []string `json:"path"`
	Args []any    `json:"args"`
}

// rpcMethod is one entry in GET /rpc's {methods:[...]} listing.
type rpcMethod struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Example     string `json:"example,omitempty"`
}

// ServeRPC handles GET/POST /rpc.
func (h *HTTPTransport) ServeRPC(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listMethods(w)
	case http.MethodPost:
		h.callMethod(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
	}
}

func (h *HTTPTransport) listMethods(w http.ResponseWriter) {
	entries := h.reg.List()
	methods := make([]rpcMethod, len(entries))
	for i, e := range entries {
		methods[i] = rpcMethod{Name: e.Name, Description: e.Description, Example: e.Example}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"methods": methods})
}

func (h *HTTPTransport) callMethod(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxMCPBody)).Decode(&req); err != nil || len(req.Path) == 0 {
		writeAPIError(w, apierr.New(apierr.InvalidRPCRequest, "request body must include a non-empty \"path\""))
		return
	}

	name := req.Path[0]
	entry, ok := h.reg.Get(name)
	if !ok {
		writeAPIError(w, apierr.New(apierr.FunctionNotFound, fmt.Sprintf("no such function: %s", name)))
		return
	}

	call := CallFromArgs(name, req.Args, nil)
	result, err := entry.Handler(r.Context(), call)
	if err != nil {
		writeAPIError(w, apierr.New(apierr.FunctionError, err.Error()))
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func writeAPIError(w http.ResponseWriter, e *apierr.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": e})
}
