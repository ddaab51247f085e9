package gatewayhttp

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/latticeframe/gateway/internal/apierr"
	"github.com/latticeframe/gateway/internal/principal"
	"github.com/latticeframe/gateway/internal/registry"
	"github.com/latticeframe/gateway/internal/respmode"
)

// serveQA handles GET/POST /qa per spec.md §6 and §4.17: GET runs a single
// method named by ?method= (default tests/list), optionally scoped to
// ?names=a,b for tests/run; POST reads a JSON-RPC request body, matching
// the same dispatch the function registry uses for /rpc and /mcp.
func (g *Gateway) serveQA(w http.ResponseWriter, r *http.Request) {
	if g.deps.QA == nil {
		http.Error(w, `{"error":"qa surface not configured"}`, http.StatusNotFound)
		return
	}

	var req registry.RPCRequest
	switch r.Method {
	case http.MethodGet:
		method := r.URL.Query().Get("method")
		if method == "" {
			method = "tests/list"
		}
		req.JSONRPC = "2.0"
		req.Method = method
		if names := r.URL.Query().Get("names"); names != "" {
			params, _ := json.Marshal(map[string]any{"names": strings.Split(names, ",")})
			req.Params = params
		}
	case http.MethodPost:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			http.Error(w, `{"error":"failed to read request body"}`, http.StatusBadRequest)
			return
		}
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, `{"error":"invalid JSON-RPC request"}`, http.StatusBadRequest)
			return
		}
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	resp := g.deps.QA.Dispatch(r.Context(), req)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// serveMe handles GET /me, returning the resolved principal per spec.md
// §6 ("current principal").
func (g *Gateway) serveMe(w http.ResponseWriter, r *http.Request, p principal.Principal) {
	start := reqStart(r)
	flags := respmode.ParseFlags(r.URL.Query())
	g.writeData(w, r, flags, p, start)
}

const maxBodyBytes = 10 * 1024 * 1024

// serveProxy handles GET/POST /proxy/{mount}/*rest, forwarding to the
// configured upstream named mount, per spec.md §4.16 (added).
func (g *Gateway) serveProxy(w http.ResponseWriter, r *http.Request, trimmed string) {
	rest := restAfterSegment(trimmed, "proxy")
	segs := strings.SplitN(rest, "/", 2)
	mount := segs[0]
	var restPath string
	if len(segs) == 2 {
		restPath = segs[1]
	}

	handler, ok := g.deps.ProxyMounts[mount]
	if !ok {
		start := reqStart(r)
		flags := respmode.ParseFlags(r.URL.Query())
		g.writeError(w, r, flags, apierr.New(apierr.NotFound, "no proxy mounted at \""+mount+"\""), start)
		return
	}

	resp, apiErr := handler.Forward(r.Context(), "/proxy/"+mount, r.Method, restPath, r.URL.Query(), r.Body, r.Header)
	if apiErr != nil {
		start := reqStart(r)
		flags := respmode.ParseFlags(r.URL.Query())
		g.writeError(w, r, flags, apiErr, start)
		return
	}

	for k, vs := range resp.Headers {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}
