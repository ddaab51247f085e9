package gatewayhttp

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/latticeframe/gateway/internal/apierr"
	"github.com/latticeframe/gateway/internal/envelope"
	"github.com/latticeframe/gateway/internal/meta"
	"github.com/latticeframe/gateway/internal/principal"
	"github.com/latticeframe/gateway/internal/respmode"
	"github.com/latticeframe/gateway/internal/router"
)

// dispatch switches on route.Kind, matching the classification spec.md
// §4.3 produces, and renders each outcome through the response envelope.
func (g *Gateway) dispatch(w http.ResponseWriter, r *http.Request, route *router.Route, flags respmode.Flags, p principal.Principal, start time.Time) {
	switch route.Kind {
	case router.KindUnknown:
		if route.Path == "" || route.Path == "/" || trimSlashes(route.Path) == "" {
			g.serveLanding(w, r, flags, start)
			return
		}
		g.writeError(w, r, flags, apierr.New(apierr.NotFound, "no route matches this path"), start)

	case router.KindFunctionCall:
		g.dispatchFunctionCall(w, r, route, flags, start)

	case router.KindMeta:
		g.dispatchMeta(w, r, route, flags, start)

	case router.KindSearch:
		g.dispatchSearch(w, r, route, flags, start)

	case router.KindCollection:
		g.dispatchCollection(w, r, route, flags, p, start)

	case router.KindEntity:
		g.dispatchEntity(w, r, route, flags, p, start)

	case router.KindCollectionAction:
		g.dispatchCollectionAction(w, r, route, flags, p, start)

	case router.KindEntityAction:
		g.dispatchEntityAction(w, r, route, flags, p, start)

	default:
		g.writeError(w, r, flags, apierr.New(apierr.NotFound, "no route matches this path"), start)
	}
}

func (g *Gateway) dispatchFunctionCall(w http.ResponseWriter, r *http.Request, route *router.Route, flags respmode.Flags, start time.Time) {
	if g.deps.Functions == nil {
		g.writeError(w, r, flags, apierr.New(apierr.FunctionNotFound, "no function registry configured"), start)
		return
	}
	entry, ok := g.deps.Functions.Get(route.Call.Name)
	if !ok {
		g.writeError(w, r, flags, apierr.New(apierr.FunctionNotFound, "no such function: "+route.Call.Name), start)
		return
	}
	result, err := entry.Handler(r.Context(), *route.Call)
	if err != nil {
		g.writeError(w, r, flags, apierr.New(apierr.FunctionError, err.Error()), start)
		return
	}
	g.writeData(w, r, flags, result, start)
}

func (g *Gateway) dispatchMeta(w http.ResponseWriter, r *http.Request, route *router.Route, flags respmode.Flags, start time.Time) {
	result, apiErr := meta.Dispatch(r.Context(), route, mountPrefix(route.Tenant), g.deps.MetaDeps)
	if apiErr != nil {
		g.writeError(w, r, flags, apiErr, start)
		return
	}
	if flags.Array {
		result = arrayifyMeta(result)
	}
	g.writeData(w, r, flags, result, start)
}

// arrayifyMeta converts the name->url maps $pageSize/$sort render by
// default into a structured [{label,url}] array when ?array is set, per
// spec.md §6's "array: collections as structured array instead of
// name→url map".
func arrayifyMeta(v any) any {
	m, ok := v.(map[string]string)
	if !ok {
		return v
	}
	out := make([]map[string]string, 0, len(m))
	for label, url := range m {
		out = append(out, map[string]string{"label": label, "url": url})
	}
	return out
}

// dispatchSearch handles the top-level GET /search?q=… full-text search
// (spec.md §6), fanning the query out across every registered database
// model and concatenating matches.
func (g *Gateway) dispatchSearch(w http.ResponseWriter, r *http.Request, route *router.Route, flags respmode.Flags, start time.Time) {
	if g.deps.CRUD == nil || g.deps.CRUDSchemas == nil {
		g.writeError(w, r, flags, apierr.New(apierr.NotFound, "no searchable models configured"), start)
		return
	}
	if route.Query == "" {
		g.writeData(w, r, flags, map[string]any{"data": []map[string]any{}, "total": 0}, start)
		return
	}

	limit := atoiOr(r.URL.Query().Get("limit"), 25)
	var combined []map[string]any
	for _, model := range g.deps.CRUDSchemas.Models() {
		res, apiErr := g.deps.CRUD.Search(r.Context(), model, route.Query, limit)
		if apiErr != nil {
			continue
		}
		combined = append(combined, res.Data...)
	}

	g.write(w, r, flags, envelope.Options{
		HasData: true,
		Data:    combined,
		Total:   intPtr(len(combined)),
		Limit:   intPtr(limit),
	}, http.StatusOK, start)
}

func mountPrefix(tenantSlug string) string {
	if tenantSlug == "" || tenantSlug == "default" {
		return ""
	}
	return "/~" + tenantSlug
}

// decodeJSONBody reads and decodes r's body into a map, used by create and
// update handlers.
func decodeJSONBody(r *http.Request) (map[string]any, error) {
	var out map[string]any
	if r.Body == nil {
		return map[string]any{}, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return map[string]any{}, nil
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return out, nil
}
