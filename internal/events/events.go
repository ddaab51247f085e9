// Package events implements the events convention (spec.md §4.13): a
// faceted-browse and filtered-query surface over an external EventsBinding,
// mounted at GET /events, GET /events/:type, and GET /{category} for each
// configured curated category.
package events

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/latticeframe/gateway/internal/apierr"
	"github.com/latticeframe/gateway/internal/binding"
	"github.com/latticeframe/gateway/internal/cache"
	"github.com/latticeframe/gateway/internal/filter"
	"github.com/latticeframe/gateway/internal/principal"
)

// Config carries the events convention's recognized option surface (the
// "Configuration objects" design note): categories, auth requirement, and
// the discovery-cache TTL.
type Config struct {
	Categories  []string
	RequireAuth bool
	DiscoveryTTL time.Duration
}

// Handler serves the events convention's three routes against a binding and
// a discovery cache.
type Handler struct {
	binding binding.EventsBinding
	cache   cache.Cache
	cfg     Config
}

// New builds a Handler. cache may be nil, in which case discovery results
// are computed fresh on every request.
func New(b binding.EventsBinding, c cache.Cache, cfg Config) *Handler {
	if cfg.DiscoveryTTL <= 0 {
		cfg.DiscoveryTTL = 5 * time.Minute
	}
	return &Handler{binding: b, cache: c, cfg: cfg}
}

// IsCategory reports whether name is a configured curated top-level
// category (e.g. "commits", "errors", "traces").
func (h *Handler) IsCategory(name string) bool {
	for _, c := range h.cfg.Categories {
		if c == name {
			return true
		}
	}
	return false
}

// Result is the data the caller (internal/gatewayhttp) folds into the
// response envelope.
type Result struct {
	Data       []map[string]any `json:"data,omitempty"`
	Discover   any              `json:"discover,omitempty"`
	Total      int              `json:"total"`
	Limit      int              `json:"limit"`
	Offset     int              `json:"offset"`
	HasMore    bool             `json:"hasMore"`
	NextCursor string           `json:"nextCursor,omitempty"`
	PrevCursor string           `json:"prevCursor,omitempty"`
}

// ListOptions carries the pagination/time-scoping query flags common to
// every events route.
type ListOptions struct {
	Limit  int
	Offset int
	Since  string
}

// Scope resolves the principal's data scope per spec.md §4.13: an L4
// (platform) principal sees everything (scope = nil), an authenticated
// principal is scoped to its org, and an anonymous principal is rejected
// with 401 when auth is required.
func (h *Handler) Scope(p principal.Principal) (*string, *apierr.Error) {
	if p.IsPlatform() {
		return nil, nil
	}
	if p.Authenticated {
		org := p.OrgID
		return &org, nil
	}
	if h.cfg.RequireAuth {
		return nil, apierr.New(apierr.Unauthorized, "authentication is required to browse events")
	}
	return nil, nil
}

// List handles GET /events. With no filters it returns faceted discovery
// (a facet breakdown by "type" plus a recent-events list), cached for the
// configured TTL keyed by (scope, since). With filters present it returns
// the actual matching data plus facets.
func (h *Handler) List(ctx context.Context, p principal.Principal, filters filter.Filters, opts ListOptions) (*Result, *apierr.Error) {
	scope, apiErr := h.Scope(p)
	if apiErr != nil {
		return nil, apiErr
	}

	if len(filters) == 0 {
		return h.discover(ctx, scope, opts)
	}
	return h.search(ctx, scope, filters, opts)
}

// ByType handles GET /events/:type, a drill-down that adds an equality
// filter on the "type" field.
func (h *Handler) ByType(ctx context.Context, p principal.Principal, typ string, filters filter.Filters, opts ListOptions) (*Result, *apierr.Error) {
	scope, apiErr := h.Scope(p)
	if apiErr != nil {
		return nil, apiErr
	}
	filters = withTypeFilter(filters, typ)
	return h.search(ctx, scope, filters, opts)
}

// Category handles GET /{category} for a configured curated category,
// equivalent to ByType scoped to that category's event type.
func (h *Handler) Category(ctx context.Context, p principal.Principal, category string, filters filter.Filters, opts ListOptions) (*Result, *apierr.Error) {
	return h.ByType(ctx, p, category, filters, opts)
}

func withTypeFilter(filters filter.Filters, typ string) filter.Filters {
	out := filter.Filters{}
	for k, v := range filters {
		out[k] = v
	}
	out["type"] = append(out["type"], filter.Condition{Op: filter.Eq, Value: typ})
	return out
}

func (h *Handler) search(ctx context.Context, scope *string, filters filter.Filters, opts ListOptions) (*Result, *apierr.Error) {
	if opts.Since != "" {
		filters = withSinceFilter(filters, opts.Since)
	}

	searchResult, facetsResult, err := h.searchAndFacets(ctx, filters, scope)
	if err != nil {
		return nil, apierr.New(apierr.InternalError, "events search failed").Wrap(err)
	}

	res := &Result{
		Data:    searchResult.Data,
		Discover: facetsDiscover(facetsResult),
		Total:   searchResult.Total,
		Limit:   searchResult.Limit,
		Offset:  searchResult.Offset,
		HasMore: searchResult.HasMore,
	}
	res.NextCursor, res.PrevCursor = cursors(searchResult.Data)
	return res, nil
}

// searchAndFacets runs search and facets concurrently and waits for both,
// per spec.md §5 ("handlers may launch parallel upstream calls... and must
// wait for all before responding"). The first error cancels the group's
// context and is returned; the other call's result is discarded.
func (h *Handler) searchAndFacets(ctx context.Context, filters filter.Filters, scope *string) (binding.SearchResult, binding.FacetsResult, error) {
	var searchResult binding.SearchResult
	var facetsResult binding.FacetsResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := h.binding.Search(gctx, filters, scope)
		searchResult = res
		return err
	})
	g.Go(func() error {
		res, err := h.binding.Facets(gctx, "type", filters, scope)
		facetsResult = res
		return err
	})

	if err := g.Wait(); err != nil {
		return binding.SearchResult{}, binding.FacetsResult{}, err
	}
	return searchResult, facetsResult, nil
}

func (h *Handler) discover(ctx context.Context, scope *string, opts ListOptions) (*Result, *apierr.Error) {
	key := discoveryKey(scope, opts.Since)

	if h.cache != nil {
		if cached, ok, err := h.cache.Get(ctx, key); err == nil && ok {
			var res Result
			if json.Unmarshal(cached, &res) == nil {
				return &res, nil
			}
		}
	}

	filters := filter.Filters{}
	if opts.Since != "" {
		filters = withSinceFilter(filters, opts.Since)
	}

	facetsResult, err := h.binding.Facets(ctx, "type", filters, scope)
	if err != nil {
		return nil, apierr.New(apierr.InternalError, "events discovery failed").Wrap(err)
	}

	recentLimit := opts.Limit
	if recentLimit <= 0 {
		recentLimit = 25
	}
	recent, err := h.binding.Search(ctx, filters, scope)
	if err != nil {
		return nil, apierr.New(apierr.InternalError, "events discovery failed").Wrap(err)
	}

	res := &Result{
		Data:     recent.Data,
		Discover: facetsDiscover(facetsResult),
		Total:    facetsResult.Total,
		Limit:    recentLimit,
		Offset:   0,
		HasMore:  recent.HasMore,
	}
	res.NextCursor, res.PrevCursor = cursors(recent.Data)

	if h.cache != nil {
		if encoded, err := json.Marshal(res); err == nil {
			_ = h.cache.Set(ctx, key, encoded, h.cfg.DiscoveryTTL)
		}
	}
	return res, nil
}

func discoveryKey(scope *string, since string) string {
	s := "platform"
	if scope != nil {
		s = *scope
	}
	return "events:discover:" + s + ":" + since
}

func withSinceFilter(filters filter.Filters, since string) filter.Filters {
	out := filter.Filters{}
	for k, v := range filters {
		out[k] = v
	}
	out["ts"] = append(out["ts"], filter.Condition{Op: filter.Gte, Value: since})
	return out
}

func facetsDiscover(f binding.FacetsResult) map[string]any {
	return map[string]any{"type": f.Facets, "total": f.Total}
}

// cursors derives the next/prev cursor from data's first and last "ts"
// fields, per spec.md §4.13 ("nextCursor = last.ts, prevCursor = first.ts").
func cursors(data []map[string]any) (next, prev string) {
	if len(data) == 0 {
		return "", ""
	}
	return tsString(data[len(data)-1]), tsString(data[0])
}

func tsString(row map[string]any) string {
	v, ok := row["ts"]
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return jsonNumber(t)
	default:
		return ""
	}
}

func jsonNumber(f float64) string {
	b, err := json.Marshal(f)
	if err != nil {
		return ""
	}
	return string(b)
}
