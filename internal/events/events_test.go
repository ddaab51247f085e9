package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticeframe/gateway/internal/binding"
	"github.com/latticeframe/gateway/internal/cache"
	"github.com/latticeframe/gateway/internal/filter"
	"github.com/latticeframe/gateway/internal/principal"
)

type fakeBinding struct {
	searchResult binding.SearchResult
	facetsResult binding.FacetsResult
	gotScope     *string
	gotFilters   filter.Filters
}

func (f *fakeBinding) Search(ctx context.Context, filters filter.Filters, scope *string) (binding.SearchResult, error) {
	f.gotScope = scope
	f.gotFilters = filters
	return f.searchResult, nil
}

func (f *fakeBinding) Facets(ctx context.Context, dimension string, filters filter.Filters, scope *string) (binding.FacetsResult, error) {
	return f.facetsResult, nil
}

func (f *fakeBinding) Count(ctx context.Context, filters filter.Filters, groupBy []string, scope *string) (binding.CountResult, error) {
	return binding.CountResult{}, nil
}

func (f *fakeBinding) SQL(ctx context.Context, query string, params map[string]any) (binding.SQLResult, error) {
	return binding.SQLResult{}, nil
}

func TestScopePlatformSeesEverything(t *testing.T) {
	h := New(&fakeBinding{}, nil, Config{})
	scope, apiErr := h.Scope(principal.Principal{Authenticated: true, Level: principal.LevelPlatform, OrgID: "acme"})
	require.Nil(t, apiErr)
	assert.Nil(t, scope)
}

func TestScopeOrgScoped(t *testing.T) {
	h := New(&fakeBinding{}, nil, Config{})
	scope, apiErr := h.Scope(principal.Principal{Authenticated: true, OrgID: "acme"})
	require.Nil(t, apiErr)
	require.NotNil(t, scope)
	assert.Equal(t, "acme", *scope)
}

func TestScopeAnonymousRejectedWhenAuthRequired(t *testing.T) {
	h := New(&fakeBinding{}, nil, Config{RequireAuth: true})
	_, apiErr := h.Scope(principal.Principal{})
	require.NotNil(t, apiErr)
	assert.Equal(t, "UNAUTHORIZED", string(apiErr.Code))
}

func TestListWithFiltersReturnsCursors(t *testing.T) {
	fb := &fakeBinding{
		searchResult: binding.SearchResult{
			Data: []map[string]any{
				{"ts": "2026-07-29T00:00:00Z"},
				{"ts": "2026-07-30T00:00:00Z"},
			},
			Total: 2,
		},
		facetsResult: binding.FacetsResult{Facets: []binding.Facet{{Value: "webhook", Count: 2}}, Total: 2},
	}
	h := New(fb, nil, Config{})
	res, apiErr := h.List(context.Background(), principal.Principal{Authenticated: true, OrgID: "acme"}, filter.Filters{"type": {{Op: filter.Eq, Value: "webhook"}}}, ListOptions{})
	require.Nil(t, apiErr)
	assert.Equal(t, "2026-07-30T00:00:00Z", res.NextCursor)
	assert.Equal(t, "2026-07-29T00:00:00Z", res.PrevCursor)
	require.NotNil(t, fb.gotScope)
	assert.Equal(t, "acme", *fb.gotScope)
}

func TestDiscoveryCaches(t *testing.T) {
	fb := &fakeBinding{
		searchResult: binding.SearchResult{Data: []map[string]any{{"ts": "2026-07-30T00:00:00Z"}}},
		facetsResult: binding.FacetsResult{Facets: []binding.Facet{{Value: "webhook", Count: 1}}, Total: 1},
	}
	mem := cache.NewMemory(1)
	h := New(fb, mem, Config{})
	ctx := context.Background()
	p := principal.Principal{Authenticated: true, OrgID: "acme"}

	res1, apiErr := h.List(ctx, p, nil, ListOptions{})
	require.Nil(t, apiErr)
	assert.Equal(t, 1, res1.Total)

	fb.searchResult.Data = nil // subsequent calls should hit the cache, not this
	res2, apiErr := h.List(ctx, p, nil, ListOptions{})
	require.Nil(t, apiErr)
	assert.Equal(t, res1.NextCursor, res2.NextCursor)
}

func TestByTypeAddsEqualityFilter(t *testing.T) {
	fb := &fakeBinding{}
	h := New(fb, nil, Config{})
	_, apiErr := h.ByType(context.Background(), principal.Principal{Authenticated: true, OrgID: "acme"}, "webhook", nil, ListOptions{})
	require.Nil(t, apiErr)
	assert.Contains(t, fb.gotFilters["type"], filter.Condition{Op: filter.Eq, Value: "webhook"})
}

func TestIsCategory(t *testing.T) {
	h := New(&fakeBinding{}, nil, Config{Categories: []string{"commits", "errors"}})
	assert.True(t, h.IsCategory("commits"))
	assert.False(t, h.IsCategory("bogus"))
}
