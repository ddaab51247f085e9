// Package binding declares the external-collaborator contracts the gateway
// core dispatches against: the events query service and the database/CRUD
// storage engine. Per spec.md §1 Non-goals, the core never implements these
// itself — internal/upstream provides the one reference implementation used
// in tests and local development.
package binding

import (
	"context"

	"github.com/latticeframe/gateway/internal/filter"
)

// SearchResult is the events binding's paginated result shape.
type SearchResult struct {
	Data    []map[string]any `json:"data"`
	Total   int              `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
	HasMore bool             `json:"hasMore"`
}

// Facet is one value/count pair within a FacetsResult.
type Facet struct {
	Value any `json:"value"`
	Count int `json:"count"`
}

// FacetsResult is the per-dimension facet breakdown used by $facets and
// unfiltered /events discovery.
type FacetsResult struct {
	Facets []Facet `json:"facets"`
	Total  int     `json:"total"`
}

// CountResult is the $count and grouped-count payload shape.
type CountResult struct {
	Count  int              `json:"count"`
	Groups []map[string]any `json:"groups,omitempty"`
}

// SQLResult is the raw-query escape hatch some events backends expose.
type SQLResult struct {
	Data    []map[string]any `json:"data"`
	Rows    int              `json:"rows"`
	Elapsed float64          `json:"elapsed"`
}

// ListResult is the database binding's paginated list shape.
type ListResult struct {
	Data    []map[string]any `json:"data"`
	Total   int              `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
	HasMore bool             `json:"hasMore"`
}

// EventsBinding is the events convention's storage contract (spec.md §4.13).
// scope is nil for an L4 principal that sees everything, and non-nil
// (typically an org id) for a scoped principal.
type EventsBinding interface {
	Search(ctx context.Context, filters filter.Filters, scope *string) (SearchResult, error)
	Facets(ctx context.Context, dimension string, filters filter.Filters, scope *string) (FacetsResult, error)
	Count(ctx context.Context, filters filter.Filters, groupBy []string, scope *string) (CountResult, error)
	SQL(ctx context.Context, query string, params map[string]any) (SQLResult, error)
}

// DatabaseBinding is the database/CRUD convention's storage contract
// (spec.md §4.14).
type DatabaseBinding interface {
	Create(ctx context.Context, model string, data map[string]any) (map[string]any, error)
	Get(ctx context.Context, model, id string) (map[string]any, error)
	Update(ctx context.Context, model, id string, data map[string]any) (map[string]any, error)
	Delete(ctx context.Context, model, id string) error
	List(ctx context.Context, model string, filters filter.Filters, sort []filter.SortField, limit, offset int) (ListResult, error)
	Search(ctx context.Context, model, query string, limit int) (ListResult, error)
	Count(ctx context.Context, model string, filters filter.Filters) (int, error)
}
