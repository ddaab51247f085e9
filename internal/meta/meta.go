// Package meta implements the $name meta-resource dispatch table attached
// to collections and entities (spec.md §4.9): $pageSize, $sort, $count,
// $schema, $pages, $facets on collections; $schema, $history, $events on
// entities.
package meta

import (
	"context"
	"fmt"
	"sort"

	"github.com/latticeframe/gateway/internal/apierr"
	"github.com/latticeframe/gateway/internal/binding"
	"github.com/latticeframe/gateway/internal/filter"
	"github.com/latticeframe/gateway/internal/router"
)

// SortOption is one entry in a collection's configured sortable-fields list.
type SortOption struct {
	Label string
	Field string
	Dir   string // "asc" or "desc"
}

// SchemaProvider exposes the parsed JSON-schema for a model, when the
// database convention has one registered.
type SchemaProvider interface {
	Schema(model string) (map[string]any, bool)
}

// Counter returns a collection's total row count, or false if unavailable
// (the gateway then reports $count as null rather than guessing).
type Counter interface {
	Count(ctx context.Context, collection string) (int, bool, error)
}

// HistoryProvider returns an entity's versioned history, or false if none
// is configured.
type HistoryProvider interface {
	History(ctx context.Context, entityID string) (any, bool, error)
}

// EventsProvider returns an entity's associated event stream, or false if
// none is configured.
type EventsProvider interface {
	Events(ctx context.Context, entityID string) (any, bool, error)
}

// Deps bundles the optional collaborators the dispatch table consults.
// Every field may be nil; the corresponding $name then reports null rather
// than erroring, matching spec.md §4.9 ("...or null").
type Deps struct {
	Schema   SchemaProvider
	Counter  Counter
	History  HistoryProvider
	Events   EventsProvider
	EventsDB binding.EventsBinding

	PageSizes   []int
	SortOptions func(collection string) []SortOption
}

// Dispatch resolves a meta name against route, returning the JSON-able
// payload for the envelope's semantic data key. An *apierr.Error with code
// NOT_FOUND is returned for any name outside the dispatch table.
func Dispatch(ctx context.Context, route *router.Route, prefix string, deps Deps) (any, *apierr.Error) {
	if route.Kind != router.KindMeta || route.Meta == nil {
		return nil, apierr.New(apierr.BadRequest, "route is not a meta-resource")
	}
	target := route.Meta
	name := route.MetaName

	if target.Entity != nil {
		return dispatchEntity(ctx, name, *target.Entity, deps)
	}
	return dispatchCollection(ctx, name, target.Collection, prefix, deps)
}

func dispatchCollection(ctx context.Context, name, collection, prefix string, deps Deps) (any, *apierr.Error) {
	switch name {
	case "pageSize":
		sizes := deps.PageSizes
		if len(sizes) == 0 {
			sizes = []int{10, 25, 50, 100}
		}
		out := make(map[string]string, len(sizes))
		for _, n := range sizes {
			out[fmt.Sprintf("%d", n)] = fmt.Sprintf("%s/%s?limit=%d", prefix, collection, n)
		}
		return out, nil

	case "sort":
		var opts []SortOption
		if deps.SortOptions != nil {
			opts = deps.SortOptions(collection)
		}
		out := make(map[string]string, len(opts))
		for _, o := range opts {
			f := filter.SortField{Field: o.Field}
			if o.Dir == "desc" {
				f.Direction = filter.Desc
			} else {
				f.Direction = filter.Asc
			}
			out[o.Label] = fmt.Sprintf("%s/%s?sort=%s", prefix, collection, filter.SerializeSort([]filter.SortField{f}))
		}
		return out, nil

	case "count":
		if deps.Counter == nil {
			return nil, nil
		}
		n, ok, err := deps.Counter.Count(ctx, collection)
		if err != nil {
			return nil, apierr.New(apierr.InternalError, "count failed").Wrap(err)
		}
		if !ok {
			return nil, nil
		}
		return n, nil

	case "schema":
		return resolveSchema(collection, deps)

	case "pages":
		if deps.Counter == nil {
			return nil, nil
		}
		total, ok, err := deps.Counter.Count(ctx, collection)
		if err != nil {
			return nil, apierr.New(apierr.InternalError, "count failed").Wrap(err)
		}
		if !ok {
			return nil, nil
		}
		sizes := deps.PageSizes
		if len(sizes) == 0 {
			sizes = []int{10, 25, 50, 100}
		}
		out := make(map[string]int, len(sizes))
		for _, size := range sizes {
			if size <= 0 {
				continue
			}
			pages := total / size
			if total%size != 0 {
				pages++
			}
			out[fmt.Sprintf("%d", size)] = pages
		}
		return out, nil

	case "facets":
		if deps.EventsDB == nil {
			return nil, nil
		}
		res, err := deps.EventsDB.Facets(ctx, collection, nil, nil)
		if err != nil {
			return nil, apierr.New(apierr.InternalError, "facets failed").Wrap(err)
		}
		return res, nil

	default:
		return nil, apierr.New(apierr.NotFound, fmt.Sprintf("unknown meta resource $%s", name))
	}
}

func dispatchEntity(ctx context.Context, name string, entity router.Entity, deps Deps) (any, *apierr.Error) {
	switch name {
	case "schema":
		return resolveSchema(entity.Collection, deps)

	case "history":
		if deps.History == nil {
			return nil, nil
		}
		h, ok, err := deps.History.History(ctx, entity.ID)
		if err != nil {
			return nil, apierr.New(apierr.InternalError, "history lookup failed").Wrap(err)
		}
		if !ok {
			return nil, nil
		}
		return h, nil

	case "events":
		if deps.Events == nil {
			return nil, nil
		}
		e, ok, err := deps.Events.Events(ctx, entity.ID)
		if err != nil {
			return nil, apierr.New(apierr.InternalError, "events lookup failed").Wrap(err)
		}
		if !ok {
			return nil, nil
		}
		return e, nil

	default:
		return nil, apierr.New(apierr.NotFound, fmt.Sprintf("unknown meta resource $%s", name))
	}
}

func resolveSchema(model string, deps Deps) (any, *apierr.Error) {
	if deps.Schema == nil {
		return nil, nil
	}
	s, ok := deps.Schema.Schema(model)
	if !ok {
		return nil, nil
	}
	return s, nil
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
