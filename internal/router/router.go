package router

import (
	"net/url"
	"strings"

	"github.com/latticeframe/gateway/internal/fncall"
	"github.com/latticeframe/gateway/internal/ident"
	"github.com/latticeframe/gateway/internal/tenant"
)

// Router classifies request paths. It holds no state; construction exists
// only so call sites read like other components in this codebase.
type Router struct{}

func New() *Router { return &Router{} }

// Parse classifies rawPath (the request's URL path, possibly tenant
// prefixed) plus its raw query string. Ties are broken in the order
// documented in spec.md §4.3: function-call beats entity beats collection.
func (rt *Router) Parse(rawPath, rawQuery string) Route {
	slug, rest := tenant.StripPrefix(rawPath)

	route := Route{Tenant: slug, Raw: rest}

	trimmed := strings.Trim(rest, "/")

	// Step 2: function-call syntax takes priority over everything else.
	if fncall.Looks(trimmed) {
		if call, ok := fncall.Parse(trimmed); ok {
			route.Kind = KindFunctionCall
			c := call
			route.Call = &c
			return route
		}
	}

	if trimmed == "" {
		route.Kind = KindUnknown
		route.Path = rawPath
		return route
	}

	segs := strings.Split(trimmed, "/")

	// search is recognized specifically, ahead of the generic collection
	// match, since "search" would otherwise also satisfy the collection
	// grammar.
	if len(segs) == 1 && segs[0] == "search" {
		route.Kind = KindSearch
		route.Query = queryParam(rawQuery, "q")
		return route
	}

	last := segs[len(segs)-1]
	if strings.HasPrefix(last, "$") && len(last) > 1 {
		targetSegs := segs[:len(segs)-1]
		meta, ok := buildMetaTarget(targetSegs)
		if !ok {
			route.Kind = KindUnknown
			route.Path = rawPath
			return route
		}
		route.Kind = KindMeta
		route.Meta = &meta
		route.MetaName = last
		return route
	}

	switch len(segs) {
	case 1:
		seg := segs[0]
		if e, ok := ident.Parse(seg); ok {
			route.Kind = KindEntity
			ent := toEntity(e)
			route.Entity = &ent
			return route
		}
		if ident.IsCollectionName(seg) {
			route.Kind = KindCollection
			route.Collection = seg
			return route
		}
	case 2:
		x, y := segs[0], segs[1]
		if e, ok := ident.Parse(x); ok && ident.IsCollectionName(y) {
			route.Kind = KindEntityAction
			ent := toEntity(e)
			route.Entity = &ent
			route.Action = y
			return route
		}
		if ident.IsCollectionName(x) {
			if e, ok := ident.Parse(y); ok && e.Collection == x {
				route.Kind = KindEntity
				ent := toEntity(e)
				route.Entity = &ent
				return route
			}
			route.Kind = KindCollectionAction
			route.Collection = x
			route.Action = y
			return route
		}
	case 3:
		x, y, z := segs[0], segs[1], segs[2]
		if e, ok := ident.Parse(y); ok && e.Collection == x && ident.IsCollectionName(z) {
			route.Kind = KindEntityAction
			ent := toEntity(e)
			route.Entity = &ent
			route.Action = z
			return route
		}
	}

	route.Kind = KindUnknown
	route.Path = rawPath
	return route
}

func buildMetaTarget(segs []string) (MetaTarget, bool) {
	switch len(segs) {
	case 0:
		return MetaTarget{}, false
	case 1:
		if e, ok := ident.Parse(segs[0]); ok {
			ent := toEntity(e)
			return MetaTarget{Entity: &ent}, true
		}
		if ident.IsCollectionName(segs[0]) {
			return MetaTarget{Collection: segs[0]}, true
		}
		return MetaTarget{}, false
	default:
		return MetaTarget{}, false
	}
}

func toEntity(e ident.Identifier) Entity {
	return Entity{Type: e.Type, Sqid: e.Sqid, ID: e.ID, Collection: e.Collection}
}

func queryParam(rawQuery, key string) string {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return ""
	}
	return values.Get(key)
}
