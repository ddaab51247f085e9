// Package router classifies a request path into one of the seven
// ParsedRoute kinds defined in spec.md §3 and §4.3. The router is total and
// side-effect-free: the same path always classifies the same way.
package router

import "github.com/latticeframe/gateway/internal/fncall"

// Kind is the tag of a ParsedRoute sum type.
type Kind string

const (
	KindCollection       Kind = "collection"
	KindEntity           Kind = "entity"
	KindEntityAction     Kind = "entity-action"
	KindCollectionAction Kind = "collection-action"
	KindMeta             Kind = "meta"
	KindFunctionCall     Kind = "function-call"
	KindSearch           Kind = "search"
	KindUnknown          Kind = "unknown"
)

// Entity describes the decoded {type,sqid,id,collection} entity reference.
type Entity struct {
	Type       string
	Sqid       string
	ID         string
	Collection string
}

// MetaTarget is what a meta-resource ($name) is attached to: either a bare
// collection name or a decoded entity.
type MetaTarget struct {
	Collection string // set when the meta target is a collection
	Entity     *Entity
}

// Route is the tagged variant produced by Parse. Only the fields relevant
// to Kind are populated; callers switch on Kind and read accordingly.
type Route struct {
	Kind Kind

	Tenant string // resolved separately (internal/tenant) and copied in by the caller
	Raw    string // the trailing path after tenant-prefix stripping

	Collection string      // KindCollection, KindCollectionAction
	Entity     *Entity     // KindEntity, KindEntityAction
	Action     string      // KindEntityAction, KindCollectionAction
	Meta       *MetaTarget // KindMeta
	MetaName   string      // KindMeta

	Call *fncall.Call // KindFunctionCall

	Query string // KindSearch

	Path string // KindUnknown: the original unclassifiable path
}
