// Package registry implements the function/transport registry of spec.md
// §4.10: a single entry, reachable identically via a `/name(args)` URL, a
// `POST /rpc` call, and an MCP `tools/call`. Invariant: all three paths
// produce identical handler output for the same (name, args).
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/latticeframe/gateway/internal/fncall"
)

// Handler executes one registry entry against a parsed function call.
type Handler func(ctx context.Context, call fncall.Call) (any, error)

// Entry is one registered function. Example is an illustrative invocation
// string surfaced to /qa's examples/list and to the MCP tool description.
type Entry struct {
	Name        string
	Description string
	Example     string
	Handler     Handler
}

// inputSchema is deliberately loose: registry entries are positional/kwarg
// function calls, not object-shaped RPC methods, so the JSON-schema exposed
// over MCP only documents the shape, not strict validation.
var genericInputSchema = json.RawMessage(`{"type":"object","additionalProperties":true}`)

// Resource is a static or computed piece of content addressable by URI,
// exposed over MCP's resources/list and resources/read (spec.md §6).
type Resource interface {
	Definition() ResourceDefinition
	Read() (*ResourcesReadResult, error)
}

// Registry holds every function entry and resource, built once at boot
// (spec.md §5: "written once at boot and read-only thereafter") and read
// concurrently by every transport.
type Registry struct {
	mu            sync.RWMutex
	entries       map[string]Entry
	order         []string
	resources     map[string]Resource
	resourceOrder []string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		entries:   make(map[string]Entry),
		resources: make(map[string]Resource),
	}
}

// Register adds an entry. Panics on a duplicate name — registries are
// assembled once at boot, so a collision is a programming error, not a
// runtime condition to recover from.
func (r *Registry) Register(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[e.Name]; exists {
		panic(fmt.Sprintf("registry: entry %q already registered", e.Name))
	}
	r.entries[e.Name] = e
	r.order = append(r.order, e.Name)
}

// Get returns an entry by name.
func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// List returns all entries in registration order.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, len(r.order))
	for i, name := range r.order {
		out[i] = r.entries[name]
	}
	return out
}

// RegisterResource adds a resource, keyed by its URI.
func (r *Registry) RegisterResource(res Resource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	uri := res.Definition().URI
	if _, exists := r.resources[uri]; exists {
		panic(fmt.Sprintf("registry: resource %q already registered", uri))
	}
	r.resources[uri] = res
	r.resourceOrder = append(r.resourceOrder, uri)
}

// GetResource returns a resource by URI.
func (r *Registry) GetResource(uri string) (Resource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resources[uri]
	return res, ok
}

// ListResources returns all resource definitions in registration order.
func (r *Registry) ListResources() []ResourceDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ResourceDefinition, len(r.resourceOrder))
	for i, uri := range r.resourceOrder {
		out[i] = r.resources[uri].Definition()
	}
	return out
}

// toolDefinitions maps registry entries onto the MCP tools/list shape.
func (r *Registry) toolDefinitions() []ToolDefinition {
	entries := r.List()
	out := make([]ToolDefinition, len(entries))
	for i, e := range entries {
		out[i] = ToolDefinition{
			Name:        e.Name,
			Description: e.Description,
			InputSchema: genericInputSchema,
		}
	}
	return out
}

// CallFromArgs builds an fncall.Call for name from an already-decoded JSON
// args array (the RPC transport's body shape) and an optional kwargs map
// (the MCP transport's Arguments object). Each positional value is
// stringified and reclassified with fncall.Classify so the handler sees
// the same Arg.Kind it would from a URL function-call.
func CallFromArgs(name string, args []any, kwargs map[string]string) fncall.Call {
	call := fncall.Call{Name: name, Kwargs: kwargs}
	if call.Kwargs == nil {
		call.Kwargs = map[string]string{}
	}
	for _, a := range args {
		call.Args = append(call.Args, fncall.Classify(stringifyArg(a)))
	}
	return call
}

func stringifyArg(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case bool:
		return fmt.Sprintf("%t", t)
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}
