// Package envelope assembles the gateway's canonical JSON response shape:
// an ordered map whose keys appear in a fixed order regardless of
// insertion order, per spec.md §3 and §4.11.
package envelope

import (
	"bytes"
	"encoding/json"

	"github.com/latticeframe/gateway/internal/apierr"
)

// APIInfo is the always-first "api" key.
type APIInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
}

// Options carries the RespondOptions fields the assembler consumes.
// DataKey configures which semantic key the payload lands under (default
// "data"); Links, Actions, Options, Meta are loosely typed maps matching
// the dynamic hypermedia shape used throughout the gateway.
type Options struct {
	API      APIInfo
	Context  any
	Type     string
	ID       string
	Links    map[string]any
	DataKey  string
	Data     any
	HasData  bool // distinguishes "omit the payload entirely" from "payload is nil"
	Discover any
	Total    *int
	Limit    *int
	Offset   *int
	Page     *int
	HasMore  *bool
	Actions  map[string]any
	Options  map[string]any
	Recent   any
	Meta     map[string]any
	Debug    any
	Error    *apierr.Error
	User     any
}

// kv is one ordered key/value pair pending serialization.
type kv struct {
	key   string
	value any
}

// Build assembles the ordered envelope for opts. The semantic payload key
// defaults to "data" when DataKey is empty. Legacy {method,href} action
// forms and legacy UserInfo normalization are the caller's responsibility
// before Build is invoked (they're shape questions for the conventions
// producing Actions/User, not the assembler itself).
func Build(opts Options) *Envelope {
	dataKey := opts.DataKey
	if dataKey == "" {
		dataKey = "data"
	}

	var pairs []kv
	pairs = append(pairs, kv{"api", opts.API})
	if opts.Context != nil {
		pairs = append(pairs, kv{"$context", opts.Context})
	}
	if opts.Type != "" {
		pairs = append(pairs, kv{"$type", opts.Type})
	}
	if opts.ID != "" {
		pairs = append(pairs, kv{"$id", opts.ID})
	}
	pairs = append(pairs, kv{"links", nonNilMap(opts.Links)})
	if opts.HasData {
		pairs = append(pairs, kv{dataKey, opts.Data})
	}
	if opts.Discover != nil {
		pairs = append(pairs, kv{"discover", opts.Discover})
	}
	if opts.Total != nil {
		pairs = append(pairs, kv{"total", *opts.Total})
	}
	if opts.Limit != nil {
		pairs = append(pairs, kv{"limit", *opts.Limit})
	}
	if opts.Offset != nil {
		pairs = append(pairs, kv{"offset", *opts.Offset})
	}
	if opts.Page != nil {
		pairs = append(pairs, kv{"page", *opts.Page})
	}
	if opts.HasMore != nil {
		pairs = append(pairs, kv{"hasMore", *opts.HasMore})
	}
	if len(opts.Actions) > 0 {
		pairs = append(pairs, kv{"actions", opts.Actions})
	}
	if len(opts.Options) > 0 {
		pairs = append(pairs, kv{"options", opts.Options})
	}
	if opts.Recent != nil {
		pairs = append(pairs, kv{"recent", opts.Recent})
	}
	if len(opts.Meta) > 0 {
		pairs = append(pairs, kv{"meta", opts.Meta})
	}
	if opts.Debug != nil {
		pairs = append(pairs, kv{"debug", opts.Debug})
	}
	if opts.Error != nil {
		pairs = append(pairs, kv{"error", opts.Error})
	}
	if opts.User != nil {
		pairs = append(pairs, kv{"user", opts.User})
	}

	return &Envelope{pairs: pairs}
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// Envelope is the immutable, ordered result of Build. It marshals to JSON
// preserving the fixed key order (§3 invariant: "api" first, "user" last
// if present).
type Envelope struct {
	pairs []kv
}

func (e *Envelope) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range e.pairs {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(p.key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		valJSON, err := json.Marshal(p.value)
		if err != nil {
			return nil, err
		}
		buf.Write(valJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get returns the value stored under key, and whether it was present —
// mainly useful in tests and in the response-mode transforms that need to
// inspect specific keys (e.g. "links", "actions") without a full decode.
func (e *Envelope) Get(key string) (any, bool) {
	for _, p := range e.pairs {
		if p.key == key {
			return p.value, true
		}
	}
	return nil, false
}

// Keys returns the keys in their fixed output order.
func (e *Envelope) Keys() []string {
	keys := make([]string, len(e.pairs))
	for i, p := range e.pairs {
		keys[i] = p.key
	}
	return keys
}
