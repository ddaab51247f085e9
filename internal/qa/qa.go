// Package qa implements the test-observability surface (spec.md §4.17,
// added): a JSON-RPC style dispatch mounted at GET/POST /qa exposing
// tests/list, examples/list, schemas/list, and tests/run, reusing the
// function registry's JSON-RPC envelope (registry.RPCRequest/RPCResponse)
// and grounded on the teacher's internal/mcp method-string-to-handler
// dispatch shape.
package qa

import (
	"context"
	"encoding/json"
	"time"

	"github.com/latticeframe/gateway/internal/crud"
	"github.com/latticeframe/gateway/internal/registry"
)

// Test is one registered self-check. Run reports success and an optional
// message; a returned error is treated as a failed run with the error's
// message surfaced, not as a protocol-level failure.
type Test struct {
	Name        string
	Description string
	Run         func(ctx context.Context) error
}

// TestResult is one entry of a tests/run response.
type TestResult struct {
	Name     string  `json:"name"`
	Passed   bool    `json:"passed"`
	Message  string  `json:"message,omitempty"`
	Duration float64 `json:"durationMs"`
}

// Registry bundles the collaborators /qa introspects: the function
// registry (for examples/list), the schema registry (for schemas/list),
// and a boot-time list of self-checks (for tests/list and tests/run).
type Registry struct {
	funcs   *registry.Registry
	schemas *crud.Registry
	tests   []Test
}

func New(funcs *registry.Registry, schemas *crud.Registry) *Registry {
	return &Registry{funcs: funcs, schemas: schemas}
}

// RegisterTest adds a self-check, built once at boot alongside the other
// registries.
func (r *Registry) RegisterTest(t Test) {
	r.tests = append(r.tests, t)
}

// Dispatch handles one JSON-RPC request over the four recognized methods.
func (r *Registry) Dispatch(ctx context.Context, req registry.RPCRequest) registry.RPCResponse {
	resp := registry.RPCResponse{JSONRPC: "2.0", ID: req.ID}

	switch req.Method {
	case "tests/list":
		resp.Result = r.testsList()
	case "examples/list":
		resp.Result = r.examplesList()
	case "schemas/list":
		resp.Result = r.schemasList()
	case "tests/run":
		resp.Result = r.testsRun(ctx, req.Params)
	default:
		resp.Error = &registry.RPCError{Code: registry.ErrCodeMethodNotFound, Message: "unknown qa method: " + req.Method}
	}
	return resp
}

type testSummary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (r *Registry) testsList() []testSummary {
	out := make([]testSummary, len(r.tests))
	for i, t := range r.tests {
		out[i] = testSummary{Name: t.Name, Description: t.Description}
	}
	return out
}

type exampleSummary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Example     string `json:"example,omitempty"`
}

func (r *Registry) examplesList() []exampleSummary {
	if r.funcs == nil {
		return nil
	}
	entries := r.funcs.List()
	out := make([]exampleSummary, 0, len(entries))
	for _, e := range entries {
		if e.Example == "" {
			continue
		}
		out = append(out, exampleSummary{Name: e.Name, Description: e.Description, Example: e.Example})
	}
	return out
}

type schemaSummary struct {
	Model  string         `json:"model"`
	Schema map[string]any `json:"schema"`
}

func (r *Registry) schemasList() []schemaSummary {
	if r.schemas == nil {
		return nil
	}
	models := r.schemas.Models()
	out := make([]schemaSummary, 0, len(models))
	for _, m := range models {
		s, ok := r.schemas.Schema(m)
		if !ok {
			continue
		}
		out = append(out, schemaSummary{Model: m, Schema: s})
	}
	return out
}

type testsRunParams struct {
	Names []string `json:"names,omitempty"` // empty runs every registered test
}

func (r *Registry) testsRun(ctx context.Context, rawParams json.RawMessage) []TestResult {
	var params testsRunParams
	if len(rawParams) > 0 {
		_ = json.Unmarshal(rawParams, &params)
	}

	var selected []Test
	if len(params.Names) == 0 {
		selected = r.tests
	} else {
		wanted := make(map[string]bool, len(params.Names))
		for _, n := range params.Names {
			wanted[n] = true
		}
		for _, t := range r.tests {
			if wanted[t.Name] {
				selected = append(selected, t)
			}
		}
	}

	out := make([]TestResult, len(selected))
	for i, t := range selected {
		start := time.Now()
		err := t.Run(ctx)
		res := TestResult{Name: t.Name, Passed: err == nil, Duration: float64(time.Since(start).Microseconds()) / 1000}
		if err != nil {
			res.Message = err.Error()
		}
		out[i] = res
	}
	return out
}
