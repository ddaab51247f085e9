package qa

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticeframe/gateway/internal/crud"
	"github.com/latticeframe/gateway/internal/fncall"
	"github.com/latticeframe/gateway/internal/registry"
)

func funcsRegistry() *registry.Registry {
	r := registry.New()
	r.Register(registry.Entry{
		Name:        "contacts.search",
		Description: "search contacts",
		Example:     "contacts.search(q='acme')",
		Handler: func(ctx context.Context, call fncall.Call) (any, error) {
			return nil, nil
		},
	})
	r.Register(registry.Entry{
		Name:        "contacts.count",
		Description: "count contacts",
		Handler: func(ctx context.Context, call fncall.Call) (any, error) {
			return nil, nil
		},
	})
	return r
}

func schemaRegistry() *crud.Registry {
	r := crud.NewRegistry()
	r.Register(crud.Schema{Model: "contacts", Fields: map[string]crud.FieldSpec{
		"name": {Type: "string", Required: true},
	}})
	return r
}

func TestExamplesListSkipsEntriesWithoutExamples(t *testing.T) {
	q := New(funcsRegistry(), schemaRegistry())
	resp := q.Dispatch(context.Background(), registry.RPCRequest{Method: "examples/list"})
	require.Nil(t, resp.Error)
	out, ok := resp.Result.([]exampleSummary)
	require.True(t, ok)
	require.Len(t, out, 1)
	assert.Equal(t, "contacts.search", out[0].Name)
}

func TestSchemasListRendersRegisteredModels(t *testing.T) {
	q := New(funcsRegistry(), schemaRegistry())
	resp := q.Dispatch(context.Background(), registry.RPCRequest{Method: "schemas/list"})
	require.Nil(t, resp.Error)
	out, ok := resp.Result.([]schemaSummary)
	require.True(t, ok)
	require.Len(t, out, 1)
	assert.Equal(t, "contacts", out[0].Model)
	assert.Equal(t, "object", out[0].Schema["type"])
}

func TestTestsListAndRun(t *testing.T) {
	q := New(funcsRegistry(), schemaRegistry())
	q.RegisterTest(Test{
		Name:        "ping",
		Description: "checks the upstream is reachable",
		Run:         func(ctx context.Context) error { return nil },
	})
	q.RegisterTest(Test{
		Name: "broken",
		Run:  func(ctx context.Context) error { return errors.New("boom") },
	})

	listResp := q.Dispatch(context.Background(), registry.RPCRequest{Method: "tests/list"})
	require.Nil(t, listResp.Error)
	summaries, ok := listResp.Result.([]testSummary)
	require.True(t, ok)
	require.Len(t, summaries, 2)

	runResp := q.Dispatch(context.Background(), registry.RPCRequest{Method: "tests/run"})
	require.Nil(t, runResp.Error)
	results, ok := runResp.Result.([]TestResult)
	require.True(t, ok)
	require.Len(t, results, 2)
	assert.True(t, results[0].Passed)
	assert.False(t, results[1].Passed)
	assert.Equal(t, "boom", results[1].Message)
}

func TestTestsRunFiltersByName(t *testing.T) {
	q := New(funcsRegistry(), schemaRegistry())
	q.RegisterTest(Test{Name: "a", Run: func(ctx context.Context) error { return nil }})
	q.RegisterTest(Test{Name: "b", Run: func(ctx context.Context) error { return nil }})

	params, err := json.Marshal(testsRunParams{Names: []string{"b"}})
	require.NoError(t, err)

	resp := q.Dispatch(context.Background(), registry.RPCRequest{Method: "tests/run", Params: params})
	require.Nil(t, resp.Error)
	results, ok := resp.Result.([]TestResult)
	require.True(t, ok)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].Name)
}

func TestDispatchUnknownMethod(t *testing.T) {
	q := New(funcsRegistry(), schemaRegistry())
	resp := q.Dispatch(context.Background(), registry.RPCRequest{Method: "bogus/thing"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, registry.ErrCodeMethodNotFound, resp.Error.Code)
}

func TestDispatchHandlesNilRegistries(t *testing.T) {
	q := New(nil, nil)
	resp := q.Dispatch(context.Background(), registry.RPCRequest{Method: "examples/list"})
	require.Nil(t, resp.Error)
	assert.Nil(t, resp.Result)
}
