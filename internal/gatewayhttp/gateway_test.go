package gatewayhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/latticeframe/gateway/internal/binding"
	"github.com/latticeframe/gateway/internal/confirm"
	"github.com/latticeframe/gateway/internal/config"
	"github.com/latticeframe/gateway/internal/crud"
	"github.com/latticeframe/gateway/internal/envelope"
	"github.com/latticeframe/gateway/internal/filter"
	"github.com/latticeframe/gateway/internal/fncall"
	"github.com/latticeframe/gateway/internal/meta"
	"github.com/latticeframe/gateway/internal/qa"
	"github.com/latticeframe/gateway/internal/registry"
)

// memDB is a minimal in-memory binding.DatabaseBinding fake for exercising
// the CRUD convention's wiring without a real store.
type memDB struct {
	rows map[string]map[string]map[string]any // model -> id -> row
	seq  int
}

func newMemDB() *memDB { return &memDB{rows: map[string]map[string]map[string]any{}} }

func (m *memDB) Create(_ context.Context, model string, data map[string]any) (map[string]any, error) {
	if m.rows[model] == nil {
		m.rows[model] = map[string]map[string]any{}
	}
	m.seq++
	id := singular(model) + "_" + itoa(m.seq)
	row := map[string]any{"id": id}
	for k, v := range data {
		row[k] = v
	}
	m.rows[model][id] = row
	return row, nil
}

func (m *memDB) Get(_ context.Context, model, id string) (map[string]any, error) {
	row, ok := m.rows[model][id]
	if !ok {
		return nil, nil
	}
	return row, nil
}

func (m *memDB) Update(_ context.Context, model, id string, data map[string]any) (map[string]any, error) {
	row := m.rows[model][id]
	if row == nil {
		row = map[string]any{"id": id}
		if m.rows[model] == nil {
			m.rows[model] = map[string]map[string]any{}
		}
	}
	for k, v := range data {
		row[k] = v
	}
	m.rows[model][id] = row
	return row, nil
}

func (m *memDB) Delete(_ context.Context, model, id string) error {
	delete(m.rows[model], id)
	return nil
}

func (m *memDB) List(_ context.Context, model string, _ filter.Filters, _ []filter.SortField, limit, offset int) (binding.ListResult, error) {
	var data []map[string]any
	for _, row := range m.rows[model] {
		data = append(data, row)
	}
	return binding.ListResult{Data: data, Total: len(data), Limit: limit, Offset: offset}, nil
}

func (m *memDB) Search(ctx context.Context, model, query string, limit int) (binding.ListResult, error) {
	return m.List(ctx, model, nil, nil, limit, 0)
}

func (m *memDB) Count(_ context.Context, model string, _ filter.Filters) (int, error) {
	return len(m.rows[model]), nil
}

func itoa(n int) string { return strconv.Itoa(n) }

func singular(model string) string {
	if len(model) > 1 && model[len(model)-1] == 's' {
		return model[:len(model)-1]
	}
	return model
}

func newTestGateway(t *testing.T) (*Gateway, *memDB) {
	t.Helper()
	db := newMemDB()

	schemas := crud.NewRegistry()
	schemas.Register(crud.Schema{Model: "contacts", Fields: map[string]crud.FieldSpec{
		"name": {Type: "string", Required: true},
	}})
	crudHandler := crud.New(db, schemas)
	verbs := crud.NewVerbRegistry()
	verbs.Register("contacts", "archive", func(ctx context.Context, db binding.DatabaseBinding, id string, data map[string]any) (map[string]any, error) {
		return db.Update(ctx, "contacts", id, map[string]any{"archived": true})
	})

	funcs := registry.New()
	funcs.Register(registry.Entry{
		Name:        "ping",
		Description: "returns pong",
		Example:     "ping()",
		Handler: func(ctx context.Context, call fncall.Call) (any, error) {
			return map[string]any{"pong": true}, nil
		},
	})
	logger := zap.NewNop()
	mcpServer := registry.NewMCPServer(funcs, registry.ServerInfo{Name: "gateway", Version: "test"}, logger)
	transport := registry.NewHTTPTransport(mcpServer, funcs, logger)

	qaReg := qa.New(funcs, schemas)

	deps := Deps{
		Config: &config.Config{},
		Logger: logger,
		API:    envelope.APIInfo{Name: "gateway", Type: "crud", Version: "test"},

		CRUD:        crudHandler,
		CRUDSchemas: schemas,
		Verbs:       verbs,
		DB:          db,

		Functions: funcs,
		MCP:       transport,
		QA:        qaReg,

		ConfirmConfig: confirm.Config{Secret: "test-secret"},

		MetaDeps: meta.Deps{Schema: schemas},
	}
	return New(deps), db
}

func doRequest(g *Gateway, method, path string, body []byte) *httptest.ResponseRecorder {
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, r)
	return rec
}

func TestLandingPageListsFunctions(t *testing.T) {
	g, _ := newTestGateway(t)
	rec := doRequest(g, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "\"ping\"")
	assert.Contains(t, rec.Body.String(), "\"discover\"")
}

func TestFunctionCallDispatch(t *testing.T) {
	g, _ := newTestGateway(t)
	rec := doRequest(g, http.MethodGet, "/ping()", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pong")
}

func TestFunctionCallUnknownReturns404(t *testing.T) {
	g, _ := newTestGateway(t)
	rec := doRequest(g, http.MethodGet, "/nope()", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCollectionCreateAndGet(t *testing.T) {
	g, _ := newTestGateway(t)
	createRec := doRequest(g, http.MethodPost, "/contacts", []byte(`{"name":"Ada"}`))
	require.Equal(t, http.StatusCreated, createRec.Code)

	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))
	require.NotEmpty(t, created.Data.ID)

	getRec := doRequest(g, http.MethodGet, "/contacts/"+created.Data.ID, nil)
	require.Equal(t, http.StatusOK, getRec.Code)
	assert.Contains(t, getRec.Body.String(), "Ada")
}

func TestEntityActionRequiresConfirmation(t *testing.T) {
	g, db := newTestGateway(t)
	_, err := db.Create(context.Background(), "contacts", map[string]any{"name": "Bob"})
	require.NoError(t, err)
	var id string
	for k := range db.rows["contacts"] {
		id = k
	}

	previewRec := doRequest(g, http.MethodGet, "/contacts/"+id+"/archive", nil)
	require.Equal(t, http.StatusOK, previewRec.Code)
	assert.Contains(t, previewRec.Body.String(), "\"execute\"")
	assert.Contains(t, previewRec.Body.String(), "\"cancel\"")

	var preview struct {
		Confirm struct {
			Execute string `json:"execute"`
			Cancel  string `json:"cancel"`
		} `json:"confirm"`
	}
	require.NoError(t, json.Unmarshal(previewRec.Body.Bytes(), &preview))
	require.NotEmpty(t, preview.Confirm.Execute)
	assert.Equal(t, "/contacts/"+id, preview.Confirm.Cancel)

	confirmedRec := doRequest(g, http.MethodGet, preview.Confirm.Execute, nil)
	require.Equal(t, http.StatusOK, confirmedRec.Code)
	assert.Contains(t, confirmedRec.Body.String(), "archived")
}

func TestConfirmRejectsInvalidHashOnEntityAction(t *testing.T) {
	g, db := newTestGateway(t)
	_, err := db.Create(context.Background(), "contacts", map[string]any{"name": "Eve"})
	require.NoError(t, err)
	var id string
	for k := range db.rows["contacts"] {
		id = k
	}

	rec := doRequest(g, http.MethodGet, "/contacts/"+id+"/archive?confirm=deadbe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "BAD_REQUEST")
}

func TestCollectionActionCreateGoesThroughConfirmationToCRUD(t *testing.T) {
	g, _ := newTestGateway(t)

	previewRec := doRequest(g, http.MethodGet, "/contacts/create?name=Alice&email=alice@example.com", nil)
	require.Equal(t, http.StatusOK, previewRec.Code)

	var preview struct {
		Confirm struct {
			Execute string `json:"execute"`
			Preview map[string]string `json:"preview"`
		} `json:"confirm"`
	}
	require.NoError(t, json.Unmarshal(previewRec.Body.Bytes(), &preview))
	require.NotEmpty(t, preview.Confirm.Execute)
	assert.Equal(t, "Alice", preview.Confirm.Preview["name"])

	confirmedRec := doRequest(g, http.MethodGet, preview.Confirm.Execute, nil)
	require.Equal(t, http.StatusCreated, confirmedRec.Code)
	assert.Contains(t, confirmedRec.Body.String(), "Alice")
}

func TestEntityActionDeleteGoesThroughConfirmationToCRUD(t *testing.T) {
	g, db := newTestGateway(t)
	_, err := db.Create(context.Background(), "contacts", map[string]any{"name": "Carl"})
	require.NoError(t, err)
	var id string
	for k := range db.rows["contacts"] {
		id = k
	}

	previewRec := doRequest(g, http.MethodGet, "/contacts/"+id+"/delete", nil)
	require.Equal(t, http.StatusOK, previewRec.Code)

	var preview struct {
		Confirm struct {
			Execute string `json:"execute"`
		} `json:"confirm"`
	}
	require.NoError(t, json.Unmarshal(previewRec.Body.Bytes(), &preview))

	confirmedRec := doRequest(g, http.MethodGet, preview.Confirm.Execute, nil)
	require.Equal(t, http.StatusOK, confirmedRec.Code)

	getRec := doRequest(g, http.MethodGet, "/contacts/"+id, nil)
	assert.Equal(t, http.StatusNotFound, getRec.Code)
}

func TestMetaSchemaDispatch(t *testing.T) {
	g, _ := newTestGateway(t)
	rec := doRequest(g, http.MethodGet, "/contacts/$schema", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "\"name\"")
}

func TestQAMountListsTests(t *testing.T) {
	g, _ := newTestGateway(t)
	rec := doRequest(g, http.MethodGet, "/qa?method=tests/list", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMeMountReturnsPrincipal(t *testing.T) {
	g, _ := newTestGateway(t)
	rec := doRequest(g, http.MethodGet, "/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRawFlagStripsEnvelope(t *testing.T) {
	g, _ := newTestGateway(t)
	rec := doRequest(g, http.MethodGet, "/ping()?raw", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"pong":true}`, rec.Body.String())
}

func TestUnknownPathReturns404(t *testing.T) {
	g, _ := newTestGateway(t)
	rec := doRequest(g, http.MethodGet, "/does/not/exist/at/all", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
