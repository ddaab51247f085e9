package crud

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticeframe/gateway/internal/binding"
	"github.com/latticeframe/gateway/internal/filter"
)

type fakeDB struct {
	created, updated map[string]any
	getResult        map[string]any
	getErr           error
	deleteCalls      int
}

func (f *fakeDB) Create(ctx context.Context, model string, data map[string]any) (map[string]any, error) {
	f.created = data
	return data, nil
}

func (f *fakeDB) Get(ctx context.Context, model, id string) (map[string]any, error) {
	return f.getResult, f.getErr
}

func (f *fakeDB) Update(ctx context.Context, model, id string, data map[string]any) (map[string]any, error) {
	f.updated = data
	return data, nil
}

func (f *fakeDB) Delete(ctx context.Context, model, id string) error {
	f.deleteCalls++
	return nil
}

func (f *fakeDB) List(ctx context.Context, model string, filters filter.Filters, sort []filter.SortField, limit, offset int) (binding.ListResult, error) {
	return binding.ListResult{}, nil
}

func (f *fakeDB) Search(ctx context.Context, model, query string, limit int) (binding.ListResult, error) {
	return binding.ListResult{}, nil
}

func (f *fakeDB) Count(ctx context.Context, model string, filters filter.Filters) (int, error) {
	return 0, nil
}

func contactRegistry() *Registry {
	r := NewRegistry()
	r.Register(Schema{Model: "contacts", Fields: map[string]FieldSpec{
		"name":  {Type: "string", Required: true},
		"email": {Type: "string", Required: true},
	}})
	return r
}

func TestCreateInjectsMetaFields(t *testing.T) {
	db := &fakeDB{}
	h := New(db, contactRegistry())
	out, apiErr := h.Create(context.Background(), "contacts", map[string]any{"name": "Alice", "email": "alice@acme.com"}, "user_1")
	require.Nil(t, apiErr)
	assert.Equal(t, "Alice", out["name"])
	assert.NotEmpty(t, out["_createdAt"])
	assert.Equal(t, 1, out["_version"])
	assert.Equal(t, "user_1", out["_createdBy"])
}

func TestCreateStripsUserSuppliedMetaFields(t *testing.T) {
	db := &fakeDB{}
	h := New(db, contactRegistry())
	_, apiErr := h.Create(context.Background(), "contacts", map[string]any{
		"name": "Alice", "email": "a@acme.com", "_version": 99, "_createdBy": "attacker",
	}, "user_1")
	require.Nil(t, apiErr)
	assert.Equal(t, 1, db.created["_version"])
	assert.Equal(t, "user_1", db.created["_createdBy"])
}

func TestCreateValidatesRequiredFields(t *testing.T) {
	db := &fakeDB{}
	h := New(db, contactRegistry())
	_, apiErr := h.Create(context.Background(), "contacts", map[string]any{"name": "Alice"}, "")
	require.NotNil(t, apiErr)
	assert.Equal(t, "VALIDATION_ERROR", string(apiErr.Code))
	require.Len(t, apiErr.Fields, 1)
	assert.Equal(t, "email", apiErr.Fields[0].Field)
}

func TestCreateValidatesFieldType(t *testing.T) {
	db := &fakeDB{}
	h := New(db, contactRegistry())
	_, apiErr := h.Create(context.Background(), "contacts", map[string]any{"name": 42, "email": "a@acme.com"}, "")
	require.NotNil(t, apiErr)
	assert.Equal(t, "string", apiErr.Fields[0].Expected)
	assert.Equal(t, "number", apiErr.Fields[0].Received)
}

func TestDeleteIsSoft(t *testing.T) {
	db := &fakeDB{}
	h := New(db, contactRegistry())
	_, apiErr := h.Delete(context.Background(), "contacts", "contact_abc", "user_1")
	require.Nil(t, apiErr)
	assert.Equal(t, 0, db.deleteCalls)
	assert.NotEmpty(t, db.updated["_deletedAt"])
	assert.Equal(t, "user_1", db.updated["_deletedBy"])
}

func TestGetRejectsSoftDeletedRow(t *testing.T) {
	db := &fakeDB{getResult: map[string]any{"id": "contact_abc", "_deletedAt": "2026-07-29T00:00:00Z"}}
	h := New(db, contactRegistry())
	_, apiErr := h.Get(context.Background(), "contacts", "contact_abc")
	require.NotNil(t, apiErr)
	assert.Equal(t, "NOT_FOUND", string(apiErr.Code))
}

func TestListExcludesSoftDeletedByDefault(t *testing.T) {
	db := &fakeDB{}
	h := New(db, contactRegistry())
	_, apiErr := h.List(context.Background(), "contacts", nil, nil, 0, 0)
	require.Nil(t, apiErr)
}

func TestSchemaRendersJSONSchemaShape(t *testing.T) {
	r := contactRegistry()
	s, ok := r.Schema("contacts")
	require.True(t, ok)
	assert.Equal(t, "object", s["type"])
}

func TestVerbRegistryDispatch(t *testing.T) {
	v := NewVerbRegistry()
	v.Register("deals", "qualify", func(ctx context.Context, db binding.DatabaseBinding, entityID string, data map[string]any) (map[string]any, error) {
		return map[string]any{"status": "qualified"}, nil
	})
	out, apiErr := v.Run(context.Background(), &fakeDB{}, "deals", "qualify", "deal_abc", nil)
	require.Nil(t, apiErr)
	assert.Equal(t, "qualified", out["status"])
}

func TestVerbRegistryUnknownVerb(t *testing.T) {
	v := NewVerbRegistry()
	_, apiErr := v.Run(context.Background(), &fakeDB{}, "deals", "bogus", "deal_abc", nil)
	require.NotNil(t, apiErr)
	assert.Equal(t, "METHOD_NOT_FOUND", string(apiErr.Code))
}
