// Package crud implements the database convention (spec.md §4.14): a
// validated REST surface generated from a parsed schema, backed by a
// DatabaseBinding, with meta-field injection/stripping and soft-delete.
package crud

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/latticeframe/gateway/internal/apierr"
	"github.com/latticeframe/gateway/internal/binding"
	"github.com/latticeframe/gateway/internal/filter"
)

// FieldSpec describes one field's validation rule.
type FieldSpec struct {
	Type     string // "string", "number", "bool", "object", "array"
	Required bool
}

// Schema is one model's field specification, registered at boot.
type Schema struct {
	Model  string
	Fields map[string]FieldSpec
}

// metaFields are injected by the core on write and stripped from user
// input — a caller cannot set its own _version/_createdAt/etc.
var metaFields = map[string]bool{
	"_version": true, "_createdAt": true, "_createdBy": true,
	"_updatedAt": true, "_updatedBy": true, "_deletedAt": true, "_deletedBy": true,
}

// Registry holds every registered model schema, built once at boot. It also
// implements internal/meta.SchemaProvider, so the same registry backs both
// $schema meta-dispatch and create/update field validation.
type Registry struct {
	models map[string]Schema
	order  []string
}

func NewRegistry() *Registry {
	return &Registry{models: make(map[string]Schema)}
}

func (r *Registry) Register(s Schema) {
	if _, exists := r.models[s.Model]; !exists {
		r.order = append(r.order, s.Model)
	}
	r.models[s.Model] = s
}

func (r *Registry) Get(model string) (Schema, bool) {
	s, ok := r.models[model]
	return s, ok
}

// Models returns every registered model name in registration order.
func (r *Registry) Models() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Schema implements internal/meta.SchemaProvider by rendering a model's
// field specs as a minimal JSON-schema-shaped map.
func (r *Registry) Schema(model string) (map[string]any, bool) {
	s, ok := r.models[model]
	if !ok {
		return nil, false
	}
	properties := make(map[string]any, len(s.Fields))
	var required []string
	for name, spec := range s.Fields {
		properties[name] = map[string]any{"type": jsonSchemaType(spec.Type)}
		if spec.Required {
			required = append(required, name)
		}
	}
	out := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		out["required"] = required
	}
	return out, true
}

func jsonSchemaType(t string) string {
	switch t {
	case "number", "string", "object", "array":
		return t
	case "bool":
		return "boolean"
	default:
		return "string"
	}
}

// Handler serves create/get/update/delete/list/search/count against a
// DatabaseBinding, validating input against a Registry first.
type Handler struct {
	db       binding.DatabaseBinding
	schemas  *Registry
	clock    func() time.Time
}

// New builds a Handler. schemas may be nil, in which case input validation
// is skipped (any model not registered accepts any shape).
func New(db binding.DatabaseBinding, schemas *Registry) *Handler {
	return &Handler{db: db, schemas: schemas, clock: time.Now}
}

// Create validates data against model's schema, strips any user-supplied
// meta fields, injects _createdAt/_createdBy/_version, and stores it.
func (h *Handler) Create(ctx context.Context, model string, data map[string]any, actor string) (map[string]any, *apierr.Error) {
	clean := stripMetaFields(data)
	if fieldErrs := h.validate(model, clean); len(fieldErrs) > 0 {
		return nil, apierr.New(apierr.ValidationError, "validation failed").WithFields(fieldErrs...)
	}

	now := h.clock().UTC().Format(time.RFC3339)
	clean["_createdAt"] = now
	clean["_updatedAt"] = now
	clean["_version"] = 1
	if actor != "" {
		clean["_createdBy"] = actor
		clean["_updatedBy"] = actor
	}

	out, err := h.db.Create(ctx, model, clean)
	if err != nil {
		return nil, apierr.New(apierr.InternalError, fmt.Sprintf("creating %s failed", model)).Wrap(err)
	}
	return out, nil
}

// Get returns one row by id, or NOT_FOUND if it is soft-deleted or absent.
func (h *Handler) Get(ctx context.Context, model, id string) (map[string]any, *apierr.Error) {
	out, err := h.db.Get(ctx, model, id)
	if err != nil {
		return nil, apierr.New(apierr.NotFound, fmt.Sprintf("%s %s not found", model, id)).Wrap(err)
	}
	if isSoftDeleted(out) {
		return nil, apierr.New(apierr.NotFound, fmt.Sprintf("%s %s not found", model, id))
	}
	return out, nil
}

// Update validates the (partial) input, strips user-supplied meta fields,
// sets _updatedAt/_updatedBy, and stores it. _version is left as stored.
func (h *Handler) Update(ctx context.Context, model, id string, data map[string]any, actor string) (map[string]any, *apierr.Error) {
	clean := stripMetaFields(data)
	if fieldErrs := h.validatePartial(model, clean); len(fieldErrs) > 0 {
		return nil, apierr.New(apierr.ValidationError, "validation failed").WithFields(fieldErrs...)
	}

	clean["_updatedAt"] = h.clock().UTC().Format(time.RFC3339)
	if actor != "" {
		clean["_updatedBy"] = actor
	}

	out, err := h.db.Update(ctx, model, id, clean)
	if err != nil {
		return nil, apierr.New(apierr.InternalError, fmt.Sprintf("updating %s %s failed", model, id)).Wrap(err)
	}
	return out, nil
}

// Delete soft-deletes a row by setting _deletedAt/_deletedBy via Update
// rather than removing the row, per spec.md §4.14.
func (h *Handler) Delete(ctx context.Context, model, id, actor string) (map[string]any, *apierr.Error) {
	data := map[string]any{"_deletedAt": h.clock().UTC().Format(time.RFC3339)}
	if actor != "" {
		data["_deletedBy"] = actor
	}
	out, err := h.db.Update(ctx, model, id, data)
	if err != nil {
		return nil, apierr.New(apierr.InternalError, fmt.Sprintf("deleting %s %s failed", model, id)).Wrap(err)
	}
	return out, nil
}

// List excludes soft-deleted rows by default.
func (h *Handler) List(ctx context.Context, model string, filters filter.Filters, sort []filter.SortField, limit, offset int) (binding.ListResult, *apierr.Error) {
	filters = excludeSoftDeleted(filters)
	out, err := h.db.List(ctx, model, filters, sort, limit, offset)
	if err != nil {
		return binding.ListResult{}, apierr.New(apierr.InternalError, fmt.Sprintf("listing %s failed", model)).Wrap(err)
	}
	return out, nil
}

func (h *Handler) Search(ctx context.Context, model, query string, limit int) (binding.ListResult, *apierr.Error) {
	out, err := h.db.Search(ctx, model, query, limit)
	if err != nil {
		return binding.ListResult{}, apierr.New(apierr.InternalError, fmt.Sprintf("searching %s failed", model)).Wrap(err)
	}
	return out, nil
}

func (h *Handler) Count(ctx context.Context, model string, filters filter.Filters) (int, *apierr.Error) {
	filters = excludeSoftDeleted(filters)
	n, err := h.db.Count(ctx, model, filters)
	if err != nil {
		return 0, apierr.New(apierr.InternalError, fmt.Sprintf("counting %s failed", model)).Wrap(err)
	}
	return n, nil
}

func stripMetaFields(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if metaFields[k] {
			continue
		}
		out[k] = v
	}
	return out
}

func excludeSoftDeleted(filters filter.Filters) filter.Filters {
	out := filter.Filters{}
	for k, v := range filters {
		out[k] = v
	}
	if _, ok := out["_deletedAt"]; !ok {
		out["_deletedAt"] = append(out["_deletedAt"], filter.Condition{Op: filter.Exists, Value: false})
	}
	return out
}

func isSoftDeleted(row map[string]any) bool {
	v, ok := row["_deletedAt"]
	if !ok || v == nil {
		return false
	}
	s, ok := v.(string)
	return ok && s != ""
}

// validate checks every required field is present and every present field
// matches its declared type, producing {field, message, expected, received}
// errors per spec.md §4.14.
func (h *Handler) validate(model string, data map[string]any) []apierr.FieldError {
	schema, ok := h.schemaFor(model)
	if !ok {
		return nil
	}
	var errs []apierr.FieldError
	for name, spec := range schema.Fields {
		v, present := data[name]
		if spec.Required && !present {
			errs = append(errs, apierr.FieldError{Field: name, Message: "required field is missing", Expected: spec.Type})
			continue
		}
		if present {
			if got := typeOf(v); got != spec.Type && spec.Type != "" {
				errs = append(errs, apierr.FieldError{Field: name, Message: "field has the wrong type", Expected: spec.Type, Received: got})
			}
		}
	}
	return errs
}

// validatePartial checks only the fields present in data (an update may
// touch a subset of a model's fields).
func (h *Handler) validatePartial(model string, data map[string]any) []apierr.FieldError {
	schema, ok := h.schemaFor(model)
	if !ok {
		return nil
	}
	var errs []apierr.FieldError
	for name, v := range data {
		spec, known := schema.Fields[name]
		if !known || spec.Type == "" {
			continue
		}
		if got := typeOf(v); got != spec.Type {
			errs = append(errs, apierr.FieldError{Field: name, Message: "field has the wrong type", Expected: spec.Type, Received: got})
		}
	}
	return errs
}

func (h *Handler) schemaFor(model string) (Schema, bool) {
	if h.schemas == nil {
		return Schema{}, false
	}
	return h.schemas.Get(model)
}

func typeOf(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case float64, int, int64:
		return "number"
	case bool:
		return "bool"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case nil:
		return "null"
	default:
		return "string"
	}
}

// VerbHandler executes an arbitrary entity verb dispatched from
// POST /:id/:verb.
type VerbHandler func(ctx context.Context, db binding.DatabaseBinding, entityID string, data map[string]any) (map[string]any, error)

// VerbRegistry holds verb handlers keyed by "collection.verb", built once
// at boot alongside Registry.
type VerbRegistry struct {
	handlers map[string]VerbHandler
}

func NewVerbRegistry() *VerbRegistry {
	return &VerbRegistry{handlers: make(map[string]VerbHandler)}
}

func (v *VerbRegistry) Register(collection, verb string, h VerbHandler) {
	v.handlers[verbKey(collection, verb)] = h
}

// Run dispatches to a registered verb handler, or METHOD_NOT_FOUND if none
// is registered for this collection/verb pair.
func (v *VerbRegistry) Run(ctx context.Context, db binding.DatabaseBinding, collection, verb, entityID string, data map[string]any) (map[string]any, *apierr.Error) {
	h, ok := v.handlers[verbKey(collection, verb)]
	if !ok {
		return nil, apierr.New(apierr.MethodNotFound, fmt.Sprintf("no verb %q registered on %s", verb, collection))
	}
	out, err := h(ctx, db, entityID, data)
	if err != nil {
		return nil, apierr.New(apierr.InternalError, fmt.Sprintf("verb %q failed", verb)).Wrap(err)
	}
	return out, nil
}

func verbKey(collection, verb string) string {
	return strings.ToLower(collection) + "." + verb
}
