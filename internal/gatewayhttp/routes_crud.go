package gatewayhttp

import (
	"net/http"
	"time"

	"github.com/latticeframe/gateway/internal/apierr"
	"github.com/latticeframe/gateway/internal/confirm"
	"github.com/latticeframe/gateway/internal/envelope"
	"github.com/latticeframe/gateway/internal/events"
	"github.com/latticeframe/gateway/internal/filter"
	"github.com/latticeframe/gateway/internal/middleware"
	"github.com/latticeframe/gateway/internal/principal"
	"github.com/latticeframe/gateway/internal/respmode"
	"github.com/latticeframe/gateway/internal/router"
)

// listOptionsFrom builds the shared pagination/filter inputs every
// collection-shaped route needs from the request's query string, per
// spec.md §6's query flag table (limit/offset/sort/since).
func listOptionsFrom(r *http.Request) (filter.Filters, []filter.SortField, int, int, string) {
	q := r.URL.Query()
	filters, _ := filter.Parse(r.URL.RawQuery)
	sortFields := filter.ParseSort(q.Get("sort"))
	limit := atoiOr(q.Get("limit"), 25)
	offset := atoiOr(q.Get("offset"), 0)
	since := q.Get("since")
	return filters, sortFields, limit, offset, since
}

// actorFrom identifies the acting principal for _createdBy/_updatedBy, per
// spec.md §4.14's audit-field convention.
func actorFrom(p principal.Principal) string {
	if p.ID != "" {
		return p.ID
	}
	return "anonymous"
}

// dispatchCollection handles KindCollection: the events convention's
// curated categories take priority over the generic database convention,
// matching spec.md §4.13's "well-known category names are events, not
// database models" rule.
func (g *Gateway) dispatchCollection(w http.ResponseWriter, r *http.Request, route *router.Route, flags respmode.Flags, p principal.Principal, start time.Time) {
	if g.deps.Events != nil && (route.Collection == "events" || g.deps.Events.IsCategory(route.Collection)) {
		g.dispatchEventsCollection(w, r, route.Collection, flags, p, start)
		return
	}

	if g.deps.CRUD == nil {
		g.writeError(w, r, flags, apierr.New(apierr.NotFound, "no such collection: "+route.Collection), start)
		return
	}

	switch r.Method {
	case http.MethodGet:
		filters, sortFields, limit, offset, _ := listOptionsFrom(r)
		res, apiErr := g.deps.CRUD.List(r.Context(), route.Collection, filters, sortFields, limit, offset)
		if apiErr != nil {
			g.writeError(w, r, flags, apiErr, start)
			return
		}
		g.write(w, r, flags, envelope.Options{
			HasData: true,
			Data:    res.Data,
			Total:   intPtr(res.Total),
			Limit:   intPtr(res.Limit),
			Offset:  intPtr(res.Offset),
			HasMore: boolPtr(res.HasMore),
		}, http.StatusOK, start)

	case http.MethodPost:
		data, err := decodeJSONBody(r)
		if err != nil {
			g.writeError(w, r, flags, apierr.New(apierr.InvalidJSON, "request body is not valid JSON"), start)
			return
		}
		res, apiErr := g.deps.CRUD.Create(r.Context(), route.Collection, data, actorFrom(p))
		if apiErr != nil {
			g.writeError(w, r, flags, apiErr, start)
			return
		}
		g.write(w, r, flags, envelope.Options{HasData: true, Data: res}, http.StatusCreated, start)

	default:
		w.Header().Set("Allow", "GET, POST")
		g.writeError(w, r, flags, apierr.New(apierr.BadRequest, "method not allowed on this collection"), start)
	}
}

// dispatchEventsCollection serves GET /events and GET /{category}, the two
// collection-shaped entry points into the read-only events convention
// (spec.md §4.13).
func (g *Gateway) dispatchEventsCollection(w http.ResponseWriter, r *http.Request, collection string, flags respmode.Flags, p principal.Principal, start time.Time) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		g.writeError(w, r, flags, apierr.New(apierr.BadRequest, "events are read-only"), start)
		return
	}

	filters, _, limit, offset, since := listOptionsFrom(r)
	opts := events.ListOptions{Limit: limit, Offset: offset, Since: since}

	var (
		res    *events.Result
		apiErr *apierr.Error
	)
	if collection == "events" {
		res, apiErr = g.deps.Events.List(r.Context(), p, filters, opts)
	} else {
		res, apiErr = g.deps.Events.Category(r.Context(), p, collection, filters, opts)
	}
	if apiErr != nil {
		g.writeError(w, r, flags, apiErr, start)
		return
	}

	g.write(w, r, flags, envelope.Options{
		HasData: true,
		Data:    res.Data,
		Discover: res.Discover,
		Total:   intPtr(res.Total),
		Limit:   intPtr(res.Limit),
		Offset:  intPtr(res.Offset),
		HasMore: boolPtr(res.HasMore),
	}, http.StatusOK, start)
}

// dispatchCollectionAction handles KindCollectionAction: GET /events/:type
// routes into the events convention; everything else is a collection-scoped
// verb, confirmation-gated per spec.md §4.8.
func (g *Gateway) dispatchCollectionAction(w http.ResponseWriter, r *http.Request, route *router.Route, flags respmode.Flags, p principal.Principal, start time.Time) {
	if g.deps.Events != nil && route.Collection == "events" {
		filters, _, limit, offset, since := listOptionsFrom(r)
		res, apiErr := g.deps.Events.ByType(r.Context(), p, route.Action, filters, events.ListOptions{Limit: limit, Offset: offset, Since: since})
		if apiErr != nil {
			g.writeError(w, r, flags, apiErr, start)
			return
		}
		g.write(w, r, flags, envelope.Options{
			HasData: true,
			Data:    res.Data,
			Total:   intPtr(res.Total),
			Limit:   intPtr(res.Limit),
			Offset:  intPtr(res.Offset),
			HasMore: boolPtr(res.HasMore),
		}, http.StatusOK, start)
		return
	}

	g.runConfirmedVerb(w, r, flags, start, route.Action, route.Collection, "", p)
}

// dispatchEntity handles KindEntity: GET/PUT|PATCH/DELETE on a single
// record, per spec.md §4.14.
func (g *Gateway) dispatchEntity(w http.ResponseWriter, r *http.Request, route *router.Route, flags respmode.Flags, p principal.Principal, start time.Time) {
	model := route.Entity.Collection
	id := route.Entity.ID

	switch r.Method {
	case http.MethodGet:
		res, apiErr := g.deps.CRUD.Get(r.Context(), model, id)
		if apiErr != nil {
			g.writeError(w, r, flags, apiErr, start)
			return
		}
		g.writeData(w, r, flags, res, start)

	case http.MethodPut, http.MethodPatch:
		data, err := decodeJSONBody(r)
		if err != nil {
			g.writeError(w, r, flags, apierr.New(apierr.InvalidJSON, "request body is not valid JSON"), start)
			return
		}
		res, apiErr := g.deps.CRUD.Update(r.Context(), model, id, data, actorFrom(p))
		if apiErr != nil {
			g.writeError(w, r, flags, apiErr, start)
			return
		}
		g.writeData(w, r, flags, res, start)

	case http.MethodDelete:
		res, apiErr := g.deps.CRUD.Delete(r.Context(), model, id, actorFrom(p))
		if apiErr != nil {
			g.writeError(w, r, flags, apiErr, start)
			return
		}
		g.writeData(w, r, flags, res, start)

	default:
		w.Header().Set("Allow", "GET, PUT, PATCH, DELETE")
		g.writeError(w, r, flags, apierr.New(apierr.BadRequest, "method not allowed on this entity"), start)
	}
}

// dispatchEntityAction handles KindEntityAction: GET /:id/:verb, a
// confirmation-gated mutating verb scoped to one entity.
func (g *Gateway) dispatchEntityAction(w http.ResponseWriter, r *http.Request, route *router.Route, flags respmode.Flags, p principal.Principal, start time.Time) {
	g.runConfirmedVerb(w, r, flags, start, route.Action, route.Entity.Collection, route.Entity.ID, p)
}

// runConfirmedVerb dispatches a confirmation-gated GET action. create,
// update, and delete are the database convention's own mutations
// (spec.md §8 scenario 2/3's "GET /contacts/create?name=Alice&email=…"
// headline example) and go straight to CRUD; anything else is looked up
// in the registered VerbRegistry.
func (g *Gateway) runConfirmedVerb(w http.ResponseWriter, r *http.Request, flags respmode.Flags, start time.Time, action, collection, entityID string, p principal.Principal) {
	switch action {
	case "create":
		if entityID != "" {
			g.writeError(w, r, flags, apierr.New(apierr.BadRequest, "create is a collection-level action"), start)
			return
		}
		if g.deps.CRUD == nil {
			g.writeError(w, r, flags, apierr.New(apierr.NotFound, "no such collection: "+collection), start)
			return
		}
		g.confirmGate(w, r, flags, start, action, collection, entityID, p, http.StatusCreated, func(r *http.Request) (map[string]any, *apierr.Error) {
			return g.deps.CRUD.Create(r.Context(), collection, stringMapToAny(confirmDataFrom(r)), actorFrom(p))
		})
		return

	case "update":
		if entityID == "" {
			g.writeError(w, r, flags, apierr.New(apierr.BadRequest, "update requires an entity id"), start)
			return
		}
		if g.deps.CRUD == nil {
			g.writeError(w, r, flags, apierr.New(apierr.NotFound, "no such collection: "+collection), start)
			return
		}
		g.confirmGate(w, r, flags, start, action, collection, entityID, p, http.StatusOK, func(r *http.Request) (map[string]any, *apierr.Error) {
			return g.deps.CRUD.Update(r.Context(), collection, entityID, stringMapToAny(confirmDataFrom(r)), actorFrom(p))
		})
		return

	case "delete":
		if entityID == "" {
			g.writeError(w, r, flags, apierr.New(apierr.BadRequest, "delete requires an entity id"), start)
			return
		}
		if g.deps.CRUD == nil {
			g.writeError(w, r, flags, apierr.New(apierr.NotFound, "no such collection: "+collection), start)
			return
		}
		g.confirmGate(w, r, flags, start, action, collection, entityID, p, http.StatusOK, func(r *http.Request) (map[string]any, *apierr.Error) {
			return g.deps.CRUD.Delete(r.Context(), collection, entityID, actorFrom(p))
		})
		return
	}

	if g.deps.Verbs == nil {
		g.writeError(w, r, flags, apierr.New(apierr.MethodNotFound, "no such action: "+action), start)
		return
	}
	g.confirmGate(w, r, flags, start, action, collection, entityID, p, http.StatusOK, func(r *http.Request) (map[string]any, *apierr.Error) {
		data, err := decodeJSONBody(r)
		if err != nil {
			data = map[string]any{}
		}
		return g.deps.Verbs.Run(r.Context(), g.deps.DB, collection, action, entityID, data)
	})
}

// confirmGate wraps execute behind the two-phase confirmation protocol
// when action requires it (spec.md §4.8), reusing middleware.Confirm so
// the preview-response shape is identical to a route wrapped the same
// way. execute's result is written through the envelope at status.
func (g *Gateway) confirmGate(w http.ResponseWriter, r *http.Request, flags respmode.Flags, start time.Time, action, collection, entityID string, p principal.Principal, status int, execute func(r *http.Request) (map[string]any, *apierr.Error)) {
	run := func(w http.ResponseWriter, r *http.Request) {
		res, apiErr := execute(r)
		if apiErr != nil {
			g.writeError(w, r, flags, apiErr, start)
			return
		}
		g.write(w, r, flags, envelope.Options{HasData: true, Data: res}, status, start)
	}

	if !g.deps.ConfirmConfig.RequiresConfirm(action) {
		run(w, r)
		return
	}

	params := confirm.Params{
		Action: action,
		Type:   collection,
		Data:   confirmDataFrom(r),
		Tenant: middleware.TenantFrom(r.Context()),
		UserID: actorFrom(p),
	}
	paramsFn := func(*http.Request) (confirm.Params, bool) { return params, true }
	gated := middleware.Confirm(g.deps.ConfirmConfig, paramsFn, g.deps.API)(http.HandlerFunc(run))
	gated.ServeHTTP(w, r)
}

func confirmDataFrom(r *http.Request) map[string]string {
	out := map[string]string{}
	for k, vs := range r.URL.Query() {
		if k == "confirm" || k == "raw" || k == "debug" || k == "domains" || k == "stream" || k == "format" {
			continue
		}
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}

func stringMapToAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
