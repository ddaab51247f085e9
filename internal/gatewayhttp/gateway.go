// Package gatewayhttp wires every convention (§4) behind the request
// pipeline described in spec.md §2: context → CORS → auth → tenant
// resolution → router → response-modes → rate-limit → mutation-confirm →
// meta-dispatch → convention handlers → envelope assembly → response.
// Grounded on the teacher's internal/mcp/http.go transport-wiring shape,
// generalized from a single MCP endpoint to the gateway's full surface.
package gatewayhttp

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/latticeframe/gateway/internal/binding"
	"github.com/latticeframe/gateway/internal/config"
	"github.com/latticeframe/gateway/internal/confirm"
	"github.com/latticeframe/gateway/internal/crud"
	"github.com/latticeframe/gateway/internal/envelope"
	"github.com/latticeframe/gateway/internal/events"
	"github.com/latticeframe/gateway/internal/meta"
	"github.com/latticeframe/gateway/internal/middleware"
	"github.com/latticeframe/gateway/internal/principal"
	"github.com/latticeframe/gateway/internal/proxy"
	"github.com/latticeframe/gateway/internal/qa"
	"github.com/latticeframe/gateway/internal/ratelimit"
	"github.com/latticeframe/gateway/internal/registry"
	"github.com/latticeframe/gateway/internal/respmode"
	"github.com/latticeframe/gateway/internal/router"
	"github.com/latticeframe/gateway/internal/tenant"
)

// Deps bundles every collaborator the gateway dispatches against. Every
// field is built once at boot (cmd/gatewayd) and shared read-only across
// requests, per spec.md §5.
type Deps struct {
	Config *config.Config
	Logger *zap.Logger
	API    envelope.APIInfo

	TenantResolver    *tenant.Resolver
	PrincipalResolver *principal.Resolver
	RateLimiter       *ratelimit.Limiter
	ConfirmConfig     confirm.Config

	CRUD        *crud.Handler
	CRUDSchemas *crud.Registry
	Verbs       *crud.VerbRegistry
	DB          binding.DatabaseBinding

	Events *events.Handler

	ProxyMounts map[string]*proxy.Handler // keyed by the mount segment, e.g. "github" for /proxy/github/*

	Functions *registry.Registry
	MCP       *registry.HTTPTransport
	QA        *qa.Registry

	MetaDeps meta.Deps

	DomainSuffix string
	DomainMap    respmode.DomainMap
}

// Gateway dispatches every HTTP route kind the router can produce against
// Deps, and renders the result through the response envelope.
type Gateway struct {
	deps   Deps
	router *router.Router
}

func New(deps Deps) *Gateway {
	return &Gateway{deps: deps, router: router.New()}
}

// Handler builds the full middleware chain around the dispatcher.
// Recover is outermost so it catches panics from every inner stage;
// request-id tagging, CORS, and access logging follow, then the
// token-bucket limiter, then the route dispatcher itself (which resolves
// auth/tenant/response-modes/confirmation per spec.md §2).
func (g *Gateway) Handler() http.Handler {
	h := http.Handler(http.HandlerFunc(g.route))
	if g.deps.RateLimiter != nil && g.deps.Config.RateLimit.Enabled {
		h = middleware.RateLimit(g.deps.RateLimiter, g.deps.Config.RateLimit.Burst, middleware.RemoteAddrKey, g.deps.API)(h)
	}
	h = middleware.Logging(g.deps.Logger)(h)
	h = middleware.CORS(g.deps.Config.CORS.AllowedOrigins)(h)
	h = middleware.RequestID(h)
	h = middleware.Recover(g.deps.Logger, g.deps.API)(h)
	return h
}

// route is the single dispatch entry point: it resolves the principal and
// tenant, recognizes the reserved top-level mounts (§6), and otherwise
// classifies the path through the router and dispatches by Kind.
func (g *Gateway) route(w http.ResponseWriter, r *http.Request) {
	start := reqStart(r)

	p := principal.Principal{}
	if g.deps.PrincipalResolver != nil {
		resolved, err := g.deps.PrincipalResolver.Resolve(r)
		if err == nil {
			p = resolved
		}
	}

	var tenantSlug string
	if g.deps.TenantResolver != nil {
		tenantSlug = g.deps.TenantResolver.Resolve(r, p).Tenant
	}

	ctx := middleware.WithPrincipal(r.Context(), p)
	ctx = middleware.WithTenant(ctx, tenantSlug)
	r = r.WithContext(ctx)

	_, rest := tenant.StripPrefix(r.URL.Path)
	trimmed := trimSlashes(rest)

	switch {
	case trimmed == "mcp":
		g.deps.MCP.ServeMCP(w, r)
		return
	case trimmed == "rpc":
		g.deps.MCP.ServeRPC(w, r)
		return
	case trimmed == "qa":
		g.serveQA(w, r)
		return
	case trimmed == "me":
		g.serveMe(w, r, p)
		return
	case hasPrefixSegment(trimmed, "proxy"):
		g.serveProxy(w, r, trimmed)
		return
	}

	route := g.router.Parse(r.URL.Path, r.URL.RawQuery)
	route.Tenant = tenantSlug
	flags := respmode.ParseFlags(r.URL.Query())

	g.dispatch(w, r, &route, flags, p, start)
}
