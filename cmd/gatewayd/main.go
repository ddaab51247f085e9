// Command gatewayd runs the hypermedia gateway server.
//
// It serves every convention described in SPEC_FULL.md behind a single
// HTTP listener: the database/CRUD convention, the read-only events
// convention, the proxy convention, the URL function-call/MCP/RPC
// transports, and the $name meta-resource dispatch table, all rendered
// through the shared response envelope.
//
// Configuration is loaded from a TOML file (GATEWAY_CONFIG env var) with
// an environment-variable overlay; see internal/config.
package main

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/latticeframe/gateway/internal/binding"
	"github.com/latticeframe/gateway/internal/cache"
	"github.com/latticeframe/gateway/internal/config"
	"github.com/latticeframe/gateway/internal/confirm"
	"github.com/latticeframe/gateway/internal/crud"
	"github.com/latticeframe/gateway/internal/envelope"
	"github.com/latticeframe/gateway/internal/events"
	"github.com/latticeframe/gateway/internal/fncall"
	"github.com/latticeframe/gateway/internal/gatewayhttp"
	"github.com/latticeframe/gateway/internal/meta"
	"github.com/latticeframe/gateway/internal/obs"
	"github.com/latticeframe/gateway/internal/principal"
	"github.com/latticeframe/gateway/internal/proxy"
	"github.com/latticeframe/gateway/internal/qa"
	"github.com/latticeframe/gateway/internal/ratelimit"
	"github.com/latticeframe/gateway/internal/registry"
	"github.com/latticeframe/gateway/internal/respmode"
	"github.com/latticeframe/gateway/internal/sqid"
	"github.com/latticeframe/gateway/internal/tenant"
	"github.com/latticeframe/gateway/internal/upstream"
)

// Version is set via ldflags at build time.
var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gatewayd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("GATEWAY_CONFIG"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := obs.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	version := cfg.Server.Version
	if Version != "dev" {
		version = Version
	}
	logger.Info("starting gatewayd",
		zap.String("version", version),
		zap.String("upstream", cfg.Upstream.BaseURL),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	up := upstream.New(cfg.Upstream.BaseURL, cfg.Upstream.Token, cfg.Upstream.Timeout())
	db := up.Database()

	schemas := registerSchemas()
	crudHandler := crud.New(db, schemas)
	verbs := registerVerbs()

	var discoveryCache cache.Cache
	if cfg.Cache.RedisAddr != "" {
		redisCache, err := cache.NewRedis(cfg.Cache.RedisAddr, cfg.Server.Name)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer redisCache.Close() //nolint:errcheck
		discoveryCache = redisCache
	} else {
		mem := cache.NewMemory(cfg.Cache.ShardN)
		go mem.Run(ctx, time.Minute)
		defer mem.Stop()
		discoveryCache = mem
	}

	eventsHandler := events.New(up.Events(), discoveryCache, events.Config{
		Categories:   cfg.Events.Categories,
		RequireAuth:  cfg.Events.RequireAuth,
		DiscoveryTTL: cfg.Events.DiscoveryTTL(),
	})

	proxyMounts := map[string]*proxy.Handler{}
	if cfg.Upstream.BaseURL != "" {
		proxyMounts["upstream"] = proxy.New(proxy.Config{
			BaseURL:    cfg.Upstream.BaseURL,
			AllowPaths: cfg.Upstream.AllowPaths,
			Timeout:    cfg.Upstream.Timeout(),
		})
	}

	funcs := registry.New()
	registerFunctions(funcs, schemas)
	mcpServer := registry.NewMCPServer(funcs, registry.ServerInfo{
		Name:    cfg.Server.Name,
		Version: version,
	}, logger)
	mcpTransport := registry.NewHTTPTransport(mcpServer, funcs, logger)

	qaRegistry := qa.New(funcs, schemas)
	registerTests(qaRegistry, schemas)

	tenantResolver := tenant.New(tenant.Config{
		BaseDomains:      []string{cfg.Tenant.DomainSuffix},
		SystemSubdomains: cfg.Tenant.SystemSubdomains,
		DefaultTenant:    cfg.Tenant.Default,
	})

	var principalResolver *principal.Resolver
	if cfg.Mutation.Secret != "" {
		principalResolver = principal.NewResolver([]byte(cfg.Mutation.Secret))
	}

	limiter := ratelimit.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	api := envelope.APIInfo{
		Name:        cfg.Server.Name,
		Type:        cfg.Server.Type,
		Version:     version,
		Description: "hypermedia gateway",
	}

	gw := gatewayhttp.New(gatewayhttp.Deps{
		Config: cfg,
		Logger: logger,
		API:    api,

		TenantResolver:    tenantResolver,
		PrincipalResolver: principalResolver,
		RateLimiter:       limiter,
		ConfirmConfig: confirm.Config{
			Secret:  cfg.Mutation.Secret,
			TTL:     cfg.Mutation.TTL(),
			Actions: cfg.Mutation.Actions,
		},

		CRUD:        crudHandler,
		CRUDSchemas: schemas,
		Verbs:       verbs,
		DB:          db,

		Events: eventsHandler,

		ProxyMounts: proxyMounts,

		Functions: funcs,
		MCP:       mcpTransport,
		QA:        qaRegistry,

		MetaDeps: meta.Deps{
			Schema:    schemas,
			PageSizes: []int{10, 25, 50, 100},
		},

		DomainSuffix: cfg.Tenant.DomainSuffix,
		DomainMap:    respmode.DomainMap{},
	})

	srv := &http.Server{
		Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("listening: %w", err)
	}
}

// registerSchemas builds the database convention's model registry. A real
// deployment would load these from the upstream's own schema-introspection
// endpoint; they are declared here until that exists.
func registerSchemas() *crud.Registry {
	reg := crud.NewRegistry()
	reg.Register(crud.Schema{Model: "contacts", Fields: map[string]crud.FieldSpec{
		"name":  {Type: "string", Required: true},
		"email": {Type: "string"},
	}})
	reg.Register(crud.Schema{Model: "organizations", Fields: map[string]crud.FieldSpec{
		"name":   {Type: "string", Required: true},
		"domain": {Type: "string"},
	}})
	reg.Register(crud.Schema{Model: "tasks", Fields: map[string]crud.FieldSpec{
		"title":  {Type: "string", Required: true},
		"status": {Type: "string"},
	}})
	return reg
}

// registerVerbs wires the collection/entity verbs recognized by the
// gateway's :action convention (SPEC_FULL.md §4.8).
func registerVerbs() *crud.VerbRegistry {
	verbs := crud.NewVerbRegistry()
	verbs.Register("contacts", "archive", func(ctx context.Context, db binding.DatabaseBinding, id string, _ map[string]any) (map[string]any, error) {
		return db.Update(ctx, "contacts", id, map[string]any{"archived": true})
	})
	verbs.Register("tasks", "complete", func(ctx context.Context, db binding.DatabaseBinding, id string, _ map[string]any) (map[string]any, error) {
		return db.Update(ctx, "tasks", id, map[string]any{"status": "complete"})
	})
	return verbs
}

// registerFunctions registers the URL function-call convention's built-in
// utilities (SPEC_FULL.md §4.10), exposed identically over the bare-URL,
// /rpc, and /mcp transports.
func registerFunctions(reg *registry.Registry, schemas *crud.Registry) {
	typeRegistry := sqid.NewTypeRegistry(schemaTypeNames(schemas)...)
	codec := sqid.New(sqid.Config{})

	reg.Register(registry.Entry{
		Name:        "mintId",
		Description: "mints a fresh type_sqid identifier for a registered model type",
		Example:     `mintId(type=contact)`,
		Handler: func(ctx context.Context, call fncall.Call) (any, error) {
			typ := call.Kwargs["type"]
			if typ == "" && len(call.Args) > 0 {
				typ = call.Args[0].Raw
			}
			num, ok := typeRegistry.NumberFor(typ)
			if !ok {
				return nil, fmt.Errorf("unknown type %q", typ)
			}
			seq, err := randomSequence()
			if err != nil {
				return nil, err
			}
			encoded, err := codec.Encode([]uint64{uint64(num), seq})
			if err != nil {
				return nil, err
			}
			return map[string]any{"id": typ + "_" + encoded, "type": typ}, nil
		},
	})
}

// schemaTypeNames derives each registered model's singular type name for
// the sqid type registry: internal/ident pluralizes a type prefix to get
// the collection name, so the registry is seeded with the inverse.
func schemaTypeNames(schemas *crud.Registry) []string {
	models := schemas.Models()
	names := make([]string, 0, len(models))
	for _, m := range models {
		if len(m) > 1 && m[len(m)-1] == 's' {
			names = append(names, m[:len(m)-1])
		} else {
			names = append(names, m)
		}
	}
	return names
}

func randomSequence() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]) & 0x7fffffffffffffff, nil
}

// registerTests registers the smoke tests surfaced over /qa's tests/list
// and tests/run (SPEC_FULL.md §4.17): cheap checks that exercise each
// convention's wiring without requiring a live upstream.
func registerTests(reg *qa.Registry, schemas *crud.Registry) {
	reg.RegisterTest(qa.Test{
		Name:        "crud-schema-registered",
		Description: "the contacts model has a schema registered",
		Run: func(ctx context.Context) error {
			if _, ok := schemas.Schema("contacts"); !ok {
				return fmt.Errorf("contacts schema not registered")
			}
			return nil
		},
	})
}
