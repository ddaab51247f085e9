// Package middleware implements the gateway's request pipeline (spec.md
// §2): CORS, request-id tagging, structured logging, panic recovery,
// rate-limiting, and the mutation-confirmation gate, each a plain
// func(http.Handler) http.Handler composed by internal/gatewayhttp.
package middleware

import (
	"context"

	"github.com/latticeframe/gateway/internal/principal"
)

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyPrincipal
	ctxKeyTenant
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// RequestIDFrom returns the request id placed on ctx, or "" if absent.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

func WithPrincipal(ctx context.Context, p principal.Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal, p)
}

// PrincipalFrom returns the resolved principal placed on ctx, or the zero
// (anonymous) Principal if none was resolved.
func PrincipalFrom(ctx context.Context) principal.Principal {
	p, _ := ctx.Value(ctxKeyPrincipal).(principal.Principal)
	return p
}

func WithTenant(ctx context.Context, tenant string) context.Context {
	return context.WithValue(ctx, ctxKeyTenant, tenant)
}

// TenantFrom returns the resolved tenant slug placed on ctx, or "" if none.
func TenantFrom(ctx context.Context) string {
	t, _ := ctx.Value(ctxKeyTenant).(string)
	return t
}
