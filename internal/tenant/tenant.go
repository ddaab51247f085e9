// Package tenant resolves the tenant scope for a request per spec.md §4.5.
package tenant

import (
	"net/http"
	"strings"
)

// Source identifies which resolution step produced the tenant.
type Source string

const (
	SourcePath      Source = "path"
	SourceHeader    Source = "header"
	SourceSubdomain Source = "subdomain"
	SourceClaim     Source = "claim"
	SourceDefault   Source = "default"
)

// Resolution is the resolved tenant plus the source that produced it.
type Resolution struct {
	Tenant string
	Source Source
}

// Principal is the minimal view of the authenticated principal the
// resolver needs: the org claim used as a last-resort tenant source.
type Principal interface {
	Org() string
}

// Config carries the recognized tenant-resolution option surface (per the
// "Configuration objects" design note); unknown options have no field to
// land in, so construction rejects them implicitly.
type Config struct {
	BaseDomains      []string // domains eligible for subdomain matching, e.g. "example.com"
	SystemSubdomains []string // excluded from subdomain matching: "api", "app", "docs"
	DefaultTenant    string   // literal fallback, defaults to "default"
}

// Resolver implements the priority chain: path prefix, x-tenant header,
// subdomain, principal org claim, then the configured default.
type Resolver struct {
	cfg Config
}

func New(cfg Config) *Resolver {
	if cfg.DefaultTenant == "" {
		cfg.DefaultTenant = "default"
	}
	return &Resolver{cfg: cfg}
}

// StripPrefix removes a leading /~slug/ tenant segment from path, returning
// the tenant slug (if any) and the remaining path.
func StripPrefix(path string) (slug string, rest string) {
	if !strings.HasPrefix(path, "/~") {
		return "", path
	}
	rest = path[2:]
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		return rest[:idx], rest[idx:]
	}
	// "/~slug" with nothing after: whole remainder is the slug, root path left.
	return rest, "/"
}

// Resolve runs the priority chain against r and the resolved principal
// (nil if the request is unauthenticated).
func (res *Resolver) Resolve(r *http.Request, principal Principal) Resolution {
	if slug, _ := StripPrefix(r.URL.Path); slug != "" {
		return Resolution{Tenant: slug, Source: SourcePath}
	}

	if h := r.Header.Get("x-tenant"); h != "" {
		return Resolution{Tenant: h, Source: SourceHeader}
	}

	if slug, ok := res.matchSubdomain(r.Host); ok {
		return Resolution{Tenant: slug, Source: SourceSubdomain}
	}

	if principal != nil {
		if org := principal.Org(); org != "" {
			return Resolution{Tenant: org, Source: SourceClaim}
		}
	}

	return Resolution{Tenant: res.cfg.DefaultTenant, Source: SourceDefault}
}

func (res *Resolver) matchSubdomain(host string) (string, bool) {
	host = stripPort(host)
	for _, base := range res.cfg.BaseDomains {
		suffix := "." + base
		if !strings.HasSuffix(host, suffix) {
			continue
		}
		sub := strings.TrimSuffix(host, suffix)
		if sub == "" || strings.Contains(sub, ".") {
			continue
		}
		if res.isSystemSubdomain(sub) {
			continue
		}
		return sub, true
	}
	return "", false
}

func (res *Resolver) isSystemSubdomain(sub string) bool {
	for _, s := range res.cfg.SystemSubdomains {
		if s == sub {
			return true
		}
	}
	return false
}

func stripPort(host string) string {
	if idx := strings.IndexByte(host, ':'); idx >= 0 {
		return host[:idx]
	}
	return host
}
