// Package respmode implements the response-mode transforms (spec.md
// §4.12): query-flag-driven rewrites of the assembled envelope — raw,
// debug, domains, stream, and markdown output.
package respmode

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/latticeframe/gateway/internal/envelope"
)

// Flags is the parsed set of response-mode query flags recognized on any
// GET per spec.md §6.
type Flags struct {
	Raw     bool
	Debug   bool
	Domains bool
	Stream  bool
	Array   bool
	Format  string // "md" or ""
}

// ParseFlags reads the recognized flags out of a request's query string.
// ?raw takes final precedence over every envelope-mutating mode (§4.12).
func ParseFlags(q url.Values) Flags {
	return Flags{
		Raw:     q.Has("raw"),
		Debug:   q.Has("debug"),
		Domains: q.Has("domains"),
		Stream:  q.Has("stream"),
		Array:   q.Has("array"),
		Format:  q.Get("format"),
	}
}

// DomainMap maps a path-style URL segment to its subdomain override, used
// by the ?domains transform.
type DomainMap map[string]string

// AttachDebug fills opts.Debug with {timing:{duration,timestamp},
// request:{method,url,headers?}}, redacting authorization/cookie headers,
// per spec.md §4.12.
func AttachDebug(opts *envelope.Options, start time.Time, r *http.Request, includeHeaders bool) {
	reqBlock := map[string]any{
		"method": r.Method,
		"url":    r.URL.String(),
	}
	if includeHeaders {
		reqBlock["headers"] = redactedHeaders(r.Header)
	}
	opts.Debug = map[string]any{
		"timing": map[string]any{
			"duration":  time.Since(start).Milliseconds(),
			"timestamp": start.UTC().Format(time.RFC3339Nano),
		},
		"request": reqBlock,
	}
}

var alwaysRedacted = map[string]bool{"authorization": true, "cookie": true}

func redactedHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) == 0 {
			continue
		}
		if alwaysRedacted[strings.ToLower(k)] {
			out[k] = "[redacted]"
			continue
		}
		out[k] = v[0]
	}
	return out
}

// RewriteDomains rewrites every URL in opts.Links, opts.Actions, and
// opts.Options from path style (https://{host}/{segment}/…) to subdomain
// style (https://{segment}.{suffix}/…), skipping tenant-prefixed paths
// (/~tenant/…), per spec.md §4.12.
func RewriteDomains(opts *envelope.Options, domains DomainMap, suffix string) {
	opts.Links = rewriteAny(opts.Links, domains, suffix).(map[string]any)
	if opts.Actions != nil {
		opts.Actions = rewriteAny(opts.Actions, domains, suffix).(map[string]any)
	}
	if opts.Options != nil {
		opts.Options = rewriteAny(opts.Options, domains, suffix).(map[string]any)
	}
}

func rewriteAny(v any, domains DomainMap, suffix string) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = rewriteAny(val, domains, suffix)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = rewriteAny(val, domains, suffix)
		}
		return out
	case string:
		return rewriteURL(t, domains, suffix)
	default:
		return v
	}
}

// rewriteURL rewrites one https://{host}/{segment}/… URL to
// https://{segment}.{suffix}/…, unless the path is tenant-prefixed.
func rewriteURL(raw string, domains DomainMap, suffix string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	path := strings.TrimPrefix(u.Path, "/")
	if strings.HasPrefix(path, "~") {
		return raw
	}
	segs := strings.SplitN(path, "/", 2)
	segment := segs[0]
	if segment == "" {
		return raw
	}
	subdomain := segment
	if mapped, ok := domains[segment]; ok {
		subdomain = mapped
	}
	rest := ""
	if len(segs) == 2 {
		rest = "/" + segs[1]
	}
	return u.Scheme + "://" + subdomain + "." + suffix + rest
}
