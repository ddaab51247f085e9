package gatewayhttp

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/latticeframe/gateway/internal/apierr"
	"github.com/latticeframe/gateway/internal/envelope"
	"github.com/latticeframe/gateway/internal/respmode"
)

func reqStart(r *http.Request) time.Time { return time.Now() }

func trimSlashes(s string) string { return strings.Trim(s, "/") }

// hasPrefixSegment reports whether trimmed's first "/"-separated segment
// equals seg.
func hasPrefixSegment(trimmed, seg string) bool {
	if trimmed == seg {
		return true
	}
	return strings.HasPrefix(trimmed, seg+"/")
}

func restAfterSegment(trimmed, seg string) string {
	rest := strings.TrimPrefix(trimmed, seg)
	return strings.TrimPrefix(rest, "/")
}

// write assembles opts into an envelope, applies the ?debug and ?domains
// transforms (which must run against Options before Build since Envelope
// has no setters), then renders it per flags.
func (g *Gateway) write(w http.ResponseWriter, r *http.Request, flags respmode.Flags, opts envelope.Options, status int, start time.Time) {
	opts.API = g.deps.API
	if opts.Links == nil {
		opts.Links = map[string]any{}
	}
	opts.Links["home"] = "/"
	opts.Links["status"] = "/qa"

	if flags.Debug {
		respmode.AttachDebug(&opts, start, r, true)
	}
	if flags.Domains && g.deps.DomainSuffix != "" {
		respmode.RewriteDomains(&opts, g.deps.DomainMap, g.deps.DomainSuffix)
	}

	env := envelope.Build(opts)
	dataKey := opts.DataKey
	if dataKey == "" {
		dataKey = "data"
	}
	respmode.Write(w, env, dataKey, flags, status)
}

// writeError renders apiErr as the envelope's error payload, per spec.md
// §7 ("links.home and links.status are always attached to error
// responses").
func (g *Gateway) writeError(w http.ResponseWriter, r *http.Request, flags respmode.Flags, apiErr *apierr.Error, start time.Time) {
	g.write(w, r, flags, envelope.Options{Error: apiErr}, apiErr.Status, start)
}

func (g *Gateway) writeData(w http.ResponseWriter, r *http.Request, flags respmode.Flags, data any, start time.Time) {
	g.write(w, r, flags, envelope.Options{HasData: true, Data: data}, http.StatusOK, start)
}

func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }
func atoiOr(s string, d int) int {
	if s == "" {
		return d
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return n
}
