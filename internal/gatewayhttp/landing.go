package gatewayhttp

import (
	"net/http"
	"time"

	"github.com/latticeframe/gateway/internal/envelope"
	"github.com/latticeframe/gateway/internal/respmode"
)

// serveLanding renders GET /, the self-describing root resource. Its
// discover block surfaces every registered function with its three call
// transports plus the names of the mounted conventions, per SPEC_FULL.md
// §4.18.
func (g *Gateway) serveLanding(w http.ResponseWriter, r *http.Request, flags respmode.Flags, start time.Time) {
	var functions []map[string]any
	if g.deps.Functions != nil {
		for _, e := range g.deps.Functions.List() {
			functions = append(functions, map[string]any{
				"name":        e.Name,
				"description": e.Description,
				"example":     e.Example,
				"transports": map[string]string{
					"url": "/" + e.Name + "()",
					"rpc": "/rpc",
					"mcp": "/mcp",
				},
			})
		}
	}

	var conventions []string
	if g.deps.CRUD != nil {
		conventions = append(conventions, "database")
	}
	if g.deps.Events != nil {
		conventions = append(conventions, "events")
	}
	if len(g.deps.ProxyMounts) > 0 {
		conventions = append(conventions, "proxy")
	}
	if g.deps.Functions != nil {
		conventions = append(conventions, "functions")
	}
	if g.deps.QA != nil {
		conventions = append(conventions, "qa")
	}

	g.write(w, r, flags, envelope.Options{
		HasData: true,
		Data: map[string]any{
			"name":        g.deps.API.Name,
			"type":        g.deps.API.Type,
			"version":     g.deps.API.Version,
			"description": g.deps.API.Description,
		},
		Discover: map[string]any{
			"functions":   functions,
			"conventions": conventions,
		},
	}, http.StatusOK, start)
}
