package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/latticeframe/gateway/internal/apierr"
	"github.com/latticeframe/gateway/internal/confirm"
	"github.com/latticeframe/gateway/internal/envelope"
)

// ConfirmParams builds the confirm.Params fingerprint for one request; the
// caller (internal/gatewayhttp, which has already parsed the route) supplies
// action/type/data, since those vary per convention.
type ConfirmParams func(r *http.Request) (confirm.Params, bool)

// Confirm gates a mutating GET action behind the two-phase confirmation
// protocol (spec.md §4.8): paramsFn reports (params, requiresConfirm) for
// r. Three outcomes:
//
//   - no ?confirm= supplied: render a preview under the envelope's "confirm"
//     key instead of executing next.
//   - ?confirm=<hash> supplied and valid: execute next.
//   - ?confirm=<hash> supplied but invalid or expired: BAD_REQUEST, per
//     spec.md §8 scenario 3 ("reusing the hash with action=delete → 400").
func Confirm(cfg confirm.Config, paramsFn ConfirmParams, api envelope.APIInfo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			params, requiresConfirm := paramsFn(r)
			if !requiresConfirm {
				next.ServeHTTP(w, r)
				return
			}

			now := time.Now()
			supplied := r.URL.Query().Get("confirm")

			switch {
			case supplied != "" && cfg.Validate(params, now, supplied):
				next.ServeHTTP(w, r)
				return
			case supplied != "":
				writeConfirmError(w, api, apierr.New(apierr.BadRequest, "confirmation hash is invalid or expired"))
				return
			}

			hash := cfg.Generate(params, now)
			writePreview(w, r, api, params, hash)
		})
	}
}

// writePreview renders the confirm envelope per spec.md §3/§4.8: the
// payload lands under the "confirm" key as {action, type?, preview,
// execute, cancel}. execute carries the original mutation query forward
// with confirm=<hash> appended so phase 2 reconstructs the same Data the
// hash was computed over; cancel points at the resource the action hangs
// off of.
func writePreview(w http.ResponseWriter, r *http.Request, api envelope.APIInfo, params confirm.Params, hash string) {
	data := map[string]any{
		"action":  params.Action,
		"preview": params.Data,
		"execute": executeURL(r, hash),
		"cancel":  cancelURL(r),
	}
	if params.Type != "" {
		data["type"] = params.Type
	}

	env := envelope.Build(envelope.Options{
		API:     api,
		Links:   map[string]any{"home": "/", "status": "/qa"},
		DataKey: "confirm",
		HasData: true,
		Data:    data,
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(env)
}

func writeConfirmError(w http.ResponseWriter, api envelope.APIInfo, apiErr *apierr.Error) {
	env := envelope.Build(envelope.Options{
		API:   api,
		Links: map[string]any{"home": "/", "status": "/qa"},
		Error: apiErr,
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	_ = json.NewEncoder(w).Encode(env)
}

// executeURL reconstructs r's URL with confirm=<hash> added to the
// existing query, so clicking it resubmits the original mutation
// arguments alongside the confirmation hash.
func executeURL(r *http.Request, hash string) string {
	q := r.URL.Query()
	q.Set("confirm", hash)
	return r.URL.Path + "?" + q.Encode()
}

// cancelURL returns the canonical parent resource for r's path by
// dropping the trailing action segment, e.g. /contacts/create ->
// /contacts, /contacts/abc123/archive -> /contacts/abc123.
func cancelURL(r *http.Request) string {
	path := strings.TrimRight(r.URL.Path, "/")
	idx := strings.LastIndexByte(path, '/')
	if idx <= 0 {
		return "/"
	}
	return path[:idx]
}
