// Package upstream provides the one concrete reference implementation of
// binding.EventsBinding and binding.DatabaseBinding: a plain net/http
// client against a configured upstream base URL, retrying once on a 5xx
// response per spec.md §7 ("upstream 5xx ... is retried once").
//
// The two interfaces both declare a "Search" method with incompatible
// signatures, so a single Go type cannot satisfy both at once (unlike a
// dynamically-typed original, Go has no method overloading). HTTPBinding
// is therefore a shared transport core, and EventsHTTPBinding /
// DatabaseHTTPBinding are thin per-interface views over it — "one
// implementation" in the sense of one HTTP client, one retry policy, one
// config.
//
// Implementations for a real storage engine, the ClickHouse adapter, and
// the Durable Object remain out of scope per spec.md §1 Non-goals; this
// binding exists for tests and local development.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/latticeframe/gateway/internal/apierr"
	"github.com/latticeframe/gateway/internal/binding"
	"github.com/latticeframe/gateway/internal/filter"
)

// HTTPBinding is the shared transport: base URL, bearer token, timeout,
// and the retry-once-on-5xx policy every call goes through.
type HTTPBinding struct {
	baseURL string
	token   string
	client  *http.Client
}

// New builds an HTTPBinding. timeout bounds every request; baseURL must
// not have a trailing slash.
func New(baseURL, token string, timeout time.Duration) *HTTPBinding {
	return &HTTPBinding{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// Events returns the binding.EventsBinding view over this transport.
func (h *HTTPBinding) Events() *EventsHTTPBinding { return &EventsHTTPBinding{h} }

// Database returns the binding.DatabaseBinding view over this transport.
func (h *HTTPBinding) Database() *DatabaseHTTPBinding { return &DatabaseHTTPBinding{h} }

// do executes one request, retrying exactly once if the first attempt
// returns a 5xx status. The response body is JSON-decoded into out
// (ignored if out is nil).
func (h *HTTPBinding) do(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return apierr.New(apierr.InternalError, "encoding upstream request body").Wrap(err)
		}
	}

	resp, err := h.attempt(ctx, method, path, payload)
	if err != nil {
		return apierr.New(apierr.ProxyError, "upstream request failed").Wrap(err)
	}
	if resp.StatusCode >= 500 {
		resp.Body.Close()
		resp, err = h.attempt(ctx, method, path, payload)
		if err != nil {
			return apierr.New(apierr.ProxyError, "upstream request failed on retry").Wrap(err)
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apierr.New(apierr.ProxyError, "reading upstream response").Wrap(err)
	}

	if resp.StatusCode >= 400 {
		return apierr.New(apierr.ProxyError, fmt.Sprintf("upstream returned %d", resp.StatusCode)).WithDetails(string(data))
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apierr.New(apierr.UpstreamInvalidSON, "upstream returned invalid JSON").Wrap(err)
	}
	return nil
}

func (h *HTTPBinding) attempt(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	return h.client.Do(req)
}

// EventsHTTPBinding implements binding.EventsBinding.
type EventsHTTPBinding struct {
	*HTTPBinding
}

type eventsSearchRequest struct {
	Filters filter.Filters `json:"filters"`
	Scope   *string        `json:"scope,omitempty"`
}

func (h *EventsHTTPBinding) Search(ctx context.Context, filters filter.Filters, scope *string) (binding.SearchResult, error) {
	var out binding.SearchResult
	err := h.do(ctx, http.MethodPost, "/events/search", eventsSearchRequest{Filters: filters, Scope: scope}, &out)
	return out, err
}

type facetsRequest struct {
	Dimension string         `json:"dimension"`
	Filters   filter.Filters `json:"filters"`
	Scope     *string        `json:"scope,omitempty"`
}

func (h *EventsHTTPBinding) Facets(ctx context.Context, dimension string, filters filter.Filters, scope *string) (binding.FacetsResult, error) {
	var out binding.FacetsResult
	err := h.do(ctx, http.MethodPost, "/events/facets", facetsRequest{Dimension: dimension, Filters: filters, Scope: scope}, &out)
	return out, err
}

type countRequest struct {
	Filters filter.Filters `json:"filters"`
	GroupBy []string       `json:"groupBy,omitempty"`
	Scope   *string        `json:"scope,omitempty"`
}

func (h *EventsHTTPBinding) Count(ctx context.Context, filters filter.Filters, groupBy []string, scope *string) (binding.CountResult, error) {
	var out binding.CountResult
	err := h.do(ctx, http.MethodPost, "/events/count", countRequest{Filters: filters, GroupBy: groupBy, Scope: scope}, &out)
	return out, err
}

type sqlRequest struct {
	Query  string         `json:"query"`
	Params map[string]any `json:"params,omitempty"`
}

func (h *EventsHTTPBinding) SQL(ctx context.Context, query string, params map[string]any) (binding.SQLResult, error) {
	var out binding.SQLResult
	err := h.do(ctx, http.MethodPost, "/events/sql", sqlRequest{Query: query, Params: params}, &out)
	return out, err
}

// DatabaseHTTPBinding implements binding.DatabaseBinding.
type DatabaseHTTPBinding struct {
	*HTTPBinding
}

func (h *DatabaseHTTPBinding) Create(ctx context.Context, model string, data map[string]any) (map[string]any, error) {
	var out map[string]any
	err := h.do(ctx, http.MethodPost, "/"+model, data, &out)
	return out, err
}

func (h *DatabaseHTTPBinding) Get(ctx context.Context, model, id string) (map[string]any, error) {
	var out map[string]any
	err := h.do(ctx, http.MethodGet, "/"+model+"/"+id, nil, &out)
	return out, err
}

func (h *DatabaseHTTPBinding) Update(ctx context.Context, model, id string, data map[string]any) (map[string]any, error) {
	var out map[string]any
	err := h.do(ctx, http.MethodPatch, "/"+model+"/"+id, data, &out)
	return out, err
}

func (h *DatabaseHTTPBinding) Delete(ctx context.Context, model, id string) error {
	return h.do(ctx, http.MethodDelete, "/"+model+"/"+id, nil, nil)
}

func (h *DatabaseHTTPBinding) List(ctx context.Context, model string, filters filter.Filters, sort []filter.SortField, limit, offset int) (binding.ListResult, error) {
	q := url.Values{}
	for _, pair := range splitQuery(filter.Canonicalize(filters)) {
		q.Add(pair[0], pair[1])
	}
	if len(sort) > 0 {
		q.Set("sort", filter.SerializeSort(sort))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}

	var out binding.ListResult
	path := "/" + model
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}
	err := h.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (h *DatabaseHTTPBinding) Search(ctx context.Context, model, query string, limit int) (binding.ListResult, error) {
	q := url.Values{"q": {query}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out binding.ListResult
	err := h.do(ctx, http.MethodGet, "/"+model+"/search?"+q.Encode(), nil, &out)
	return out, err
}

func (h *DatabaseHTTPBinding) Count(ctx context.Context, model string, filters filter.Filters) (int, error) {
	q := url.Values{}
	for _, pair := range splitQuery(filter.Canonicalize(filters)) {
		q.Add(pair[0], pair[1])
	}
	var out struct {
		Count int `json:"count"`
	}
	path := "/" + model + "/$count"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}
	err := h.do(ctx, http.MethodGet, path, nil, &out)
	return out.Count, err
}

// splitQuery turns a canonical "a[$eq]=1&b[$gt]=2" string back into
// [key,value] pairs for re-encoding through url.Values.
func splitQuery(s string) [][2]string {
	if s == "" {
		return nil
	}
	var out [][2]string
	for _, part := range splitOn(s, '&') {
		kv := splitOn(part, '=')
		if len(kv) == 2 {
			out = append(out, [2]string{kv[0], kv[1]})
		}
	}
	return out
}

func splitOn(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
