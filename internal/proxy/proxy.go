// Package proxy implements the proxy convention (spec.md §4.16, added): a
// minimal GET/POST forwarder to a configured upstream base URL, re-homing
// Location headers and classifying failures per §7 (PROXY_ERROR,
// UPSTREAM_INVALID_JSON). Grounded on the teacher's retry-on-failure
// client pattern, generalized from a single graph SDK to an arbitrary
// upstream base URL.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/latticeframe/gateway/internal/apierr"
)

// Config carries the proxy convention's recognized option surface.
type Config struct {
	BaseURL    string
	AllowPaths []string // empty means no restriction beyond traversal checks
	Timeout    time.Duration
}

// Handler forwards requests to cfg.BaseURL.
type Handler struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	client := &http.Client{
		Timeout: cfg.Timeout,
		// Redirects are handed back, not followed, so rehomeLocation sees them.
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	return &Handler{cfg: cfg, client: client}
}

// Response is the forwarded upstream response, ready for the gateway to
// re-home and write back to the client.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Forward validates restPath, then forwards method/query/body/headers to
// cfg.BaseURL + "/" + restPath, retrying once on a 5xx response per §7.
// mountPrefix (e.g. "/proxy/github") is used to re-home any Location header
// the upstream returns from its own base URL back onto the gateway's mount
// point.
func (h *Handler) Forward(ctx context.Context, mountPrefix, method, restPath string, query url.Values, body io.Reader, headers http.Header) (*Response, *apierr.Error) {
	if apiErr := h.validatePath(restPath); apiErr != nil {
		return nil, apiErr
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = io.ReadAll(body)
		if err != nil {
			return nil, apierr.New(apierr.BadRequest, "reading request body failed").Wrap(err)
		}
	}

	resp, err := h.attempt(ctx, method, restPath, query, payload, headers)
	if err != nil {
		return nil, apierr.New(apierr.ProxyError, "upstream request failed").Wrap(err)
	}
	if resp.StatusCode >= 500 {
		resp.Body.Close()
		resp, err = h.attempt(ctx, method, restPath, query, payload, headers)
		if err != nil {
			return nil, apierr.New(apierr.ProxyError, "upstream request failed on retry").Wrap(err)
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.New(apierr.ProxyError, "reading upstream response failed").Wrap(err)
	}

	if resp.StatusCode >= 400 {
		return nil, apierr.New(apierr.ProxyError, "upstream returned an error status").WithDetails(map[string]any{"status": resp.StatusCode})
	}

	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "application/json") && len(data) > 0 {
		var probe any
		if jsonErr := json.Unmarshal(data, &probe); jsonErr != nil {
			return nil, apierr.New(apierr.UpstreamInvalidSON, "upstream returned invalid JSON with a JSON content-type")
		}
	}

	out := &Response{Status: resp.StatusCode, Headers: resp.Header.Clone(), Body: data}
	h.rehomeLocation(out, mountPrefix)
	return out, nil
}

func (h *Handler) attempt(ctx context.Context, method, restPath string, query url.Values, payload []byte, headers http.Header) (*http.Response, error) {
	target := strings.TrimRight(h.cfg.BaseURL, "/") + "/" + strings.TrimLeft(restPath, "/")
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, err
	}
	for k, vs := range headers {
		if isHopByHop(k) {
			continue
		}
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return h.client.Do(req)
}

// rehomeLocation rewrites a Location header pointing at the upstream base
// URL back onto mountPrefix, so a client following a redirect stays on the
// gateway's own host.
func (h *Handler) rehomeLocation(resp *Response, mountPrefix string) {
	loc := resp.Headers.Get("Location")
	if loc == "" {
		return
	}
	base := strings.TrimRight(h.cfg.BaseURL, "/")
	if strings.HasPrefix(loc, base) {
		rest := strings.TrimPrefix(loc, base)
		resp.Headers.Set("Location", strings.TrimRight(mountPrefix, "/")+"/"+strings.TrimLeft(rest, "/"))
	}
}

func (h *Handler) validatePath(restPath string) *apierr.Error {
	if strings.Contains(restPath, "..") {
		return apierr.New(apierr.InvalidPath, "path traversal detected")
	}
	if len(h.cfg.AllowPaths) == 0 {
		return nil
	}
	for _, allowed := range h.cfg.AllowPaths {
		if strings.HasPrefix(restPath, allowed) {
			return nil
		}
	}
	return apierr.New(apierr.PathNotAllowed, "path is outside the configured allow-list")
}

var hopByHopHeaders = map[string]bool{
	"Connection": true, "Keep-Alive": true, "Proxy-Authenticate": true,
	"Proxy-Authorization": true, "Te": true, "Trailer": true,
	"Transfer-Encoding": true, "Upgrade": true, "Host": true,
}

func isHopByHop(header string) bool {
	return hopByHopHeaders[http.CanonicalHeaderKey(header)]
}
