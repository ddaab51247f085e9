package proxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForwardSuccess(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	h := New(Config{BaseURL: upstream.URL})
	resp, apiErr := h.Forward(context.Background(), "/proxy/github", http.MethodGet, "repos/foo", url.Values{}, nil, http.Header{})
	require.Nil(t, apiErr)
	assert.Equal(t, 200, resp.Status)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
}

func TestForwardRejectsTraversal(t *testing.T) {
	h := New(Config{BaseURL: "http://upstream.example"})
	_, apiErr := h.Forward(context.Background(), "/proxy/x", http.MethodGet, "../etc/passwd", url.Values{}, nil, http.Header{})
	require.NotNil(t, apiErr)
	assert.Equal(t, "INVALID_PATH", string(apiErr.Code))
}

func TestForwardRejectsOutsideAllowList(t *testing.T) {
	h := New(Config{BaseURL: "http://upstream.example", AllowPaths: []string{"repos/"}})
	_, apiErr := h.Forward(context.Background(), "/proxy/x", http.MethodGet, "secrets/x", url.Values{}, nil, http.Header{})
	require.NotNil(t, apiErr)
	assert.Equal(t, "PATH_NOT_ALLOWED", string(apiErr.Code))
}

func TestForwardInvalidJSONWithJSONContentType(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`not json`))
	}))
	defer upstream.Close()

	h := New(Config{BaseURL: upstream.URL})
	_, apiErr := h.Forward(context.Background(), "/proxy/x", http.MethodGet, "broken", url.Values{}, nil, http.Header{})
	require.NotNil(t, apiErr)
	assert.Equal(t, "UPSTREAM_INVALID_JSON", string(apiErr.Code))
}

func TestForward5xxRetriesOnce(t *testing.T) {
	attempts := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	h := New(Config{BaseURL: upstream.URL})
	resp, apiErr := h.Forward(context.Background(), "/proxy/x", http.MethodGet, "flaky", url.Values{}, nil, http.Header{})
	require.Nil(t, apiErr)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 200, resp.Status)
}

func TestForwardRehomesLocationHeader(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "") // set below, base URL is dynamic per test run
	}))
	defer upstream.Close()

	upstream.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", upstream.URL+"/repos/foo/issues/1")
		w.WriteHeader(http.StatusFound)
	})

	h := New(Config{BaseURL: upstream.URL})
	resp, apiErr := h.Forward(context.Background(), "/proxy/github", http.MethodGet, "repos/foo", url.Values{}, nil, http.Header{})
	require.Nil(t, apiErr)
	assert.Equal(t, "/proxy/github/repos/foo/issues/1", resp.Headers.Get("Location"))
}
