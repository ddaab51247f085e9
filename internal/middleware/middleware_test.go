package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/latticeframe/gateway/internal/confirm"
	"github.com/latticeframe/gateway/internal/envelope"
	"github.com/latticeframe/gateway/internal/ratelimit"
)

func TestRequestIDGeneratesWhenAbsent(t *testing.T) {
	var gotID string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = RequestIDFrom(r.Context())
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, gotID)
	assert.Equal(t, gotID, rec.Header().Get(RequestIDHeader))
}

func TestRequestIDHonorsInbound(t *testing.T) {
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "trace-123")
	h.ServeHTTP(rec, req)
	assert.Equal(t, "trace-123", rec.Header().Get(RequestIDHeader))
}

func TestRecoverConvertsPanicToInternalError(t *testing.T) {
	logger := zap.NewNop()
	h := Recover(logger, envelope.APIInfo{Name: "gateway"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestRateLimitRejectsOverBurst(t *testing.T) {
	limiter := ratelimit.New(1, 1)
	h := RateLimit(limiter, 1, RemoteAddrKey, envelope.APIInfo{Name: "gateway"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "1.2.3.4:9"

	first := httptest.NewRecorder()
	h.ServeHTTP(first, req)
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, req)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
}

func TestConfirmRequiresHashBeforeExecuting(t *testing.T) {
	cfg := confirm.Config{Secret: "s3cr3t", TTL: time.Minute}
	called := false
	paramsFn := func(r *http.Request) (confirm.Params, bool) {
		return confirm.Params{Action: "delete", Type: "contact"}, true
	}
	h := Confirm(cfg, paramsFn, envelope.APIInfo{Name: "gateway"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	preview := httptest.NewRecorder()
	h.ServeHTTP(preview, httptest.NewRequest(http.MethodGet, "/contact_abc/delete", nil))
	require.False(t, called)
	assert.Equal(t, http.StatusOK, preview.Code)
	assert.Contains(t, preview.Body.String(), "\"confirm\"")
	assert.Contains(t, preview.Body.String(), "\"execute\"")
	assert.Contains(t, preview.Body.String(), "\"cancel\"")
	assert.Contains(t, preview.Body.String(), "/contact_abc")

	hash := cfg.Generate(confirm.Params{Action: "delete", Type: "contact"}, time.Now())
	confirmed := httptest.NewRecorder()
	h.ServeHTTP(confirmed, httptest.NewRequest(http.MethodGet, "/contact_abc/delete?confirm="+hash, nil))
	assert.True(t, called)
}

func TestConfirmRejectsInvalidHashWithBadRequest(t *testing.T) {
	cfg := confirm.Config{Secret: "s3cr3t", TTL: time.Minute}
	called := false
	paramsFn := func(r *http.Request) (confirm.Params, bool) {
		return confirm.Params{Action: "delete", Type: "contact"}, true
	}
	h := Confirm(cfg, paramsFn, envelope.APIInfo{Name: "gateway"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/contact_abc/delete?confirm=deadbe", nil))
	assert.False(t, called)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "BAD_REQUEST")
}

func TestConfirmSkipsNonMutatingActions(t *testing.T) {
	cfg := confirm.Config{Secret: "s3cr3t"}
	called := false
	paramsFn := func(r *http.Request) (confirm.Params, bool) { return confirm.Params{}, false }
	h := Confirm(cfg, paramsFn, envelope.APIInfo{Name: "gateway"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/contacts", nil))
	assert.True(t, called)
}
