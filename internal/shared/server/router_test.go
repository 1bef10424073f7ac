package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permit-backend/internal/services/health"
	"permit-backend/internal/shared/auth"
	"permit-backend/internal/shared/config"
)

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

func testRouter(t *testing.T, cfg config.Config, pinger health.Pinger) (*gin.Engine, *auth.Issuer) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	issuer, err := auth.NewIssuer("test-secret", "permit-api", "permit-ui")
	require.NoError(t, err)
	var hs *health.Service
	if pinger != nil {
		hs = health.NewService(pinger, "mock")
	}
	return NewRouter(RouterDeps{Config: cfg, Tokens: issuer, Health: hs}), issuer
}

func serve(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealthReportsDatabase(t *testing.T) {
	r, _ := testRouter(t, config.Config{}, stubPinger{})
	rec := serve(r, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body health.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "ok", body.Checks["database"])
	assert.Equal(t, "mock", body.Analyzer)
}

func TestHealthUnavailableDatabase(t *testing.T) {
	r, _ := testRouter(t, config.Config{}, stubPinger{err: errors.New("connection refused")})
	rec := serve(r, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"unavailable"`)
}

func TestMeEchoesTokenIdentity(t *testing.T) {
	r, issuer := testRouter(t, config.Config{}, nil)

	rec := serve(r, http.MethodGet, "/api/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := issuer.Sign("user-1", auth.Claims{Email: "ana@example.com", Name: "Ana"})
	require.NoError(t, err)
	rec = serve(r, http.MethodGet, "/api/me", token)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "user-1", body["userId"])
	assert.Equal(t, auth.RoleCustomer, body["role"])
	assert.Equal(t, "ana@example.com", body["email"])
	assert.Equal(t, "Ana", body["name"])
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := testRouter(t, config.Config{}, nil)
	rec := serve(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "reviews_submitted_total")
}

func TestRateLimitRejectsBurst(t *testing.T) {
	r, _ := testRouter(t, config.Config{RateLimitRPS: 0.001, RateLimitBurst: 1}, nil)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/health", "").Code)
	rec := serve(r, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestAddr(t *testing.T) {
	assert.Equal(t, ":8080", Addr(""))
	assert.Equal(t, ":5001", Addr("5001"))
	assert.Equal(t, ":5001", Addr(":5001"))
}
