package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permit-backend/internal/reviews"
	"permit-backend/internal/shared/auth"
	"permit-backend/internal/shared/server/middleware"
)

type handlerEnv struct {
	router *gin.Engine
	svc    *Service
	issuer *auth.Issuer
}

func newHandlerEnv(t *testing.T) handlerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, _, _ := newTestService(t)
	issuer, err := auth.NewIssuer("test-secret", "", "")
	require.NoError(t, err)

	r := gin.New()
	api := r.Group("/api")
	api.Use(middleware.Authenticate(issuer))
	NewHandler(svc).RegisterRoutes(api)
	return handlerEnv{router: r, svc: svc, issuer: issuer}
}

func (e handlerEnv) token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := e.issuer.Sign(userID, auth.Claims{Role: role})
	require.NoError(t, err)
	return tok
}

func (e handlerEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestDashboardRequiresAuth(t *testing.T) {
	env := newHandlerEnv(t)
	for _, path := range []string{"/api/dashboard/stats", "/api/dashboard/activity", "/api/plans", "/api/appointments"} {
		w := env.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestAppointmentLifecycleOverHTTP(t *testing.T) {
	env := newHandlerEnv(t)
	tok := env.token(t, "user-1", auth.RoleCustomer)

	w := env.do(t, http.MethodPost, "/api/appointments", tok, map[string]string{
		"type": "site_inspection", "date": "2024-06-10", "time": "09:30", "notes": "side gate",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "2024-06-10", created["date"])
	assert.Equal(t, "09:30", created["time"])
	assert.Equal(t, "upcoming", created["status"])
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)

	w = env.do(t, http.MethodPut, "/api/appointments/"+id, tok, map[string]string{"time": "11:00"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodDelete, "/api/appointments/"+id, tok, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/appointments", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "11:00", listed[0]["time"])
	assert.Equal(t, "cancelled", listed[0]["status"])

	w = env.do(t, http.MethodPost, "/api/appointments", tok, map[string]string{"type": "picnic", "date": "2024-06-10", "time": "09:30"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlanStatusRequiresAdmin(t *testing.T) {
	env := newHandlerEnv(t)
	require.NoError(t, env.svc.RecordSubmission(context.Background(), "user-1", reviews.Review{ID: "r1", ImageSource: "plan.png"}))

	w := env.do(t, http.MethodPut, "/api/plans/id-01/status", env.token(t, "user-1", auth.RoleCustomer), map[string]string{"status": "Approved"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := env.token(t, "admin-1", auth.RoleAdmin)
	w = env.do(t, http.MethodPut, "/api/plans/id-01/status", admin, map[string]string{"status": "Approved"})
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodPut, "/api/plans/nope/status", admin, map[string]string{"status": "Approved"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/dashboard/stats", env.token(t, "user-1", auth.RoleCustomer), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, Stats{TotalPlans: 1, ApprovedPlans: 1}, stats)
}

func TestActivityLimitValidation(t *testing.T) {
	env := newHandlerEnv(t)
	tok := env.token(t, "user-1", auth.RoleCustomer)

	w := env.do(t, http.MethodGet, "/api/dashboard/activity?limit=abc", tok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodGet, "/api/dashboard/activity?limit=500", tok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodGet, "/api/dashboard/activity", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}
