package bootstrap

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permit-backend/internal/shared/config"
)

func devConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Env:             "dev",
		ObjectStoreType: "local",
		LocalStoreDir:   t.TempDir(),
		Analyzer:        "mock",
		AnalysisTimeout: time.Minute,
		ReviewScheduler: "inprocess",
		JWTSecret:       "test-secret",
		JWTIssuer:       "permit-api",
		JWTAudience:     "permit-ui",
	}
}

func call(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
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
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBuildRequiresDatabaseOutsideDev(t *testing.T) {
	cfg := devConfig(t)
	cfg.Env = "production"
	_, err := Build(context.Background(), cfg)
	require.Error(t, err)
}

func TestBuildServesReviewAndDashboardFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, err := Build(context.Background(), devConfig(t))
	require.NoError(t, err)
	require.Nil(t, app.DB)
	require.NotNil(t, app.InProcess)
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })

	rec := call(t, app.Router, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"disabled"`)

	rec = call(t, app.Router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Ana Solar", "email": "ana@example.com", "password": "sunshine42",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = call(t, app.Router, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ana@example.com", "password": "sunshine42",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	require.NotEmpty(t, login.Token)

	rec = call(t, app.Router, http.MethodPost, "/api/planreview/upload", login.Token, map[string]string{
		"imageBase64": base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\nplan")),
		"fileName":    "roof-layout.png",
		"city":        "Austin",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var upload struct {
		ReviewID string `json:"reviewId"`
		Status   string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &upload))
	assert.Equal(t, "analyzing", upload.Status)

	app.InProcess.Wait()

	rec = call(t, app.Router, http.MethodGet, "/api/planreview/"+upload.ReviewID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var review map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &review))
	assert.Equal(t, "completed", review["status"])
	assert.NotNil(t, review["analysis"])
	assert.Nil(t, review["errorMessage"])

	rec = call(t, app.Router, http.MethodGet, "/api/plans", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var plans []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plans))
	require.Len(t, plans, 1)
	assert.Equal(t, "roof-layout", plans[0]["name"])
	assert.Equal(t, upload.ReviewID, plans[0]["reviewId"])
	assert.Equal(t, "completed", plans[0]["reviewStatus"])
}
