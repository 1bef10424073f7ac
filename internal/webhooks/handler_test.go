package webhooks

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWebhookRouter(t *testing.T) (*gin.Engine, *MemoryTriggerStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	a, store, _ := newTestAutomation()
	r := gin.New()
	NewHandler(a).RegisterRoutes(r.Group("/api"))
	return r, store
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHubSpotWebhookTriggersClosedWonDeals(t *testing.T) {
	r, store := newWebhookRouter(t)

	w := post(r, "/api/webhook/hubspot", `[
		{"objectType":"DEAL","objectId":12345,"propertyName":"dealstage","propertyValue":"closedwon"},
		{"objectType":"DEAL","objectId":777,"propertyName":"dealstage","propertyValue":"qualifiedtobuy"}
	]`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Webhooks processed successfully","processed":2,"triggered":1}`, w.Body.String())
	require.Len(t, store.All(), 1)
	assert.Equal(t, int64(12345), store.All()[0].DealID)
	assert.Equal(t, "hubspot", store.All()[0].Source)
}

func TestHubSpotWebhookRejectsMalformedJSON(t *testing.T) {
	r, _ := newWebhookRouter(t)
	w := post(r, "/api/webhook/hubspot", `{"objectType":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPermitAutomationEndpoint(t *testing.T) {
	r, store := newWebhookRouter(t)

	w := post(r, "/api/webhook/permit-automation", `{"dealId":12345,"action":"START_PERMIT_PROCESS","timestamp":"2024-07-01T08:00:00Z","source":"webhook-forwarder"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Permit automation triggered","dealId":12345,"status":"queued"}`, w.Body.String())
	assert.Len(t, store.All(), 1)

	w = post(r, "/api/webhook/permit-automation", `{"dealId":0,"action":"START_PERMIT_PROCESS"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, store.All(), 1)
}
