package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"permit-backend/internal/shared/auth"
	"permit-backend/internal/shared/telemetry"
)

func TestLoggingIncludesRequiredFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	issuer := newTestIssuer(t)
	token, err := issuer.Sign("user-7", auth.Claims{})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	router := gin.New()
	router.Use(RequestID(), Authenticate(issuer), Logging())
	router.GET("/api/planreview/:id", func(c *gin.Context) {
		c.Set(ReviewIDKey, c.Param("id"))
		c.Set(StatusTransitionKey, "analyzing->completed")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	var buf bytes.Buffer
	telemetry.SetOutput(&buf)
	t.Cleanup(func() { telemetry.SetOutput(os.Stdout) })

	req := httptest.NewRequest(http.MethodGet, "/api/planreview/review-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	last := lines[len(lines)-1]
	var payload map[string]any
	if err := json.Unmarshal([]byte(last), &payload); err != nil {
		t.Fatalf("decode log json: %v", err)
	}

	required := []string{"request_id", "user_id", "review_id", "duration_ms", "status", "status_transition", "route"}
	for _, key := range required {
		if _, ok := payload[key]; !ok {
			t.Fatalf("missing log field: %s", key)
		}
	}
	if payload["user_id"] != "user-7" {
		t.Fatalf("unexpected user_id: %v", payload["user_id"])
	}
	if payload["review_id"] != "review-1" {
		t.Fatalf("unexpected review_id: %v", payload["review_id"])
	}
	if payload["route"] != "/api/planreview/:id" {
		t.Fatalf("unexpected route: %v", payload["route"])
	}
	if payload["status_transition"] != "analyzing->completed" {
		t.Fatalf("unexpected status_transition: %v", payload["status_transition"])
	}
	if resp.Header().Get("X-Request-Id") != payload["request_id"] {
		t.Fatalf("request id header and log disagree")
	}
}
