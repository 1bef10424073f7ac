package webhooks

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"permit-backend/internal/shared/metrics"
	"permit-backend/internal/shared/server/respond"
	"permit-backend/internal/shared/telemetry"
)

const maxWebhookBodyBytes = 1 << 20

type Handler struct {
	Automation *Automation
}

func NewHandler(automation *Automation) *Handler {
	return &Handler{Automation: automation}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhook/hubspot", h.hubspot)
	rg.POST("/webhook/permit-automation", h.permitAutomation)
}

func (h *Handler) hubspot(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large", "webhook payload is too large", nil)
		return
	}
	events, err := DecodeEvents(body)
	if err != nil {
		respond.Validation(c, "invalid webhook payload", "body", "invalid_json")
		return
	}
	telemetry.Info("webhook.hubspot.received", map[string]any{"count": len(events)})

	triggered := 0
	for _, ev := range events {
		if !ev.DealClosedWon() {
			metrics.IncWebhookEvent("skipped")
			telemetry.Info("webhook.hubspot.skipped", map[string]any{
				"object_type": ev.ObjectType,
				"property":    ev.PropertyName,
				"value":       ev.PropertyValue,
			})
			continue
		}
		if _, err := h.Automation.Trigger(c.Request.Context(), TriggerRequest{
			DealID: ev.ObjectID,
			Action: ActionStartPermit,
			Source: "hubspot",
		}); err != nil {
			telemetry.Error("webhook.hubspot.trigger_failed", map[string]any{"deal_id": ev.ObjectID, "error": err.Error()})
			respond.Error(c, http.StatusInternalServerError, "internal_error", "Failed to process webhooks", nil)
			return
		}
		triggered++
	}
	respond.OK(c, gin.H{
		"message":   "Webhooks processed successfully",
		"processed": len(events),
		"triggered": triggered,
	})
}

func (h *Handler) permitAutomation(c *gin.Context) {
	var req TriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Validation(c, "invalid JSON body", "body", "invalid_json")
		return
	}
	t, err := h.Automation.Trigger(c.Request.Context(), req)
	if errors.Is(err, ErrInvalidDeal) {
		respond.Validation(c, err.Error(), "dealId", "out_of_range")
		return
	}
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to trigger permit automation", nil)
		return
	}
	respond.OK(c, gin.H{
		"message": "Permit automation triggered",
		"dealId":  t.DealID,
		"status":  "queued",
	})
}
