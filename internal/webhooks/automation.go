package webhooks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"permit-backend/internal/shared/clock"
	"permit-backend/internal/shared/metrics"
	"permit-backend/internal/shared/telemetry"
)

var ErrInvalidDeal = errors.New("dealId must be a positive integer")

// Automation queues permit work for closed deals.
type Automation struct {
	Store    TriggerStore
	Notifier Notifier
	Clock    clock.Clock
	NewID    func() string
}

func NewAutomation(store TriggerStore, notifier Notifier) *Automation {
	return &Automation{Store: store, Notifier: notifier}
}

// Trigger records the request and notifies the team. A notification failure
// is logged and does not fail the trigger.
func (a *Automation) Trigger(ctx context.Context, req TriggerRequest) (Trigger, error) {
	if req.DealID <= 0 {
		return Trigger{}, ErrInvalidDeal
	}
	action := strings.TrimSpace(req.Action)
	if action == "" {
		action = ActionStartPermit
	}
	t := Trigger{
		ID:        a.newID(),
		DealID:    req.DealID,
		Action:    action,
		Source:    strings.TrimSpace(req.Source),
		CreatedAt: a.now(),
	}
	if err := a.Store.Record(ctx, t); err != nil {
		metrics.IncWebhookEvent("error")
		return Trigger{}, fmt.Errorf("record trigger: %w", err)
	}
	metrics.IncWebhookEvent("triggered")
	telemetry.Info("webhook.permit_automation.queued", map[string]any{
		"trigger_id": t.ID,
		"deal_id":    t.DealID,
		"action":     t.Action,
		"source":     t.Source,
	})

	if a.Notifier != nil {
		msg := fmt.Sprintf("Deal %d closed. Permit automation %s queued.", t.DealID, t.Action)
		if err := a.Notifier.Notify(ctx, "Permit automation queued", msg); err != nil {
			telemetry.Warn("webhook.notify_failed", map[string]any{"deal_id": t.DealID, "error": err.Error()})
		}
	}
	return t, nil
}

func (a *Automation) now() time.Time {
	if a.Clock != nil {
		return a.Clock.Now()
	}
	return clock.System{}.Now()
}

func (a *Automation) newID() string {
	if a.NewID != nil {
		return a.NewID()
	}
	return uuid.NewString()
}
