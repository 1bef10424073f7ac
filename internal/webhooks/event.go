package webhooks

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

const (
	ActionStartPermit = "START_PERMIT_PROCESS"

	objectTypeDeal    = "DEAL"
	propertyDealStage = "dealstage"
	stageClosedWon    = "closedwon"
)

// HubSpotEvent is one entry of a HubSpot webhook delivery.
type HubSpotEvent struct {
	ObjectType     string `json:"objectType"`
	ObjectID       int64  `json:"objectId"`
	PropertyName   string `json:"propertyName"`
	PropertyValue  string `json:"propertyValue"`
	ChangeSource   string `json:"changeSource,omitempty"`
	EventID        int64  `json:"eventId,omitempty"`
	SubscriptionID int64  `json:"subscriptionId,omitempty"`
	PortalID       int64  `json:"portalId,omitempty"`
	OccurredAt     int64  `json:"occurredAt,omitempty"`
}

// DealClosedWon reports whether the event moves a deal to closed-won.
func (e HubSpotEvent) DealClosedWon() bool {
	return e.ObjectType == objectTypeDeal &&
		e.PropertyName == propertyDealStage &&
		e.PropertyValue == stageClosedWon
}

var ErrEmptyPayload = errors.New("empty webhook payload")

// DecodeEvents accepts a single event object or an array of them.
func DecodeEvents(body []byte) ([]HubSpotEvent, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, ErrEmptyPayload
	}
	if trimmed[0] == '[' {
		var events []HubSpotEvent
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil, err
		}
		return events, nil
	}
	var event HubSpotEvent
	if err := json.Unmarshal(trimmed, &event); err != nil {
		return nil, err
	}
	return []HubSpotEvent{event}, nil
}

// TriggerRequest asks the backend to start permit automation for a deal.
type TriggerRequest struct {
	DealID    int64      `json:"dealId"`
	Action    string     `json:"action"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Source    string     `json:"source,omitempty"`
}
