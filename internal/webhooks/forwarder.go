package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"permit-backend/internal/shared/telemetry"
)

const forwarderSource = "webhook-forwarder"

// EventResult reports what the forwarder did with one event.
type EventResult struct {
	DealID   *int64 `json:"dealId,omitempty"`
	ObjectID *int64 `json:"objectId,omitempty"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

// Forwarder relays closed-won HubSpot deals to the backend's permit automation endpoint.
type Forwarder struct {
	BackendURL string
	APISecret  string
	Client     *http.Client
	Now        func() time.Time
}

func NewForwarder(backendURL, apiSecret string) *Forwarder {
	return &Forwarder{
		BackendURL: strings.TrimRight(backendURL, "/"),
		APISecret:  apiSecret,
		Client:     &http.Client{Timeout: 10 * time.Second},
		Now:        time.Now,
	}
}

// Forward handles each event in order. Events other than closed-won deals are skipped.
func (f *Forwarder) Forward(ctx context.Context, events []HubSpotEvent) []EventResult {
	results := make([]EventResult, 0, len(events))
	for _, ev := range events {
		id := ev.ObjectID
		if !ev.DealClosedWon() {
			telemetry.Info("forwarder.event.skipped", map[string]any{
				"object_type": ev.ObjectType,
				"property":    ev.PropertyName,
				"value":       ev.PropertyValue,
			})
			results = append(results, EventResult{ObjectID: &id, Status: "skipped", Message: "Not a deal closure event"})
			continue
		}
		if err := f.post(ctx, id); err != nil {
			telemetry.Warn("forwarder.event.failed", map[string]any{"deal_id": id, "error": err.Error()})
			results = append(results, EventResult{DealID: &id, Status: "error", Message: resultMessage(err)})
			continue
		}
		telemetry.Info("forwarder.event.forwarded", map[string]any{"deal_id": id})
		results = append(results, EventResult{DealID: &id, Status: "success", Message: "Permit automation triggered"})
	}
	return results
}

func (f *Forwarder) post(ctx context.Context, dealID int64) error {
	now := f.Now().UTC()
	payload, err := json.Marshal(TriggerRequest{
		DealID:    dealID,
		Action:    ActionStartPermit,
		Timestamp: &now,
		Source:    forwarderSource,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.BackendURL+"/api/webhook/permit-automation", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if f.APISecret != "" {
		req.Header.Set("Authorization", "Bearer "+f.APISecret)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &backendStatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

// backendStatusError is a non-2xx answer from the permit automation endpoint.
type backendStatusError struct {
	StatusCode int
}

func (e *backendStatusError) Error() string {
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}

// resultMessage renders err for the per-event result returned to HubSpot.
func resultMessage(err error) string {
	var statusErr *backendStatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("Backend returned %d", statusErr.StatusCode)
	}
	return err.Error()
}

// Router serves the forwarder on every path: POST relays, OPTIONS answers
// CORS preflight and any other method is rejected.
func (f *Forwarder) Router() http.Handler {
	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}))
	mux.Options("/*", func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		w.WriteHeader(http.StatusOK)
	})
	mux.Post("/*", f.serveWebhook)
	mux.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusMethodNotAllowed)
		_, _ = w.Write([]byte("Method not allowed"))
	})
	return mux
}

func (f *Forwarder) serveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err == nil {
		var events []HubSpotEvent
		if events, err = DecodeEvents(body); err == nil {
			telemetry.Info("forwarder.received", map[string]any{"count": len(events)})
			results := f.Forward(r.Context(), events)
			writeJSON(w, http.StatusOK, map[string]any{
				"success":   true,
				"message":   "Webhook processed",
				"processed": len(results),
				"events":    results,
			})
			return
		}
	}
	telemetry.Error("forwarder.failed", map[string]any{"error": err.Error()})
	writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
}

func setCORSHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
