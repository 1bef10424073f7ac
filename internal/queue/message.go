package queue

import (
	"encoding/json"
	"fmt"
)

// MessageVersion is the current review job payload version.
const MessageVersion = 1

// Message asks a worker to analyze one review.
type Message struct {
	ReviewID   string `json:"reviewId"`
	RequestID  string `json:"requestId,omitempty"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a payload. Versions newer than MessageVersion are rejected.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.Version > MessageVersion {
		return Message{}, fmt.Errorf("unsupported message version %d", msg.Version)
	}
	return msg, nil
}
