package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"dispatch-service/internal/models"
)

// Event names are part of the push contract.
const (
	EventNewAlert  = "emergency:new-alert"
	EventUpdate    = "emergency:update"
	EventResponse  = "emergency:response"
	EventBroadcast = "emergency:broadcast"
)

// Envelope is the wire shape delivered to every subscriber.
type Envelope struct {
	Event   string          `json:"event"`
	Room    string          `json:"room"`
	Payload json.RawMessage `json:"payload"`
	SentAt  time.Time       `json:"sent_at"`
}

// NewAlertPayload accompanies emergency:new-alert.
type NewAlertPayload struct {
	Alert models.Alert `json:"alert"`
}

// UpdatePayload accompanies emergency:update.
type UpdatePayload struct {
	Code     string             `json:"code"`
	Status   models.Status      `json:"status"`
	Priority models.Priority    `json:"priority"`
	Update   models.AlertUpdate `json:"update"`
}

// ResponsePayload accompanies emergency:response.
type ResponsePayload struct {
	Code            string                 `json:"code"`
	ResponderID     string                 `json:"responder_id"`
	ResponderStatus models.ResponderStatus `json:"responder_status"`
	AlertStatus     models.Status          `json:"alert_status"`
}

// BroadcastPayload accompanies emergency:broadcast.
type BroadcastPayload struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

// DecodePayload parses an envelope's payload into its fixed schema for the
// event name, rejecting unknown fields.
func DecodePayload(env Envelope) (interface{}, error) {
	var target interface{}
	switch env.Event {
	case EventNewAlert:
		target = &NewAlertPayload{}
	case EventUpdate:
		target = &UpdatePayload{}
	case EventResponse:
		target = &ResponsePayload{}
	case EventBroadcast:
		target = &BroadcastPayload{}
	default:
		return nil, fmt.Errorf("unknown event name %q", env.Event)
	}

	dec := json.NewDecoder(bytes.NewReader(env.Payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return nil, fmt.Errorf("invalid payload for %s: %w", env.Event, err)
	}
	return target, nil
}
