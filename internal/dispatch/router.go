package dispatch

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"dispatch-service/internal/logging"
)

// Room names. Rooms are created on first join and vanish with their last member.
const (
	// RoomResponders is the broadcast room every on-duty responder joins.
	RoomResponders = "emergency-responders"
)

// UserRoom names the per-identity room.
func UserRoom(userID string) string {
	return fmt.Sprintf("user:%s", userID)
}

// AlertRoom names the room of everyone watching one alert.
func AlertRoom(code string) string {
	return fmt.Sprintf("alert:%s", code)
}

// ConversationRoom names a chat room; chat shares the router but nothing else.
func ConversationRoom(id string) string {
	return fmt.Sprintf("conversation:%s", id)
}

// Subscriber is one live connection. Send must not block on store I/O;
// implementations typically hand the frame to a buffered writer.
type Subscriber interface {
	ID() string
	Send(data []byte) error
}

// Router fans events out to named rooms. Delivery is at-most-once and
// best-effort: no replay, no buffering for late joiners, and a publish to an
// empty room is a successful no-op.
type Router interface {
	Register(sub Subscriber)
	Join(connID, room string)
	Leave(connID, room string)
	Publish(room, event string, payload interface{})
	PublishToMany(rooms []string, event string, payload interface{})
	Disconnect(connID string)
}

// Hub is the in-process Router. Membership is local to the process;
// cross-process fan-out goes through the Bridge.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]Subscriber
	rooms  map[string]map[string]struct{}
	logger *logging.Logger
}

// NewHub returns an empty Hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		conns:  make(map[string]Subscriber),
		rooms:  make(map[string]map[string]struct{}),
		logger: logger,
	}
}

// Register makes a connection eligible for room membership.
func (h *Hub) Register(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[sub.ID()] = sub
}

// Join adds a connection to a room. Idempotent; joining an unknown
// connection is ignored.
func (h *Hub) Join(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[connID]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		h.rooms[room] = members
	}
	members[connID] = struct{}{}
}

// Leave removes a connection from a room. Idempotent.
func (h *Hub) Leave(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoom(connID, room)
}

func (h *Hub) removeFromRoom(connID, room string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Disconnect drops a connection from every room and the registry. Undelivered
// events are not persisted.
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, connID)
	for room := range h.rooms {
		h.removeFromRoom(connID, room)
	}
}

// Publish delivers an event to every live member of room. A failure on one
// connection is logged and never blocks delivery to the rest.
func (h *Hub) Publish(room, event string, payload interface{}) {
	data, err := encodeEnvelope(room, event, payload)
	if err != nil {
		h.logger.Errorf("Failed to encode %s for room %s: %v", event, room, err)
		return
	}
	h.deliver(room, event, data)
}

// PublishToMany publishes once per room. A connection in several targeted
// rooms may receive the event more than once.
func (h *Hub) PublishToMany(rooms []string, event string, payload interface{}) {
	for _, room := range rooms {
		h.Publish(room, event, payload)
	}
}

func (h *Hub) deliver(room, event string, data []byte) {
	h.mu.RLock()
	var targets []Subscriber
	for connID := range h.rooms[room] {
		if sub, ok := h.conns[connID]; ok {
			targets = append(targets, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		if err := sub.Send(data); err != nil {
			h.logger.Warnf("Dropped %s for connection %s in room %s: %v", event, sub.ID(), room, err)
		}
	}
}

// RoomSize returns the current member count of a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func encodeEnvelope(room, event string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Event:   event,
		Room:    room,
		Payload: raw,
		SentAt:  time.Now(),
	})
}
