package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"dispatch-service/internal/logging"
)

// fanoutMessage is the broker frame mirroring one publish across processes.
type fanoutMessage struct {
	Origin  string          `json:"origin"`
	Rooms   []string        `json:"rooms"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Bridge is a Router that mirrors every publish onto a Kafka topic and
// applies publishes from other process instances to the local Hub. Room
// membership stays local; only events cross processes.
type Bridge struct {
	local  *Hub
	writer *kafka.Writer
	reader *kafka.Reader
	origin string
	logger *logging.Logger
}

// NewBridge wires a Hub to a fan-out topic. Each instance consumes with its
// own group id so every instance sees every publish.
func NewBridge(local *Hub, brokers []string, topic string, logger *logging.Logger) *Bridge {
	origin := uuid.New().String()
	return &Bridge{
		local: local,
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: fmt.Sprintf("dispatch-fanout-%s", origin),
		}),
		origin: origin,
		logger: logger,
	}
}

func (b *Bridge) Register(sub Subscriber)   { b.local.Register(sub) }
func (b *Bridge) Join(connID, room string)  { b.local.Join(connID, room) }
func (b *Bridge) Leave(connID, room string) { b.local.Leave(connID, room) }
func (b *Bridge) Disconnect(connID string)  { b.local.Disconnect(connID) }

// Publish delivers locally first, then mirrors to the broker. Broker errors
// are logged and swallowed; the local delivery already happened and the
// triggering mutation must not fail.
func (b *Bridge) Publish(room, event string, payload interface{}) {
	b.PublishToMany([]string{room}, event, payload)
}

func (b *Bridge) PublishToMany(rooms []string, event string, payload interface{}) {
	for _, room := range rooms {
		b.local.Publish(room, event, payload)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		b.logger.Errorf("Failed to encode fan-out payload for %s: %v", event, err)
		return
	}
	frame, err := json.Marshal(fanoutMessage{
		Origin:  b.origin,
		Rooms:   rooms,
		Event:   event,
		Payload: raw,
	})
	if err != nil {
		b.logger.Errorf("Failed to encode fan-out frame for %s: %v", event, err)
		return
	}
	if err := b.writer.WriteMessages(context.Background(), kafka.Message{Value: frame}); err != nil {
		b.logger.Errorf("Fan-out write failed for %s: %v", event, err)
	}
}

// Run consumes mirrored publishes until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	b.logger.Infof("Dispatch fan-out bridge started (origin %s)", b.origin)
	for {
		msg, err := b.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Errorf("Fan-out read failed: %v", err)
			continue
		}

		var frame fanoutMessage
		if err := json.Unmarshal(msg.Value, &frame); err != nil {
			b.logger.Errorf("Invalid fan-out frame: %v", err)
			continue
		}
		b.apply(frame)
	}
}

// apply delivers one inbound frame to the local hub. Frames from this
// instance already went out locally; payloads must match the fixed schema
// for their event name or the frame is dropped.
func (b *Bridge) apply(frame fanoutMessage) {
	if frame.Origin == b.origin {
		return
	}
	if _, err := DecodePayload(Envelope{Event: frame.Event, Payload: frame.Payload}); err != nil {
		b.logger.Errorf("Rejected fan-out frame from %s: %v", frame.Origin, err)
		return
	}
	for _, room := range frame.Rooms {
		b.local.Publish(room, frame.Event, frame.Payload)
	}
}

// Close releases the broker writer and reader.
func (b *Bridge) Close() error {
	if err := b.writer.Close(); err != nil {
		return err
	}
	return b.reader.Close()
}
