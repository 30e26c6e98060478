package dispatch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch-service/internal/logging"
)

func newTestBridge(hub *Hub) *Bridge {
	return &Bridge{local: hub, origin: "self", logger: logging.NewNop()}
}

func TestBridgeApply(t *testing.T) {
	payload, err := json.Marshal(BroadcastPayload{From: "admin1", Message: "drill"})
	require.NoError(t, err)

	t.Run("foreign frame reaches local members", func(t *testing.T) {
		hub := newTestHub()
		c := &fakeConn{id: "c1"}
		hub.Register(c)
		hub.Join("c1", RoomResponders)

		newTestBridge(hub).apply(fanoutMessage{
			Origin:  "other-node",
			Rooms:   []string{RoomResponders},
			Event:   EventBroadcast,
			Payload: payload,
		})
		assert.Equal(t, 1, c.received())
	})

	t.Run("own frame is skipped", func(t *testing.T) {
		hub := newTestHub()
		c := &fakeConn{id: "c1"}
		hub.Register(c)
		hub.Join("c1", RoomResponders)

		newTestBridge(hub).apply(fanoutMessage{
			Origin:  "self",
			Rooms:   []string{RoomResponders},
			Event:   EventBroadcast,
			Payload: payload,
		})
		assert.Zero(t, c.received())
	})

	t.Run("unknown event is dropped", func(t *testing.T) {
		hub := newTestHub()
		c := &fakeConn{id: "c1"}
		hub.Register(c)
		hub.Join("c1", RoomResponders)

		newTestBridge(hub).apply(fanoutMessage{
			Origin:  "other-node",
			Rooms:   []string{RoomResponders},
			Event:   "emergency:made-up",
			Payload: payload,
		})
		assert.Zero(t, c.received())
	})

	t.Run("malformed payload is dropped", func(t *testing.T) {
		hub := newTestHub()
		c := &fakeConn{id: "c1"}
		hub.Register(c)
		hub.Join("c1", RoomResponders)

		newTestBridge(hub).apply(fanoutMessage{
			Origin:  "other-node",
			Rooms:   []string{RoomResponders},
			Event:   EventBroadcast,
			Payload: []byte(`{"from":"a","surprise":1}`),
		})
		assert.Zero(t, c.received())
	})
}
