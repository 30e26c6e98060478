package dispatch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayload(t *testing.T) {
	t.Run("broadcast round-trips", func(t *testing.T) {
		raw, err := json.Marshal(BroadcastPayload{From: "admin1", Message: "drill at noon"})
		require.NoError(t, err)

		decoded, err := DecodePayload(Envelope{Event: EventBroadcast, Payload: raw})
		require.NoError(t, err)
		payload, ok := decoded.(*BroadcastPayload)
		require.True(t, ok)
		assert.Equal(t, "admin1", payload.From)
	})

	t.Run("unknown event name", func(t *testing.T) {
		_, err := DecodePayload(Envelope{Event: "emergency:made-up", Payload: []byte(`{}`)})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown event name")
	})

	t.Run("unknown field is rejected", func(t *testing.T) {
		_, err := DecodePayload(Envelope{Event: EventBroadcast, Payload: []byte(`{"from":"a","surprise":1}`)})
		require.Error(t, err)
	})
}
