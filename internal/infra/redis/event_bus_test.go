package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"medy-coop-service/internal/realtime"
)

func TestEventBusForwardsPublishedMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, client := newTestClient(t)
	bus := NewEventBus(client, "", zerolog.Nop())

	received := make(chan realtime.BusMessage, 1)
	if err := bus.StartForwarder(ctx, func(m realtime.BusMessage) { received <- m }); err != nil {
		t.Fatalf("start forwarder: %v", err)
	}
	msg := realtime.BusMessage{UserIDs: []string{"u1"}, Data: json.RawMessage(`{"type":"coop:session_ready"}`)}
	if err := bus.Publish(ctx, msg); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-received:
		if len(got.UserIDs) != 1 || got.UserIDs[0] != "u1" {
			t.Fatalf("unexpected recipients %v", got.UserIDs)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for forwarded message")
	}
}
