package realtime

import (
	"context"
	"encoding/json"
)

// BusMessage is one encoded frame addressed to a set of users.
type BusMessage struct {
	UserIDs []string        `json:"userIds"`
	Data    json.RawMessage `json:"data"`
}

// Bus carries emissions between service instances.
type Bus interface {
	Publish(ctx context.Context, msg BusMessage) error
	StartForwarder(ctx context.Context, onMsg func(BusMessage)) error
	Close() error
}

// Presence shares which users hold a live connection on any instance.
type Presence interface {
	Add(ctx context.Context, userID, connID string) error
	Remove(ctx context.Context, userID, connID string) error
	// Refresh extends the lease of every listed connection, keyed by user.
	Refresh(ctx context.Context, conns map[string][]string) error
	Online(ctx context.Context, userID string) (bool, error)
}
