package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"medy-coop-service/internal/domain"
)

// PushQueueKey is the list consumed by the push worker.
const PushQueueKey = "coop:push_queue"

// PushQueue implements app.Notifier by enqueueing notifications for asynchronous delivery.
type PushQueue struct {
	client *redis.Client
	key    string
}

func NewPushQueue(client *redis.Client) *PushQueue {
	return &PushQueue{client: client, key: PushQueueKey}
}

func (q *PushQueue) Notify(ctx context.Context, n domain.Notification) error {
	raw, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if err := q.client.RPush(ctx, q.key, raw).Err(); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}
