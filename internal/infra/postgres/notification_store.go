package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"medy-coop-service/internal/domain"
)

// NotificationStore is the in-app inbox fed by the push worker.
type NotificationStore struct {
	pool *pgxpool.Pool
}

func NewNotificationStore(pool *pgxpool.Pool) *NotificationStore {
	return &NotificationStore{pool: pool}
}

// Deliver inserts a batch of notifications in one round trip.
func (s *NotificationStore) Deliver(ctx context.Context, batch []domain.Notification) error {
	if len(batch) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, n := range batch {
		data, err := json.Marshal(n.Data)
		if err != nil {
			return fmt.Errorf("encode notification data: %w", err)
		}
		b.Queue(
			`INSERT INTO notifications (user_id, type, title, body, data, created_at) VALUES ($1, $2, $3, $4, $5::jsonb, $6)`,
			n.UserID, n.Type, n.Title, n.Body, string(data), n.CreatedAt,
		)
	}
	results := s.pool.SendBatch(ctx, b)
	defer results.Close()
	for range batch {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
	}
	return nil
}
