package memory

import (
	"context"
	"sync"

	"medy-coop-service/internal/domain"
)

// Inbox stores notifications per user in process.
type Inbox struct {
	mu    sync.Mutex
	items map[string][]domain.Notification
}

func NewInbox() *Inbox {
	return &Inbox{items: make(map[string][]domain.Notification)}
}

func (i *Inbox) Notify(_ context.Context, n domain.Notification) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.items[n.UserID] = append(i.items[n.UserID], n)
	return nil
}

// For returns a copy of the notifications queued for userID.
func (i *Inbox) For(userID string) []domain.Notification {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]domain.Notification(nil), i.items[userID]...)
}
