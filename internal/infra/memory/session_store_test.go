package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"medy-coop-service/internal/domain"
)

func newSession(id string) *domain.CoopSession {
	return &domain.CoopSession{
		ID:           id,
		Participants: [2]string{"u1", "u2"},
		Initiator:    "u1",
		Status:       domain.StatusInProgress,
		Readiness:    map[string]bool{"u1": true, "u2": true},
		Results:      map[string]domain.Result{},
	}
}

func TestSessionStoreUpdateIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	if err := store.Create(ctx, newSession("s1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	guard := errors.New("already submitted")
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, "s1", func(s *domain.CoopSession) error {
				if s.HasSubmitted("u1") {
					return guard
				}
				s.SubmittedBy = append(s.SubmittedBy, "u1")
				return nil
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one successful update, got %d", successes)
	}
	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.SubmittedBy) != 1 {
		t.Fatalf("expected single submission, got %v", got.SubmittedBy)
	}
}

func TestSessionStoreFailedMutationDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	_ = store.Create(ctx, newSession("s1"))

	_, err := store.Update(ctx, "s1", func(s *domain.CoopSession) error {
		s.Status = domain.StatusCancelled
		return errors.New("abort")
	})
	if err == nil {
		t.Fatalf("expected mutation error")
	}
	got, _ := store.Get(ctx, "s1")
	if got.Status != domain.StatusInProgress {
		t.Fatalf("aborted mutation leaked: %s", got.Status)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSessionStoreListings(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	live := newSession("s1")
	closed := newSession("s2")
	closed.Status = domain.StatusCancelled
	_ = store.Create(ctx, live)
	_ = store.Create(ctx, closed)

	byUser, _ := store.ListByParticipant(ctx, "u2")
	if len(byUser) != 1 || byUser[0].ID != "s1" {
		t.Fatalf("expected only the live session, got %d", len(byUser))
	}
	byStatus, _ := store.ListByStatus(ctx, domain.StatusCancelled, domain.StatusExpired)
	if len(byStatus) != 1 || byStatus[0].ID != "s2" {
		t.Fatalf("expected the cancelled session, got %d", len(byStatus))
	}
}
