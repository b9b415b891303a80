package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"medy-coop-service/internal/domain"
	infraredis "medy-coop-service/internal/infra/redis"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (c *countingSweeper) ExpireAbandoned(context.Context) (int, error) {
	c.calls.Add(1)
	return 2, c.err
}

func TestSweeperRunOnce(t *testing.T) {
	target := &countingSweeper{}
	w := NewSweeper(target, time.Minute, zerolog.Nop())
	if got := w.RunOnce(context.Background()); got != 2 {
		t.Fatalf("expected 2 expired, got %d", got)
	}

	target.err = errors.New("boom")
	w.RunOnce(context.Background())
	if target.calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", target.calls.Load())
	}
}

func TestSweeperTicksUntilCancelled(t *testing.T) {
	target := &countingSweeper{}
	w := NewSweeper(target, 10*time.Millisecond, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for target.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
	if target.calls.Load() < 2 {
		t.Fatalf("expected at least 2 sweeps, got %d", target.calls.Load())
	}
}

type recordingSender struct {
	mu    sync.Mutex
	got   []domain.Notification
	fails int
}

func (s *recordingSender) Deliver(_ context.Context, batch []domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails > 0 {
		s.fails--
		return errors.New("inbox down")
	}
	s.got = append(s.got, batch...)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func newQueue(t *testing.T) (*miniredis.Miniredis, *redis.Client, *infraredis.PushQueue) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client, infraredis.NewPushQueue(client)
}

func enqueue(t *testing.T, q *infraredis.PushQueue, users ...string) {
	t.Helper()
	for _, u := range users {
		if err := q.Notify(context.Background(), domain.Notification{UserID: u, Type: "coop_invite", Title: "👥 Nouveau défi"}); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}
}

func TestPushWorkerDeliversQueuedNotifications(t *testing.T) {
	_, client, queue := newQueue(t)
	enqueue(t, queue, "u1", "u2", "u3")

	sender := &recordingSender{}
	w := NewPushWorker(client, infraredis.PushQueueKey, sender, zerolog.Nop())
	w.batchTimeout = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for sender.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done
	if sender.count() != 3 {
		t.Fatalf("expected 3 delivered, got %d", sender.count())
	}
	if sender.got[0].UserID != "u1" {
		t.Fatalf("expected FIFO order, got %s first", sender.got[0].UserID)
	}
}

func TestPushWorkerRequeuesFailedBatch(t *testing.T) {
	mr, client, queue := newQueue(t)
	enqueue(t, queue, "u1", "u2")

	sender := &recordingSender{fails: 1}
	w := NewPushWorker(client, infraredis.PushQueueKey, sender, zerolog.Nop())

	raws, err := client.LPopCount(context.Background(), infraredis.PushQueueKey, 10).Result()
	if err != nil {
		t.Fatalf("lpop: %v", err)
	}
	var batch []queuedPush
	for _, raw := range raws {
		p, ok := w.decode(raw)
		if !ok {
			t.Fatalf("decode %q", raw)
		}
		batch = append(batch, p)
	}
	if w.flush(context.Background(), batch) {
		t.Fatalf("expected failed flush")
	}
	items, err := mr.List(infraredis.PushQueueKey)
	if err != nil || len(items) != 2 {
		t.Fatalf("expected 2 requeued items, got %v (%v)", items, err)
	}

	w.drain(context.Background())
	if sender.count() != 2 {
		t.Fatalf("expected drain to deliver 2, got %d", sender.count())
	}
	if mr.Exists(infraredis.PushQueueKey) {
		t.Fatalf("expected queue to be empty after drain")
	}
}

func TestPushWorkerDropsMalformedItems(t *testing.T) {
	_, client, queue := newQueue(t)
	client.RPush(context.Background(), infraredis.PushQueueKey, "{not json")
	enqueue(t, queue, "u1")

	sender := &recordingSender{}
	w := NewPushWorker(client, infraredis.PushQueueKey, sender, zerolog.Nop())
	w.drain(context.Background())
	if sender.count() != 1 {
		t.Fatalf("expected 1 delivered, got %d", sender.count())
	}
}
