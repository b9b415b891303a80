package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"medy-coop-service/internal/domain"
)

const (
	PushBatchSize    = 50
	PushBatchTimeout = 1 * time.Second
	PushPollTimeout  = 1 * time.Second
)

// Sender hands a batch of notifications to their final destination.
type Sender interface {
	Deliver(ctx context.Context, batch []domain.Notification) error
}

// LogSender writes notifications to the log. Used when no inbox store is configured.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log.With().Str("component", "push_log_sender").Logger()}
}

func (s *LogSender) Deliver(_ context.Context, batch []domain.Notification) error {
	for _, n := range batch {
		s.log.Info().
			Str("user_id", n.UserID).
			Str("type", n.Type).
			Str("title", n.Title).
			Msg("Push notification")
	}
	return nil
}

// PushWorker consumes the push queue and delivers notifications in batches.
type PushWorker struct {
	rdb    *redis.Client
	key    string
	sender Sender
	log    zerolog.Logger

	batchSize    int
	batchTimeout time.Duration
	pollTimeout  time.Duration
}

func NewPushWorker(rdb *redis.Client, key string, sender Sender, log zerolog.Logger) *PushWorker {
	return &PushWorker{
		rdb:          rdb,
		key:          key,
		sender:       sender,
		log:          log.With().Str("component", "push_worker").Logger(),
		batchSize:    PushBatchSize,
		batchTimeout: PushBatchTimeout,
		pollTimeout:  PushPollTimeout,
	}
}

type queuedPush struct {
	raw          string
	notification domain.Notification
}

// Start begins the worker loop. Call in a goroutine.
func (w *PushWorker) Start(ctx context.Context) {
	w.log.Info().Msg("PushWorker started")

	batch := make([]queuedPush, 0, w.batchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= w.batchSize || time.Since(lastFlush) >= w.batchTimeout) {
			w.flush(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flush(context.Background(), batch)
			w.drain(context.Background())
			w.log.Info().Msg("PushWorker stopped")
			return
		default:
			item, err := w.rdb.BLPop(ctx, w.pollTimeout, w.key).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}
			if len(item) < 2 {
				continue
			}
			if p, ok := w.decode(item[1]); ok {
				batch = append(batch, p)
			}
		}
	}
}

func (w *PushWorker) decode(raw string) (queuedPush, bool) {
	var n domain.Notification
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error, dropping item")
		return queuedPush{}, false
	}
	return queuedPush{raw: raw, notification: n}, true
}

// flush delivers batch; on failure every item goes back to the tail of the queue.
func (w *PushWorker) flush(ctx context.Context, batch []queuedPush) bool {
	if len(batch) == 0 {
		return true
	}
	notifications := make([]domain.Notification, len(batch))
	for i, p := range batch {
		notifications[i] = p.notification
	}
	if err := w.sender.Deliver(ctx, notifications); err != nil {
		w.log.Error().Err(err).Int("count", len(batch)).Msg("Deliver failed, requeueing")
		raws := make([]interface{}, len(batch))
		for i, p := range batch {
			raws[i] = p.raw
		}
		if err := w.rdb.RPush(context.Background(), w.key, raws...).Err(); err != nil {
			w.log.Error().Err(err).Msg("Requeue failed")
		}
		return false
	}
	w.log.Debug().Int("count", len(batch)).Msg("Delivered push batch")
	return true
}

// drain delivers whatever is still queued at shutdown.
func (w *PushWorker) drain(ctx context.Context) {
	drained := 0
	for {
		raws, err := w.rdb.LPopCount(ctx, w.key, w.batchSize).Result()
		if err != nil || len(raws) == 0 {
			break
		}
		batch := make([]queuedPush, 0, len(raws))
		for _, raw := range raws {
			if p, ok := w.decode(raw); ok {
				batch = append(batch, p)
			}
		}
		if !w.flush(ctx, batch) {
			break
		}
		drained += len(batch)
	}
	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
