package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultSweepInterval is how often abandoned sessions are collected.
const DefaultSweepInterval = 60 * time.Second

// SessionSweeper expires sessions whose players went quiet.
type SessionSweeper interface {
	ExpireAbandoned(ctx context.Context) (int, error)
}

// Sweeper runs the abandonment pass on a fixed interval.
type Sweeper struct {
	target   SessionSweeper
	interval time.Duration
	log      zerolog.Logger
}

func NewSweeper(target SessionSweeper, interval time.Duration, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		target:   target,
		interval: interval,
		log:      log.With().Str("component", "coop_sweeper").Logger(),
	}
}

// Start blocks until ctx is cancelled. Call in a goroutine.
func (w *Sweeper) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Sweeper started")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Sweeper stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single pass and returns how many sessions it expired.
// Errors are logged; the next tick retries.
func (w *Sweeper) RunOnce(ctx context.Context) int {
	expired, err := w.target.ExpireAbandoned(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("Sweep failed")
		return expired
	}
	if expired > 0 {
		w.log.Info().Int("count", expired).Msg("Expired abandoned sessions")
	}
	return expired
}
