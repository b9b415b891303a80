package domain

import "time"

// TTL windows applied when a session enters a state.
const (
	PendingTTL         = 30 * time.Minute
	ReadyTTL           = 30 * time.Minute
	InProgressTTL      = 6 * time.Hour
	ResultsCompleteTTL = time.Hour
	CancelledTTL       = 10 * time.Minute
)

// TTLFor returns the window for status; resultsComplete selects the shorter in_progress window.
func TTLFor(status Status, resultsComplete bool) time.Duration {
	switch status {
	case StatusPending:
		return PendingTTL
	case StatusReady:
		return ReadyTTL
	case StatusInProgress:
		if resultsComplete {
			return ResultsCompleteTTL
		}
		return InProgressTTL
	case StatusCancelled:
		return CancelledTTL
	}
	return 0
}

// CanTransition reports whether from → to is allowed.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending, StatusReady:
		switch to {
		case StatusPending, StatusReady, StatusCancelled, StatusExpired:
			return true
		case StatusInProgress:
			return from == StatusReady
		}
	case StatusInProgress:
		return to == StatusInProgress || to == StatusCancelled || to == StatusExpired
	}
	return false
}

// Transition moves s to status and recomputes ExpiresAt.
func (s *CoopSession) Transition(to Status, now time.Time) error {
	if !CanTransition(s.Status, to) {
		switch {
		case s.Status.Terminal():
			return ErrSessionClosed
		case to == StatusInProgress:
			return ErrNotAllReady
		}
		return ErrAlreadyStarted
	}
	s.Status = to
	if ttl := TTLFor(to, to == StatusInProgress && s.ResultsComplete()); ttl > 0 {
		s.ExpiresAt = now.Add(ttl)
	}
	return nil
}

// TimedOut reports whether a pre-launch session outlived its window.
func (s *CoopSession) TimedOut(now time.Time) bool {
	if s.Status != StatusPending && s.Status != StatusReady {
		return false
	}
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// ExpireIfTimedOut applies the lazy read-time expiry. It reports whether s changed.
func (s *CoopSession) ExpireIfTimedOut(now time.Time) bool {
	if !s.TimedOut(now) {
		return false
	}
	s.Status = StatusExpired
	return true
}

// Active reports whether the session still blocks a new invitation for its participants.
// An in-progress session blocks until the sweeper moves it to a terminal state,
// including the results-complete window.
func (s *CoopSession) Active(now time.Time) bool {
	switch s.Status {
	case StatusPending, StatusReady:
		return !s.TimedOut(now)
	case StatusInProgress:
		return true
	}
	return false
}

// RecomputeReadinessStatus sets pending or ready from the readiness flags.
func (s *CoopSession) RecomputeReadinessStatus() Status {
	if s.AllReady() {
		return StatusReady
	}
	return StatusPending
}

// DetermineWinner picks the higher scorePct, then the shorter duration.
// It returns nil when either result is missing or both criteria tie.
func DetermineWinner(participants [2]string, results map[string]Result) *string {
	a, okA := results[participants[0]]
	b, okB := results[participants[1]]
	if !okA || !okB {
		return nil
	}
	var winner string
	switch {
	case a.ScorePct > b.ScorePct:
		winner = participants[0]
	case b.ScorePct > a.ScorePct:
		winner = participants[1]
	case a.DurationMs < b.DurationMs:
		winner = participants[0]
	case b.DurationMs < a.DurationMs:
		winner = participants[1]
	default:
		return nil
	}
	return &winner
}
