package app

// Real-time event names emitted to participants.
const (
	EventInviteReceived    = "coop:invite_received"
	EventFiltersUpdated    = "coop:filters_updated"
	EventSessionReady      = "coop:session_ready"
	EventSessionStarted    = "coop:session_started"
	EventOpponentAnswered  = "coop:opponent_answered"
	EventBothAnswered      = "coop:both_answered"
	EventSessionFinished   = "coop:session_finished"
	EventSessionCancelled  = "coop:session_cancelled"
	EventOpponentAbandoned = "coop:opponent_abandoned"
)

// Notification types queued for offline users.
const (
	NotificationInvite    = "coop_invite"
	NotificationReady     = "coop_ready"
	NotificationStarted   = "coop_started"
	NotificationFinished  = "coop_finished"
	NotificationAbandoned = "coop_abandoned"
)

type readinessPayload struct {
	SessionID string          `json:"sessionId"`
	Status    string          `json:"status"`
	Readiness map[string]bool `json:"readiness"`
}

type answeredPayload struct {
	SessionID   string   `json:"sessionId"`
	UserID      string   `json:"userId"`
	SubmittedBy []string `json:"submittedBy"`
}

type finishedPayload struct {
	SessionID string                  `json:"sessionId"`
	Winner    *string                 `json:"winner"`
	Results   map[string]resultDigest `json:"results"`
}

type resultDigest struct {
	ScorePct   float64 `json:"scorePct"`
	DurationMs int64   `json:"durationMs"`
}

type startedPayload struct {
	SessionID       string   `json:"sessionId"`
	ServerStartedAt int64    `json:"serverStartedAt"`
	QuestionIDs     []string `json:"questionIds"`
}

type cancelledPayload struct {
	SessionID   string `json:"sessionId"`
	CancelledBy string `json:"cancelledBy"`
}

type abandonedPayload struct {
	SessionID string  `json:"sessionId"`
	Winner    *string `json:"winner"`
}
