package app

import (
	"context"
	"time"

	"medy-coop-service/internal/domain"
)

// MutateFunc edits a session copy inside a repository update. Returning an error aborts the write.
type MutateFunc func(s *domain.CoopSession) error

// SessionRepository abstracts how coop sessions are stored (in-memory, Redis, Postgres).
// Update must apply mutate atomically with respect to every other Update of the same id.
type SessionRepository interface {
	Create(ctx context.Context, s *domain.CoopSession) error
	Get(ctx context.Context, id string) (*domain.CoopSession, error)
	Update(ctx context.Context, id string, mutate MutateFunc) (*domain.CoopSession, error)
	// ListByParticipant returns every non-terminal session of userID.
	ListByParticipant(ctx context.Context, userID string) ([]*domain.CoopSession, error)
	ListByStatus(ctx context.Context, statuses ...domain.Status) ([]*domain.CoopSession, error)
}

// QuestionRepository samples and loads questions.
type QuestionRepository interface {
	SampleIDs(ctx context.Context, filter domain.Filters, count int) ([]string, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.Question, error)
}

// AnswerLog appends audit rows.
type AnswerLog interface {
	Append(ctx context.Context, rows []domain.CoopAnswer) error
}

// FriendshipChecker answers whether two users are mutually accepted friends.
type FriendshipChecker interface {
	AreFriends(ctx context.Context, a, b string) (bool, error)
}

// UserDirectory resolves profile defaults.
type UserDirectory interface {
	Profile(ctx context.Context, userID string) (domain.UserProfile, error)
}

// Notifier delivers notifications to users who are not connected.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// EventEmitter is the real-time fan-out consumed by the service.
type EventEmitter interface {
	EmitSessionEvent(sessionID string, participantIDs []string, event string, payload any) bool
	SendSnapshot(sessionID, userID string, payload any)
	IsOnline(userID string) bool
}

// Clock returns the current server time.
type Clock func() time.Time
