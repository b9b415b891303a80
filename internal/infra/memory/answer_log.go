package memory

import (
	"context"
	"sync"

	"medy-coop-service/internal/domain"
)

// AnswerLog keeps audit rows in memory.
type AnswerLog struct {
	mu   sync.Mutex
	rows []domain.CoopAnswer
}

func NewAnswerLog() *AnswerLog {
	return &AnswerLog{}
}

func (l *AnswerLog) Append(_ context.Context, rows []domain.CoopAnswer) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = append(l.rows, rows...)
	return nil
}

// BySession returns the rows recorded for sessionID.
func (l *AnswerLog) BySession(sessionID string) []domain.CoopAnswer {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.CoopAnswer
	for _, r := range l.rows {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out
}
