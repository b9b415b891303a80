package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"medy-coop-service/internal/domain"
)

// AnswerLog bulk-copies audit rows into coop_answers.
type AnswerLog struct {
	pool *pgxpool.Pool
}

func NewAnswerLog(pool *pgxpool.Pool) *AnswerLog {
	return &AnswerLog{pool: pool}
}

func (l *AnswerLog) Append(ctx context.Context, answers []domain.CoopAnswer) error {
	if len(answers) == 0 {
		return nil
	}
	rows := make([][]interface{}, 0, len(answers))
	for _, a := range answers {
		selected := make([]int32, len(a.Selected))
		for i, v := range a.Selected {
			selected[i] = int32(v)
		}
		rows = append(rows, []interface{}{
			a.SessionID, a.UserID, a.QuestionID, selected, a.Score, a.IsCorrect, a.SubmittedAt, a.ClientDurationMs,
		})
	}
	_, err := l.pool.CopyFrom(ctx,
		pgx.Identifier{"coop_answers"},
		[]string{"session_id", "user_id", "question_id", "selected", "score", "is_correct", "submitted_at", "client_duration_ms"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy answers: %w", err)
	}
	return nil
}
