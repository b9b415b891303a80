package memory

import (
	"context"
	"math/rand"

	"medy-coop-service/internal/domain"
)

// QuestionBank is a question store backed by a slice (useful for tests/demos).
type QuestionBank struct {
	questions []domain.Question
	byID      map[string]domain.Question
}

func NewQuestionBank(questions []domain.Question) *QuestionBank {
	byID := make(map[string]domain.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	return &QuestionBank{questions: questions, byID: byID}
}

// SampleIDs draws count matching ids uniformly without replacement.
func (b *QuestionBank) SampleIDs(_ context.Context, filter domain.Filters, count int) ([]string, error) {
	filter = filter.Normalize()
	matching := make([]string, 0, len(b.questions))
	for _, q := range b.questions {
		if filter.Matches(q) {
			matching = append(matching, q.ID)
		}
	}
	rand.Shuffle(len(matching), func(i, j int) {
		matching[i], matching[j] = matching[j], matching[i]
	})
	if len(matching) > count {
		matching = matching[:count]
	}
	return matching, nil
}

// GetByIDs returns the known questions in the order requested; unknown ids are skipped.
func (b *QuestionBank) GetByIDs(_ context.Context, ids []string) ([]domain.Question, error) {
	out := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := b.byID[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}
