package app

import (
	"context"

	"medy-coop-service/internal/domain"
)

// QuestionSampler validates sample requests before they reach the question store.
// Caching lives in the QuestionRepository decorators of the infra packages.
type QuestionSampler struct {
	questions QuestionRepository
}

func NewQuestionSampler(questions QuestionRepository) *QuestionSampler {
	return &QuestionSampler{questions: questions}
}

// Sample returns up to count random question ids matching filter.
func (s *QuestionSampler) Sample(ctx context.Context, filter domain.Filters, count int) ([]string, error) {
	if count < domain.MinQuestionCount || count > domain.MaxQuestionCount {
		return nil, domain.ErrCountOutOfRange
	}
	ids, err := s.questions.SampleIDs(ctx, filter.Normalize(), count)
	if err != nil {
		return nil, domain.Transient(err)
	}
	if len(ids) == 0 {
		return nil, domain.ErrNoQuestionsAvailable
	}
	if len(ids) > count {
		ids = ids[:count]
	}
	return ids, nil
}
