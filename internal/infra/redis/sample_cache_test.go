package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"medy-coop-service/internal/domain"
	"medy-coop-service/internal/infra/memory"
)

type countingRepository struct {
	*memory.QuestionBank
	calls int
}

func (r *countingRepository) SampleIDs(ctx context.Context, filter domain.Filters, count int) ([]string, error) {
	r.calls++
	return r.QuestionBank.SampleIDs(ctx, filter, count)
}

func TestSampleCacheStoresSampleInRedis(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	questions := make([]domain.Question, 0, 10)
	for i := 0; i < 10; i++ {
		questions = append(questions, domain.Question{ID: fmt.Sprintf("q%d", i), Options: []string{"A", "B"}})
	}
	repo := &countingRepository{QuestionBank: memory.NewQuestionBank(questions)}
	cache := NewSampleCache(client, repo, time.Minute)

	first, err := cache.SampleIDs(ctx, domain.Filters{}, 8)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	second, err := cache.SampleIDs(ctx, domain.Filters{}, 8)
	if err != nil {
		t.Fatalf("sample 2: %v", err)
	}
	if repo.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", repo.calls)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("expected identical cached sample")
		}
	}

	mr.FastForward(2 * time.Minute)
	if _, err := cache.SampleIDs(ctx, domain.Filters{}, 8); err != nil {
		t.Fatalf("sample 3: %v", err)
	}
	if repo.calls != 2 {
		t.Fatalf("expected expired sample to be reloaded, calls %d", repo.calls)
	}
}
