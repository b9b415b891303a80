// Package scoring grades coop submissions.
package scoring

import (
	"math"

	"medy-coop-service/internal/domain"
)

// WrongPickPenalty is subtracted for every selected option outside the correct set.
const WrongPickPenalty = 0.25

// Status classifies a graded question.
type Status string

const (
	StatusCorrect Status = "correct"
	StatusPartial Status = "partial"
	StatusWrong   Status = "wrong"
)

// QuestionScore is the audit breakdown of one question.
type QuestionScore struct {
	QuestionID string  `json:"questionId"`
	Selected   []int   `json:"selected"`
	Score      float64 `json:"score"`
	Status     Status  `json:"status"`
}

// SessionScore aggregates a participant's submission.
type SessionScore struct {
	Score     float64         `json:"score"`
	ScorePct  float64         `json:"scorePct"`
	Total     int             `json:"total"`
	Breakdown []QuestionScore `json:"breakdown"`
}

// NormalizeSelection truncates to integers, drops non-finite values and removes duplicates.
func NormalizeSelection(raw []float64) []int {
	out := make([]int, 0, len(raw))
	seen := make(map[int]struct{}, len(raw))
	for _, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		i := int(math.Trunc(v))
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		out = append(out, i)
	}
	return out
}

// ValidateSelection checks every index lies in [0, optionCount).
func ValidateSelection(selected []int, optionCount int) error {
	for _, i := range selected {
		if i < 0 || i >= optionCount {
			return domain.ErrInvalidSelection
		}
	}
	return nil
}

// ScoreQuestion grades one question. Selections must already be normalized.
func ScoreQuestion(q domain.Question, selected []int, mode domain.CorrectionMode) (float64, Status, error) {
	if err := ValidateSelection(selected, len(q.Options)); err != nil {
		return 0, StatusWrong, err
	}
	correct := make(map[int]struct{}, len(q.CorrectAnswer))
	for _, c := range q.CorrectAnswer {
		correct[c] = struct{}{}
	}

	if mode == domain.ModeBinary {
		if len(selected) != len(correct) {
			return 0, StatusWrong, nil
		}
		for _, i := range selected {
			if _, ok := correct[i]; !ok {
				return 0, StatusWrong, nil
			}
		}
		return 1, StatusCorrect, nil
	}

	score := 0.0
	for _, i := range selected {
		if _, ok := correct[i]; ok {
			score++
		} else {
			score -= WrongPickPenalty
		}
	}
	score = clamp(score, 0, 1)
	switch score {
	case 1:
		return score, StatusCorrect, nil
	case 0:
		return score, StatusWrong, nil
	}
	return score, StatusPartial, nil
}

// ScoreSession grades answers positionally against questionIDs.
// Questions missing from the store score 0; answers for unknown ids are ignored.
func ScoreSession(questionIDs []string, questions map[string]domain.Question, answers map[string][]int, mode domain.CorrectionMode) (SessionScore, error) {
	result := SessionScore{
		Total:     len(questionIDs),
		Breakdown: make([]QuestionScore, 0, len(questionIDs)),
	}
	for _, id := range questionIDs {
		selected := answers[id]
		if selected == nil {
			selected = []int{}
		}
		q, ok := questions[id]
		if !ok {
			result.Breakdown = append(result.Breakdown, QuestionScore{QuestionID: id, Selected: selected, Status: StatusWrong})
			continue
		}
		score, status, err := ScoreQuestion(q, selected, mode)
		if err != nil {
			return SessionScore{}, err
		}
		result.Score += score
		result.Breakdown = append(result.Breakdown, QuestionScore{QuestionID: id, Selected: selected, Score: score, Status: status})
	}
	if result.Total > 0 {
		result.ScorePct = clamp(100*result.Score/float64(result.Total), 0, 100)
	}
	return result, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
