package quiz

import (
	"math"

	"quiz-competition-service/internal/domain"
)

// Fixed scoring policy. Kept as named constants so the formula can be
// exercised in isolation.
const (
	CorrectPoints    = 2
	IncorrectPenalty = 1
)

// Score classifies every question in the bank against the recorded answers
// and aggregates the outcome. A missing record or a nil option counts as
// skipped, never as incorrect. Skipped questions contribute nothing to the
// score and are excluded from the average response time.
func Score(questions []domain.Question, answers map[string]domain.AnswerRecord) domain.Summary {
	var summary domain.Summary
	var totalResponse float64

	for _, q := range questions {
		rec, ok := answers[q.ID]
		if !ok || rec.Skipped() {
			summary.SkippedCount++
			continue
		}
		if *rec.Option == q.CorrectOption {
			summary.CorrectCount++
		} else {
			summary.IncorrectCount++
		}
		totalResponse += rec.ResponseTime.Seconds()
	}

	summary.Score = CorrectPoints*summary.CorrectCount - IncorrectPenalty*summary.IncorrectCount

	answered := summary.CorrectCount + summary.IncorrectCount
	if answered > 0 {
		summary.AverageResponseTime = int(math.Round(totalResponse / float64(answered)))
	}
	return summary
}
