package memory

import (
	"context"
	"sync"

	"quiz-competition-service/internal/domain"
)

// AnswerStore is an in-memory implementation of app.AnswerStore, upserting
// records by (userID, questionID).
type AnswerStore struct {
	mu      sync.RWMutex
	byUser  map[string]map[string]domain.AnswerRecord
	order   map[string][]string // question order per user, for stable listing
}

func NewAnswerStore() *AnswerStore {
	return &AnswerStore{
		byUser: make(map[string]map[string]domain.AnswerRecord),
		order:  make(map[string][]string),
	}
}

func (s *AnswerStore) SaveAnswer(_ context.Context, record domain.AnswerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	answers, ok := s.byUser[record.UserID]
	if !ok {
		answers = make(map[string]domain.AnswerRecord)
		s.byUser[record.UserID] = answers
	}
	if _, exists := answers[record.QuestionID]; !exists {
		s.order[record.UserID] = append(s.order[record.UserID], record.QuestionID)
	}
	answers[record.QuestionID] = record
	return nil
}

func (s *AnswerStore) ListAnswers(_ context.Context, userID string) ([]domain.AnswerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	answers := s.byUser[userID]
	out := make([]domain.AnswerRecord, 0, len(answers))
	for _, questionID := range s.order[userID] {
		out = append(out, answers[questionID])
	}
	return out, nil
}

func (s *AnswerStore) ClearAnswers(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser = make(map[string]map[string]domain.AnswerRecord)
	s.order = make(map[string][]string)
	return nil
}
