package memory

import (
	"context"
	"sync"

	"quiz-competition-service/internal/domain"
	"quiz-competition-service/internal/quiz"
)

// ResultStore is an in-memory implementation of app.ResultStore. Results are
// kept in creation order; a resubmission replaces the existing entry in place
// so ties keep resolving by original creation order. Ranks are recomputed
// from the full set on every read.
type ResultStore struct {
	mu      sync.RWMutex
	results []domain.Result
}

func NewResultStore() *ResultStore {
	return &ResultStore{}
}

func (s *ResultStore) SaveResult(_ context.Context, result domain.Result) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.results {
		if s.results[i].UserID == result.UserID {
			result.CreatedAt = s.results[i].CreatedAt
			s.results[i] = result
			return result, nil
		}
	}
	s.results = append(s.results, result)
	return result, nil
}

func (s *ResultStore) ListResults(_ context.Context) ([]domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return quiz.Rank(s.results), nil
}

func (s *ResultStore) ClearResults(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = nil
	return nil
}
