package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"quiz-competition-service/internal/domain"
	"quiz-competition-service/internal/quiz"
)

// ResultStore keeps finalized results in Redis:
//
//	HSET  quiz:results {userID} {result JSON}
//	RPUSH quiz:results:order {userID}   (first insert only)
//
// The order list preserves creation order, which is the tie-break contract of
// the ranking engine. Ranks are recomputed from the full set on every read.
type ResultStore struct {
	client *redis.Client
}

func NewResultStore(client *redis.Client) *ResultStore {
	return &ResultStore{client: client}
}

func (s *ResultStore) SaveResult(ctx context.Context, result domain.Result) (domain.Result, error) {
	existing, err := s.client.HGet(ctx, s.resultsKey(), result.UserID).Result()
	switch {
	case err == redis.Nil:
		if err := s.client.RPush(ctx, s.orderKey(), result.UserID).Err(); err != nil {
			return domain.Result{}, fmt.Errorf("save result order: %w", err)
		}
	case err != nil:
		return domain.Result{}, fmt.Errorf("save result: %w", err)
	default:
		// Resubmission replaces the payload but keeps the original creation
		// time so tie ordering does not shift.
		var prior domain.Result
		if err := json.Unmarshal([]byte(existing), &prior); err == nil {
			result.CreatedAt = prior.CreatedAt
		}
	}

	data, err := json.Marshal(result)
	if err != nil {
		return domain.Result{}, fmt.Errorf("marshal result: %w", err)
	}
	if err := s.client.HSet(ctx, s.resultsKey(), result.UserID, data).Err(); err != nil {
		return domain.Result{}, fmt.Errorf("save result: %w", err)
	}
	return result, nil
}

func (s *ResultStore) ListResults(ctx context.Context) ([]domain.Result, error) {
	userIDs, err := s.client.LRange(ctx, s.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	if len(userIDs) == 0 {
		return []domain.Result{}, nil
	}

	raw, err := s.client.HGetAll(ctx, s.resultsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	ordered := make([]domain.Result, 0, len(userIDs))
	for _, userID := range userIDs {
		encoded, ok := raw[userID]
		if !ok {
			continue
		}
		var result domain.Result
		if err := json.Unmarshal([]byte(encoded), &result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		ordered = append(ordered, result)
	}
	return quiz.Rank(ordered), nil
}

func (s *ResultStore) ClearResults(ctx context.Context) error {
	if err := s.client.Del(ctx, s.resultsKey(), s.orderKey()).Err(); err != nil {
		return fmt.Errorf("clear results: %w", err)
	}
	return nil
}

func (s *ResultStore) resultsKey() string {
	return "quiz:results"
}

func (s *ResultStore) orderKey() string {
	return "quiz:results:order"
}
