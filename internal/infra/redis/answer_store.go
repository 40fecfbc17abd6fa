package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"quiz-competition-service/internal/domain"
)

// AnswerStore keeps answer records in Redis, one hash per user:
//
//	HSET quiz:answers:{userID} {questionID} {record JSON}
//
// A set of user IDs (quiz:answers:index) tracks which hashes exist so a reset
// can clear every user without scanning the keyspace.
type AnswerStore struct {
	client *redis.Client
}

func NewAnswerStore(client *redis.Client) *AnswerStore {
	return &AnswerStore{client: client}
}

func (s *AnswerStore) SaveAnswer(ctx context.Context, record domain.AnswerRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, s.answersKey(record.UserID), record.QuestionID, data)
	pipe.SAdd(ctx, s.indexKey(), record.UserID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

func (s *AnswerStore) ListAnswers(ctx context.Context, userID string) ([]domain.AnswerRecord, error) {
	raw, err := s.client.HGetAll(ctx, s.answersKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	out := make([]domain.AnswerRecord, 0, len(raw))
	for _, encoded := range raw {
		var record domain.AnswerRecord
		if err := json.Unmarshal([]byte(encoded), &record); err != nil {
			return nil, fmt.Errorf("unmarshal answer: %w", err)
		}
		out = append(out, record)
	}
	return out, nil
}

func (s *AnswerStore) ClearAnswers(ctx context.Context) error {
	userIDs, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return fmt.Errorf("clear answers: %w", err)
	}

	pipe := s.client.Pipeline()
	for _, userID := range userIDs {
		pipe.Del(ctx, s.answersKey(userID))
	}
	pipe.Del(ctx, s.indexKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("clear answers: %w", err)
	}
	return nil
}

func (s *AnswerStore) answersKey(userID string) string {
	return "quiz:answers:" + userID
}

func (s *AnswerStore) indexKey() string {
	return "quiz:answers:index"
}
