package memory

import (
	"context"
	"testing"
	"time"

	"quiz-competition-service/internal/domain"
)

func TestAnswerStoreUpsertsByUserAndQuestion(t *testing.T) {
	ctx := context.Background()
	store := NewAnswerStore()

	first := domain.OptionA
	second := domain.OptionB
	if err := store.SaveAnswer(ctx, domain.AnswerRecord{UserID: "u1", QuestionID: "q1", Option: &first}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.SaveAnswer(ctx, domain.AnswerRecord{UserID: "u1", QuestionID: "q1", Option: &second}); err != nil {
		t.Fatalf("resave: %v", err)
	}

	answers, err := store.ListAnswers(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(answers) != 1 {
		t.Fatalf("expected one live record per (user, question), got %d", len(answers))
	}
	if answers[0].Option == nil || *answers[0].Option != domain.OptionB {
		t.Fatalf("expected overwrite to win, got %+v", answers[0])
	}
}

func TestAnswerStoreIsolatesUsers(t *testing.T) {
	ctx := context.Background()
	store := NewAnswerStore()

	option := domain.OptionC
	_ = store.SaveAnswer(ctx, domain.AnswerRecord{UserID: "u1", QuestionID: "q1", Option: &option})

	answers, err := store.ListAnswers(ctx, "u2")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(answers) != 0 {
		t.Fatalf("expected no answers for other user, got %d", len(answers))
	}
}

func TestAnswerStoreClear(t *testing.T) {
	ctx := context.Background()
	store := NewAnswerStore()

	option := domain.OptionA
	_ = store.SaveAnswer(ctx, domain.AnswerRecord{UserID: "u1", QuestionID: "q1", Option: &option})
	if err := store.ClearAnswers(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	answers, _ := store.ListAnswers(ctx, "u1")
	if len(answers) != 0 {
		t.Fatalf("expected empty store after clear, got %d", len(answers))
	}
}

func TestResultStoreRanksOnList(t *testing.T) {
	ctx := context.Background()
	store := NewResultStore()

	_, _ = store.SaveResult(ctx, domain.Result{UserID: "u1", Score: 2, CreatedAt: time.Now()})
	_, _ = store.SaveResult(ctx, domain.Result{UserID: "u2", Score: 8, CreatedAt: time.Now()})

	results, err := store.ListResults(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if results[0].UserID != "u2" || results[0].Rank != 1 {
		t.Fatalf("expected u2 ranked first, got %+v", results[0])
	}
	if results[1].UserID != "u1" || results[1].Rank != 2 {
		t.Fatalf("expected u1 ranked second, got %+v", results[1])
	}
}

func TestResultStoreUpsertKeepsCreationOrder(t *testing.T) {
	ctx := context.Background()
	store := NewResultStore()

	created := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	_, _ = store.SaveResult(ctx, domain.Result{UserID: "u1", Score: 5, CreatedAt: created})
	_, _ = store.SaveResult(ctx, domain.Result{UserID: "u2", Score: 5, CreatedAt: created.Add(time.Second)})

	// Resubmission for u1 replaces the payload but not its creation slot, so
	// the tie still resolves u1 before u2.
	_, _ = store.SaveResult(ctx, domain.Result{UserID: "u1", Score: 5, CreatedAt: created.Add(time.Minute)})

	results, _ := store.ListResults(ctx)
	if len(results) != 2 {
		t.Fatalf("resubmission must replace, not append: got %d results", len(results))
	}
	if results[0].UserID != "u1" || results[1].UserID != "u2" {
		t.Fatalf("expected creation-order tie-break u1 then u2, got %s then %s", results[0].UserID, results[1].UserID)
	}
}

func TestResultStoreClear(t *testing.T) {
	ctx := context.Background()
	store := NewResultStore()

	_, _ = store.SaveResult(ctx, domain.Result{UserID: "u1", Score: 1})
	if err := store.ClearResults(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	results, _ := store.ListResults(ctx)
	if len(results) != 0 {
		t.Fatalf("expected empty results after clear, got %d", len(results))
	}
}
