package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-builder/internal/domain"
)

func TestQuizCacheCaches(t *testing.T) {
	store, quizID := seededStore(t)
	loader := &countingLoader{QuizLoader: store}
	cache := NewQuizCache(loader, time.Minute)

	quiz, err := cache.GetQuiz(context.Background(), quizID)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if len(quiz.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(quiz.Questions))
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := cache.GetQuiz(context.Background(), quizID); err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestQuizCacheInvalidateReloads(t *testing.T) {
	store, quizID := seededStore(t)
	loader := &countingLoader{QuizLoader: store}
	cache := NewQuizCache(loader, time.Minute)
	ctx := context.Background()

	if _, err := cache.GetQuiz(ctx, quizID); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if err := cache.Invalidate(ctx, quizID); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := cache.GetQuiz(ctx, quizID); err != nil {
		t.Fatalf("get quiz after invalidate: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls %d", loader.calls)
	}
}

func TestQuizCacheExpires(t *testing.T) {
	store, quizID := seededStore(t)
	loader := &countingLoader{QuizLoader: store}
	cache := NewQuizCache(loader, time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.clock = func() time.Time { return now }
	ctx := context.Background()

	if _, err := cache.GetQuiz(ctx, quizID); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := cache.GetQuiz(ctx, quizID); err != nil {
		t.Fatalf("get quiz after ttl: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.calls)
	}
}

func TestQuizCacheDoesNotShareQuestionSlices(t *testing.T) {
	store, quizID := seededStore(t)
	cache := NewQuizCache(store, time.Minute)
	ctx := context.Background()

	first, _ := cache.GetQuiz(ctx, quizID)
	first.Questions[0].CorrectAnswer = domain.HiddenAnswer

	second, err := cache.GetQuiz(ctx, quizID)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if second.Questions[0].CorrectAnswer == domain.HiddenAnswer {
		t.Fatalf("cached quiz was mutated through a returned copy")
	}
}

func TestQuizCacheMissingQuiz(t *testing.T) {
	cache := NewQuizCache(NewStore(), time.Minute)
	_, err := cache.GetQuiz(context.Background(), 42)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

type countingLoader struct {
	QuizLoader
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	l.calls++
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func seededStore(t *testing.T) (*Store, int64) {
	t.Helper()
	ctx := context.Background()
	store := NewStore()
	quiz, err := store.CreateQuiz(ctx, domain.Quiz{
		Title:        "Arithmetic",
		TimeLimit:    10,
		PassingScore: 60,
		IsActive:     true,
		CreatedAt:    time.Now(),
	})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	_, err = store.CreateQuestions(ctx, quiz.ID, []domain.Question{
		{Text: "What is 2 + 2?", Options: []string{"3", "4"}, CorrectAnswer: 1},
		{Text: "What is 3 + 3?", Options: []string{"6", "7"}, CorrectAnswer: 0},
	})
	if err != nil {
		t.Fatalf("create questions: %v", err)
	}
	return store, quiz.ID
}
