package redis

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"quiz-builder/internal/domain"
	"quiz-builder/internal/infra/memory"
)

func TestQuizCacheCachesInRedis(t *testing.T) {
	mr, client := startRedis(t)
	store, quizID := seededStore(t)
	loader := &countingLoader{QuizLoader: store}
	cache := NewQuizCache(client, loader, time.Minute)
	ctx := context.Background()

	quiz, err := cache.GetQuiz(ctx, quizID)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("quiz:" + strconv.FormatInt(quizID, 10)) {
		t.Fatalf("expected quiz key in redis")
	}

	// Second call should hit cache, loader not incremented.
	cached, err := cache.GetQuiz(ctx, quizID)
	if err != nil {
		t.Fatalf("get cached quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if len(cached.Questions) != len(quiz.Questions) || cached.Questions[0].CorrectAnswer != 1 {
		t.Fatalf("cached quiz lost its answer key: %+v", cached.Questions)
	}
}

func TestQuizCacheInvalidateAndExpiry(t *testing.T) {
	mr, client := startRedis(t)
	store, quizID := seededStore(t)
	loader := &countingLoader{QuizLoader: store}
	cache := NewQuizCache(client, loader, time.Minute)
	ctx := context.Background()

	_, _ = cache.GetQuiz(ctx, quizID)
	if err := cache.Invalidate(ctx, quizID); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	_, _ = cache.GetQuiz(ctx, quizID)
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, got %d", loader.calls)
	}

	mr.FastForward(2 * time.Minute)
	_, _ = cache.GetQuiz(ctx, quizID)
	if loader.calls != 3 {
		t.Fatalf("expected reload after ttl, got %d", loader.calls)
	}
}

func TestQuizCacheFallsBackWhenRedisIsDown(t *testing.T) {
	mr, client := startRedis(t)
	store, quizID := seededStore(t)
	cache := NewQuizCache(client, store, time.Minute)
	mr.Close()

	quiz, err := cache.GetQuiz(context.Background(), quizID)
	if err != nil {
		t.Fatalf("expected loader fallback, got %v", err)
	}
	if quiz.ID != quizID {
		t.Fatalf("unexpected quiz %d", quiz.ID)
	}
}

func TestQuizCachePropagatesNotFound(t *testing.T) {
	_, client := startRedis(t)
	cache := NewQuizCache(client, memory.NewStore(), time.Minute)

	if _, err := cache.GetQuiz(context.Background(), 404); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

func TestFeedPublishSubscribe(t *testing.T) {
	_, client := startRedis(t)
	logger, _ := logtest.NewNullLogger()
	feed := NewFeed(client, "quiz:results", logger)
	ctx := context.Background()

	ch, cancel, err := feed.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	event := domain.ResultEvent{Type: domain.ResultRetake, Result: domain.Result{ID: 11, CanRetake: true}}
	if err := feed.Publish(ctx, event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-ch:
		if got.Type != domain.ResultRetake || got.Result.ID != 11 || !got.Result.CanRetake {
			t.Fatalf("unexpected event %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for event")
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected stream closed after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for close")
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

func startRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func seededStore(t *testing.T) (*memory.Store, int64) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	quiz, err := store.CreateQuiz(ctx, domain.Quiz{Title: "Arithmetic", TimeLimit: 10, PassingScore: 60, IsActive: true})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	if _, err := store.CreateQuestions(ctx, quiz.ID, []domain.Question{
		{Text: "What is 2 + 2?", Options: []string{"3", "4"}, CorrectAnswer: 1},
		{Text: "What is 3 + 3?", Options: []string{"6", "7"}, CorrectAnswer: 0},
	}); err != nil {
		t.Fatalf("create questions: %v", err)
	}
	return store, quiz.ID
}
