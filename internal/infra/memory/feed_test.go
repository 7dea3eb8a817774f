package memory

import (
	"context"
	"testing"
	"time"

	"quiz-builder/internal/domain"
)

func TestFeedDeliversToSubscribers(t *testing.T) {
	feed := NewFeed(4)
	ctx := context.Background()

	ch, cancel, err := feed.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	event := domain.ResultEvent{Type: domain.ResultSubmitted, Result: domain.Result{ID: 7}}
	if err := feed.Publish(ctx, event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-ch:
		if got.Result.ID != 7 || got.Type != domain.ResultSubmitted {
			t.Fatalf("unexpected event %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for event")
	}
}

func TestFeedDropsStaleEventsForSlowSubscribers(t *testing.T) {
	feed := NewFeed(1)
	ctx := context.Background()

	ch, cancel, _ := feed.Subscribe(ctx)
	defer cancel()

	for i := int64(1); i <= 3; i++ {
		_ = feed.Publish(ctx, domain.ResultEvent{Result: domain.Result{ID: i}})
	}
	got := <-ch
	if got.Result.ID != 3 {
		t.Fatalf("expected newest event, got %d", got.Result.ID)
	}
}

func TestFeedCancelClosesStream(t *testing.T) {
	feed := NewFeed(1)
	ch, cancel, _ := feed.Subscribe(context.Background())

	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	if feed.Subscribers() != 0 {
		t.Fatalf("expected no subscribers, got %d", feed.Subscribers())
	}
}
