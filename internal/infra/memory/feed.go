package memory

import (
	"context"
	"sync"

	"quiz-builder/internal/domain"
)

// Feed fans result events out to in-process subscribers.
type Feed struct {
	mu          sync.Mutex
	buffer      int
	subscribers map[chan domain.ResultEvent]struct{}
}

func NewFeed(buffer int) *Feed {
	if buffer <= 0 {
		buffer = 16
	}
	return &Feed{
		buffer:      buffer,
		subscribers: make(map[chan domain.ResultEvent]struct{}),
	}
}

// Publish never blocks: a subscriber that is full loses its oldest pending event.
func (f *Feed) Publish(_ context.Context, event domain.ResultEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- event:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
	return nil
}

// Subscribe registers a new stream. The caller must invoke cancel to release it.
func (f *Feed) Subscribe(_ context.Context) (<-chan domain.ResultEvent, func(), error) {
	ch := make(chan domain.ResultEvent, f.buffer)

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel, nil
}

// Subscribers reports the number of live streams.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}
