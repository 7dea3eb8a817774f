package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"quiz-builder/internal/domain"
)

// Feed fans result events out through a Redis pub/sub channel.
type Feed struct {
	client  *redis.Client
	channel string
	log     logrus.FieldLogger
}

func NewFeed(client *redis.Client, channel string, log logrus.FieldLogger) *Feed {
	return &Feed{client: client, channel: channel, log: log}
}

func (f *Feed) Publish(ctx context.Context, event domain.ResultEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return f.client.Publish(ctx, f.channel, payload).Err()
}

// Subscribe returns once the subscription is confirmed. The caller must invoke cancel.
func (f *Feed) Subscribe(ctx context.Context) (<-chan domain.ResultEvent, func(), error) {
	sub := f.client.Subscribe(ctx, f.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", f.channel, err)
	}

	msgs := sub.Channel()
	out := make(chan domain.ResultEvent, 16)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = sub.Close()
		})
	}

	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event domain.ResultEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					f.log.WithError(err).Warn("result feed: bad payload")
					continue
				}
				select {
				case out <- event:
				case <-done:
					return
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, cancel, nil
}
