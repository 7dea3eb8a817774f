package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"quiz-builder/internal/domain"
)

// Feed carries result events over LISTEN/NOTIFY so every server instance sees them.
type Feed struct {
	db      *bun.DB
	dsn     string
	channel string
	log     logrus.FieldLogger
}

func NewFeed(db *bun.DB, dsn, channel string, log logrus.FieldLogger) *Feed {
	return &Feed{db: db, dsn: dsn, channel: channel, log: log}
}

// maxNotifyPayload is the Postgres NOTIFY payload limit.
const maxNotifyPayload = 8000

// Publish sends the event as a NOTIFY payload. Events too large for NOTIFY are sent without
// their answers.
func (f *Feed) Publish(ctx context.Context, event domain.ResultEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if len(payload) >= maxNotifyPayload {
		event.Result.Answers = nil
		if payload, err = json.Marshal(event); err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
	}
	if _, err := f.db.ExecContext(ctx, "SELECT pg_notify(?, ?)", f.channel, string(payload)); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

// Subscribe opens a dedicated listener connection. The caller must invoke cancel.
func (f *Feed) Subscribe(ctx context.Context) (<-chan domain.ResultEvent, func(), error) {
	listener := pq.NewListener(f.dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			f.log.WithError(err).WithField("event", ev).Warn("result feed listener")
		}
	})
	if err := listener.Listen(f.channel); err != nil {
		listener.Close()
		return nil, nil, fmt.Errorf("listen %s: %w", f.channel, err)
	}

	out := make(chan domain.ResultEvent, 16)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			listener.Close()
		})
	}

	go func() {
		defer close(out)
		ping := time.NewTicker(90 * time.Second)
		defer ping.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ping.C:
				go func() { _ = listener.Ping() }()
			case n, ok := <-listener.Notify:
				if !ok {
					return
				}
				// nil after a reconnect; events sent while disconnected are lost
				if n == nil {
					continue
				}
				var event domain.ResultEvent
				if err := json.Unmarshal([]byte(n.Extra), &event); err != nil {
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
