package http

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"quiz-builder/internal/app"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// FeedHandler streams result events to admin dashboards over websockets.
type FeedHandler struct {
	feed     app.FeedSubscriber
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

func NewFeedHandler(feed app.FeedSubscriber, log logrus.FieldLogger) *FeedHandler {
	return &FeedHandler{
		feed: feed,
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type subscribedPayload struct {
	At time.Time `json:"at"`
}

// ServeWS subscribes before it announces "subscribed", so every later event is delivered.
func (h *FeedHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.log)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	events, cancel, err := h.feed.Subscribe(r.Context())
	if err != nil {
		log.WithError(err).Warn("result feed subscribe failed")
		_ = conn.WriteJSON(outboundMessage[errorBody]{Type: "error", Payload: errorBody{Message: "feed unavailable"}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case msg, ok := <-send:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(msg); err != nil {
					log.WithError(err).Debug("ws write failed")
					return
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: string(event.Type), Payload: event}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "subscribed", Payload: subscribedPayload{At: time.Now().UTC()}}
	log.Debug("result feed subscriber connected")

	// Dashboards never send anything; reading only detects the close.
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
	log.Debug("result feed subscriber disconnected")
}

