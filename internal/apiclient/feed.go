package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"quiz-builder/internal/domain"
)

type feedMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// WatchResults streams the live results feed until ctx is done or the server closes the
// connection. It needs an admin token.
func (c *Client) WatchResults(ctx context.Context, fn func(domain.ResultEvent)) error {
	u := c.baseURL + "/ws/results"
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u, header)
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 {
			return decodeError(resp)
		}
		return fmt.Errorf("dial feed: %w: %v", domain.ErrTransient, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}()

	for {
		var msg feedMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read feed: %w", err)
		}
		switch msg.Type {
		case string(domain.ResultSubmitted), string(domain.ResultRetake):
			var event domain.ResultEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				return fmt.Errorf("decode feed event: %w", err)
			}
			fn(event)
		case "error":
			var body struct {
				Message string `json:"message"`
			}
			_ = json.Unmarshal(msg.Payload, &body)
			return fmt.Errorf("feed: %s", body.Message)
		}
	}
}
