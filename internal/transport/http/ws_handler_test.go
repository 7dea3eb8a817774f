package http

import (
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"quiz-builder/internal/domain"
)

func TestResultFeedStreamsSubmissions(t *testing.T) {
	api := newTestAPI(t)
	u := "ws" + api.server.URL[len("http"):] + "/ws/results"

	conn, _, err := websocket.DefaultDialer.Dial(u, http.Header{"Authorization": {"Bearer " + api.token}})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readNext(conn, t, "subscribed")

	p := api.participant(t, "WS-1")
	if status, data := api.submit(t, p.ID); status != http.StatusCreated {
		t.Fatalf("submit: %d %s", status, data)
	}

	_, payload := readNext(conn, t, string(domain.ResultSubmitted))
	result, ok := payload["result"].(map[string]any)
	if !ok || result["participantId"] != float64(p.ID) {
		t.Fatalf("unexpected event payload %v", payload)
	}
}

func TestResultFeedRequiresAdmin(t *testing.T) {
	api := newTestAPI(t)
	u := "ws" + api.server.URL[len("http"):] + "/ws/results"

	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected anonymous dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", resp)
	}
}

func TestResultFeedReleasesSubscription(t *testing.T) {
	api := newTestAPI(t)
	u := "ws" + api.server.URL[len("http"):] + "/ws/results"

	conn, _, err := websocket.DefaultDialer.Dial(u, http.Header{"Authorization": {"Bearer " + api.token}})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	readNext(conn, t, "subscribed")
	if api.feed.Subscribers() != 1 {
		t.Fatalf("expected one subscriber, got %d", api.feed.Subscribers())
	}
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for api.feed.Subscribers() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscription not released after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}
