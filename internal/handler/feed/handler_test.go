package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/z-blog/backend/internal/feed"
	"github.com/zhouzirui/z-blog/backend/internal/model/post"
)

func setupServer(t *testing.T) (*httptest.Server, *feed.Hub) {
	t.Helper()
	hub := feed.NewHub(8)
	handler := New(hub, time.Hour)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, hub
}

func samplePost() post.Post {
	fields := post.Fields{
		"title":  json.RawMessage(`"T"`),
		"body":   json.RawMessage(`"B"`),
		"author": json.RawMessage(`"me"`),
	}
	return post.New(4, fields, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestWebSocketReceivesEvents(t *testing.T) {
	srv, hub := setupServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/posts/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	hub.Publish("post.created", samplePost())

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var got struct {
		ID   string                 `json:"id"`
		Type string                 `json:"type"`
		Post map[string]interface{} `json:"post"`
	}
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got.Type != "post.created" || got.Post["post_id"] != float64(4) || got.ID == "" {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestWebSocketClosedHubIsUnavailable(t *testing.T) {
	srv, hub := setupServer(t)
	hub.Close()

	resp, err := http.Get(srv.URL + "/posts/events")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestStreamSendsStatusThenEvents(t *testing.T) {
	srv, hub := setupServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/posts/stream", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var name, data string
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("read stream: %v", err)
			}
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "":
				return name, data
			}
		}
	}

	if name, _ := readEvent(); name != "status" {
		t.Fatalf("expected status event first, got %q", name)
	}

	hub.Publish("post.deleted", samplePost())

	name, data := readEvent()
	if name != "post.deleted" {
		t.Fatalf("expected post.deleted, got %q", name)
	}
	var event map[string]interface{}
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		t.Fatalf("invalid event data: %v", err)
	}
	if event["type"] != "post.deleted" {
		t.Fatalf("unexpected event payload: %v", event)
	}
}
