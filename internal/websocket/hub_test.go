package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chatllm-backend/internal/middleware"
	"chatllm-backend/internal/models"
	"chatllm-backend/internal/services"
)

type stubSessions map[string]*models.User

func (s stubSessions) ResolveSession(ctx context.Context, token string) (*models.User, error) {
	if token == "store-down" {
		return nil, errors.New("connection refused")
	}
	if u, ok := s[token]; ok {
		return u, nil
	}
	return nil, middleware.ErrUnauthenticated
}

func newTestHub(t *testing.T, redisClient *redis.Client) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(redisClient, stubSessions{"good": {ID: 42, Email: "a@x.com", IsActive: true}}, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + token
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return client
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandleWebSocket_RejectsBadTokens(t *testing.T) {
	_, srv := newTestHub(t, nil)

	tests := []struct {
		query  string
		status int
	}{
		{"", http.StatusUnauthorized},
		{"?token=forged", http.StatusUnauthorized},
		{"?token=store-down", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		resp, err := http.Get(srv.URL + tt.query)
		if err != nil {
			t.Fatalf("GET %q: %v", tt.query, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.status {
			t.Errorf("query %q: expected %d, got %d", tt.query, tt.status, resp.StatusCode)
		}
	}
}

func TestBroadcast_ReachesOnlyThatUser(t *testing.T) {
	hub, srv := newTestHub(t, nil)

	client := dial(t, srv, "good")
	waitFor(t, func() bool { return hub.connectionCount(42) == 1 })

	// No sockets for user 7; must be a no-op.
	hub.broadcast(7, []byte(`{"type":"ignored"}`))
	hub.broadcast(42, []byte(`{"type":"message_created","payload":{"content":"hi"}}`))

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got models.WSMessage
	if err := client.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Type != models.EventMessageCreated {
		t.Errorf("expected %q event, got %q", models.EventMessageCreated, got.Type)
	}

	client.Close()
	waitFor(t, func() bool { return hub.connectionCount(42) == 0 })
}

func TestHub_RedisFeed(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	hub, srv := newTestHub(t, rdb)
	channel := services.UserChannel(42)

	first := dial(t, srv, "good")
	second := dial(t, srv, "good")
	waitFor(t, func() bool { return hub.connectionCount(42) == 2 })
	waitFor(t, func() bool { return len(mr.PubSubChannels(channel)) == 1 })

	publisher := services.NewRedisPublisher(rdb, zap.NewNop())
	msg := &models.Message{
		ID:             7,
		Content:        "hello",
		Role:           models.RoleUser,
		Timestamp:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		ConversationID: uuid.New(),
	}
	publisher.PublishMessage(context.Background(), 42, msg)

	for _, client := range []*websocket.Conn{first, second} {
		client.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := client.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var envelope struct {
			Type    string         `json:"type"`
			Payload models.Message `json:"payload"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
		if envelope.Type != models.EventMessageCreated {
			t.Errorf("expected %q, got %q", models.EventMessageCreated, envelope.Type)
		}
		if envelope.Payload.ID != 7 || envelope.Payload.Content != "hello" || envelope.Payload.ConversationID != msg.ConversationID {
			t.Errorf("unexpected payload %+v", envelope.Payload)
		}
	}

	// The subscription outlives the first socket and ends with the last.
	first.Close()
	waitFor(t, func() bool { return hub.connectionCount(42) == 1 })
	if len(mr.PubSubChannels(channel)) != 1 {
		t.Errorf("subscription dropped while a socket is still open")
	}

	second.Close()
	waitFor(t, func() bool { return hub.connectionCount(42) == 0 })
	waitFor(t, func() bool { return len(mr.PubSubChannels("")) == 0 })
}
