package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chatllm-backend/internal/middleware"
	"chatllm-backend/internal/services"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// conn serializes writes; gorilla connections allow one concurrent writer.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Hub fans a user's message events out to that user's open sockets. With a
// nil redis client it accepts sockets but has nothing to deliver.
type Hub struct {
	mu          sync.RWMutex
	connections map[int64][]*conn
	cancelFuncs map[int64]context.CancelFunc
	redisClient *redis.Client
	sessions    middleware.SessionResolver
	logger      *zap.Logger
}

func NewHub(redisClient *redis.Client, sessions middleware.SessionResolver, logger *zap.Logger) *Hub {
	return &Hub{
		connections: make(map[int64][]*conn),
		cancelFuncs: make(map[int64]context.CancelFunc),
		redisClient: redisClient,
		sessions:    sessions,
		logger:      logger,
	}
}

// HandleWebSocket authenticates the token query parameter and upgrades.
// Browsers cannot set headers on a websocket handshake.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.sessions.ResolveSession(r.Context(), tokenStr)
	if err != nil {
		if errors.Is(err, middleware.ErrUnauthenticated) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		h.logger.Error("websocket session lookup failed", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &conn{ws: ws}
	h.registerConnection(user.ID, c)

	// Drain reads until the client goes away.
	go func() {
		defer h.unregisterConnection(user.ID, c)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) registerConnection(userID int64, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[userID] = append(h.connections[userID], c)

	// First connection for this user opens the subscription.
	if len(h.connections[userID]) == 1 && h.redisClient != nil {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[userID] = cancel
		go h.subscribe(ctx, userID)
	}

	h.logger.Info("websocket connected",
		zap.Int64("user_id", userID),
		zap.Int("connections", len(h.connections[userID])))
}

func (h *Hub) unregisterConnection(userID int64, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.ws.Close()

	conns := h.connections[userID]
	for i, existing := range conns {
		if existing == c {
			h.connections[userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	if len(h.connections[userID]) == 0 {
		delete(h.connections, userID)
		if cancel, ok := h.cancelFuncs[userID]; ok {
			cancel()
			delete(h.cancelFuncs, userID)
		}
	}

	h.logger.Info("websocket disconnected", zap.Int64("user_id", userID))
}

func (h *Hub) subscribe(ctx context.Context, userID int64) {
	pubsub := h.redisClient.Subscribe(ctx, services.UserChannel(userID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(userID, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(userID int64, data []byte) {
	h.mu.RLock()
	conns := append([]*conn(nil), h.connections[userID]...)
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.write(data); err != nil {
			h.logger.Debug("websocket write failed", zap.Int64("user_id", userID), zap.Error(err))
		}
	}
}

func (h *Hub) connectionCount(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID])
}
