package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"clipnotes-backend/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans streamed chat chunks out to every client watching a video.
// Connections are keyed by video ID; the first subscriber for a video
// opens the pub/sub subscription, the last one closing tears it down.
type Hub struct {
	mu          sync.RWMutex
	connections map[string][]*websocket.Conn
	redisClient *redis.Client
	cancelFuncs map[string]context.CancelFunc
}

func NewHub(redisClient *redis.Client) *Hub {
	return &Hub{
		connections: make(map[string][]*websocket.Conn),
		redisClient: redisClient,
		cancelFuncs: make(map[string]context.CancelFunc),
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	videoID, err := services.ExtractVideoID(r.URL.Query().Get("video"))
	if err != nil {
		http.Error(w, "Invalid video parameter", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	h.registerConnection(videoID, conn)

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(videoID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (h *Hub) registerConnection(videoID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[videoID] = append(h.connections[videoID], conn)

	if len(h.connections[videoID]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[videoID] = cancel
		go h.subscribeToPubSub(ctx, videoID)
	}

	log.Printf("WebSocket connected: video %s (total: %d)", videoID, len(h.connections[videoID]))
}

func (h *Hub) unregisterConnection(videoID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn.Close()

	conns := h.connections[videoID]
	for i, c := range conns {
		if c == conn {
			h.connections[videoID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	if len(h.connections[videoID]) == 0 {
		delete(h.connections, videoID)
		if cancel, ok := h.cancelFuncs[videoID]; ok {
			cancel()
			delete(h.cancelFuncs, videoID)
		}
	}

	log.Printf("WebSocket disconnected: video %s", videoID)
}

func (h *Hub) subscribeToPubSub(ctx context.Context, videoID string) {
	channel := "chat_stream:" + videoID
	pubsub := h.redisClient.Subscribe(ctx, channel)
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
			h.broadcast(videoID, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(videoID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conn := range h.connections[videoID] {
		conn.WriteMessage(websocket.TextMessage, data)
	}
}

// SendToVideo pushes a message to every watcher directly, bypassing Redis.
func (h *Hub) SendToVideo(videoID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.broadcast(videoID, data)
}
