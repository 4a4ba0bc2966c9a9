// Package realtime pushes notifications to a user's open browser tabs over
// WebSocket. Delivery is best-effort and nothing is persisted here.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/blogify/notifier/internal/logger"
	"github.com/blogify/notifier/internal/metrics"
	"github.com/blogify/notifier/internal/models"
	"go.uber.org/zap"
)

// Hub tracks connected clients per user and routes messages to them.
type Hub struct {
	clients map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	unicast    chan *unicastMessage

	mu sync.RWMutex

	stats Stats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	rateLimit RateLimitConfig
}

// Stats counts hub activity.
type Stats struct {
	TotalConnections   atomic.Int64
	ActiveConnections  atomic.Int64
	MessagesSent       atomic.Int64
	MessagesDropped    atomic.Int64
	ConnectionsDropped atomic.Int64
}

// RateLimitConfig bounds inbound frames per client.
type RateLimitConfig struct {
	MaxMessagesPerSecond int
	BurstSize            int
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{MaxMessagesPerSecond: 5, BurstSize: 10}
}

type unicastMessage struct {
	userID  string
	message *Message
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		unicast:    make(chan *unicastMessage, 1024),
		ctx:        ctx,
		cancel:     cancel,
		rateLimit:  DefaultRateLimitConfig(),
	}
}

// Run is the hub's event loop. It returns after Shutdown.
func (h *Hub) Run() {
	h.wg.Add(1)
	defer h.wg.Done()

	for {
		select {
		case <-h.ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case m := <-h.unicast:
			h.sendToUser(m.userID, m.message)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.UserID] == nil {
		h.clients[client.UserID] = make(map[*Client]struct{})
	}
	h.clients[client.UserID][client] = struct{}{}

	h.stats.TotalConnections.Add(1)
	h.stats.ActiveConnections.Add(1)
	metrics.Get().WebSocketConnections.Inc()

	logger.Log.Debug("Live client connected",
		logger.WithUserID(client.UserID),
		zap.Int64("active", h.stats.ActiveConnections.Load()),
	)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.clients, client.UserID)
	}
	close(client.send)

	h.stats.ActiveConnections.Add(-1)
	metrics.Get().WebSocketConnections.Dec()

	logger.Log.Debug("Live client disconnected",
		logger.WithUserID(client.UserID),
		zap.Int64("active", h.stats.ActiveConnections.Load()),
	)
}

func (h *Hub) sendToUser(userID string, message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := h.clients[userID]
	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		logger.Log.Error("Failed to marshal live message", zap.String("type", message.Type), zap.Error(err))
		return
	}

	for client := range clients {
		select {
		case client.send <- data:
			h.stats.MessagesSent.Add(1)
		default:
			// slow reader; drop the connection rather than block the hub
			h.stats.ConnectionsDropped.Add(1)
			go h.Unregister(client)
		}
	}
}

// SendToUser queues message for every connection userID has open. It never
// blocks: when the hub is saturated the message is dropped.
func (h *Hub) SendToUser(userID string, message *Message) {
	select {
	case h.unicast <- &unicastMessage{userID: userID, message: message}:
	case <-h.ctx.Done():
	default:
		h.stats.MessagesDropped.Add(1)
		logger.Log.Warn("Live message dropped", logger.WithUserID(userID), zap.String("type", message.Type))
	}
}

// SendNotification shows a freshly persisted notification to its recipient.
func (h *Hub) SendNotification(userID string, n *models.Notification) {
	h.SendToUser(userID, NewMessage(MessageTypeNotification, notificationPayload(n)))
}

// SendUnreadCount refreshes the recipient's badge.
func (h *Hub) SendUnreadCount(userID string, count int64) {
	h.SendToUser(userID, NewMessage(MessageTypeNotificationCount, NotificationCountPayload{UnreadCount: count}))
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// IsUserOnline reports whether userID has any open connection
func (h *Hub) IsUserOnline(userID string) bool {
	return h.ConnectionCount(userID) > 0
}

func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	TotalConnections   int64 `json:"total_connections"`
	ActiveConnections  int64 `json:"active_connections"`
	MessagesSent       int64 `json:"messages_sent"`
	MessagesDropped    int64 `json:"messages_dropped"`
	ConnectionsDropped int64 `json:"connections_dropped"`
}

func (h *Hub) Snapshot() Snapshot {
	return Snapshot{
		TotalConnections:   h.stats.TotalConnections.Load(),
		ActiveConnections:  h.stats.ActiveConnections.Load(),
		MessagesSent:       h.stats.MessagesSent.Load(),
		MessagesDropped:    h.stats.MessagesDropped.Load(),
		ConnectionsDropped: h.stats.ConnectionsDropped.Load(),
	}
}

func (s Snapshot) String() string {
	return fmt.Sprintf("connections=%d/%d sent=%d dropped=%d/%d",
		s.ActiveConnections, s.TotalConnections, s.MessagesSent, s.MessagesDropped, s.ConnectionsDropped)
}

// Shutdown stops the loop and closes every connection.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Log.Info("Live hub stopped", zap.String("stats", h.Snapshot().String()))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, _ := json.Marshal(NewMessage(MessageTypeSystem, SystemPayload{Event: "server_shutdown"}))
	for _, clients := range h.clients {
		for client := range clients {
			select {
			case client.send <- data:
			default:
			}
			close(client.send)
			metrics.Get().WebSocketConnections.Dec()
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.stats.ActiveConnections.Store(0)
}
