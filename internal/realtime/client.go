package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/blogify/notifier/internal/logger"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBufferSize = 64
)

// Client is one WebSocket connection belonging to UserID.
type Client struct {
	conn *websocket.Conn
	hub  *Hub

	UserID      string
	ConnectedAt time.Time
	RemoteAddr  string

	// send is owned by the hub, which closes it on unregister
	send chan []byte

	limiter *RateLimiter

	ctx    context.Context
	cancel context.CancelFunc
}

// RateLimiter is a token bucket.
type RateLimiter struct {
	tokens    float64
	maxTokens float64
	refill    float64
	lastTime  time.Time
	mu        sync.Mutex
}

func NewRateLimiter(maxPerSecond int, burst int) *RateLimiter {
	return &RateLimiter{
		tokens:    float64(burst),
		maxTokens: float64(burst),
		refill:    float64(maxPerSecond),
		lastTime:  time.Now(),
	}
}

// Allow consumes a token if one is available
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.tokens += now.Sub(r.lastTime).Seconds() * r.refill
	r.lastTime = now
	if r.tokens > r.maxTokens {
		r.tokens = r.maxTokens
	}
	if r.tokens >= 1 {
		r.tokens--
		return true
	}
	return false
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		hub:         hub,
		conn:        conn,
		UserID:      userID,
		ConnectedAt: time.Now(),
		send:        make(chan []byte, sendBufferSize),
		limiter:     NewRateLimiter(hub.rateLimit.MaxMessagesPerSecond, hub.rateLimit.BurstSize),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// write sends one frame directly; the connection allows concurrent writers.
func (c *Client) write(m *Message) error {
	ctx, cancel := context.WithTimeout(c.ctx, writeWait)
	defer cancel()
	return wsjson.Write(ctx, c.conn, m)
}

// ReadPump reads inbound frames until the peer goes away. Only ping frames
// are meaningful; the channel is otherwise server-to-client.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.cancel()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		readCtx, readCancel := context.WithTimeout(c.ctx, pongWait)
		_, data, err := c.conn.Read(readCtx)
		readCancel()
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && c.ctx.Err() == nil {
				logger.Log.Debug("Live read ended", logger.WithUserID(c.UserID), zap.Error(err))
			}
			return
		}

		if !c.limiter.Allow() {
			_ = c.write(NewErrorMessage("rate_limited", "Too many messages, please slow down"))
			continue
		}

		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			_ = c.write(NewErrorMessage("invalid_json", "Failed to parse message"))
			continue
		}
		c.handleMessage(&message)
	}
}

func (c *Client) handleMessage(message *Message) {
	switch message.Type {
	case MessageTypePing, "heartbeat":
		var ping PingPayload
		_ = message.ParsePayload(&ping)
		now := time.Now().UnixMilli()
		pong := NewMessage(MessageTypePong, PongPayload{
			ClientTime: ping.ClientTime,
			ServerTime: now,
			Latency:    now - ping.ClientTime,
		})
		pong.ReplyTo = message.ID
		_ = c.write(pong)
	default:
		_ = c.write(NewErrorMessage("unknown_type", "Unknown message type: "+message.Type))
	}
}

// WritePump drains the hub's queue to the socket and keeps the connection
// alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.cancel()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.Close(websocket.StatusGoingAway, "closing")
			return

		case data, ok := <-c.send:
			if !ok {
				c.conn.Close(websocket.StatusNormalClosure, "closing")
				return
			}
			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Log.Debug("Live write failed", logger.WithUserID(c.UserID), zap.Error(err))
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
