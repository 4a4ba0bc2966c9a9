package realtime

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"time"

	"github.com/blogify/notifier/internal/auth"
	"github.com/blogify/notifier/internal/logger"
	"github.com/blogify/notifier/internal/util"
	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UnreadCounter supplies the badge count sent when a tab connects.
type UnreadCounter interface {
	UnreadCount(ctx context.Context, userID string) (int64, error)
}

// Handler upgrades authenticated requests to live connections.
type Handler struct {
	hub            *Hub
	auth           *auth.Service
	counter        UnreadCounter
	originPatterns []string
}

// NewHandler creates a handler. An empty originPatterns list accepts any
// origin, which is only suitable for development.
func NewHandler(hub *Hub, authService *auth.Service, counter UnreadCounter, originPatterns []string) *Handler {
	return &Handler{hub: hub, auth: authService, counter: counter, originPatterns: originPatterns}
}

// HandleWebSocket authenticates with ?token=... or an Authorization header,
// then blocks for the life of the connection.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	user, err := h.auth.ValidateToken(c.Request.Context(), auth.TokenFromRequest(c.Request))
	if err != nil {
		util.RespondError(c, err)
		return
	}

	conn, err := websocket.Accept(newUpgradeWriter(c.Writer), c.Request, &websocket.AcceptOptions{
		OriginPatterns:     h.originPatterns,
		InsecureSkipVerify: len(h.originPatterns) == 0,
	})
	if err != nil {
		logger.Log.Warn("WebSocket upgrade failed", logger.WithUserID(user.ID), zap.Error(err))
		return
	}

	client := NewClient(h.hub, conn, user.ID)
	client.RemoteAddr = c.ClientIP()

	if err := client.write(NewMessage(MessageTypeSystem, SystemPayload{
		Event: "connected",
		Data: map[string]interface{}{
			"user_id":     user.ID,
			"server_time": time.Now().UTC().UnixMilli(),
		},
	})); err != nil {
		logger.Log.Debug("Live welcome write failed", logger.WithUserID(user.ID), zap.Error(err))
	}
	if h.counter != nil {
		count, err := h.counter.UnreadCount(c.Request.Context(), user.ID)
		if err != nil {
			logger.Log.Debug("Unread count lookup failed", logger.WithUserID(user.ID), zap.Error(err))
		} else if err := client.write(NewMessage(MessageTypeNotificationCount, NotificationCountPayload{UnreadCount: count})); err != nil {
			logger.Log.Debug("Live count write failed", logger.WithUserID(user.ID), zap.Error(err))
		}
	}

	h.hub.Register(client)
	go client.WritePump()
	client.ReadPump()
}

// HandleStats reports hub counters.
func (h *Handler) HandleStats(c *gin.Context) {
	c.JSON(200, gin.H{"websocket": h.hub.Snapshot()})
}

// upgradeWriter sends the 101 straight to the net/http writer beneath gin
// and hijacks through gin, so gin marks the response as taken and never
// writes a header of its own. Passing gin's writer to Accept directly fails:
// Accept flushes the header via WriteHeaderNow and gin then refuses Hijack.
type upgradeWriter struct {
	http.ResponseWriter
	gw gin.ResponseWriter
}

func newUpgradeWriter(w gin.ResponseWriter) http.ResponseWriter {
	u, ok := w.(interface{ Unwrap() http.ResponseWriter })
	if !ok {
		return w
	}
	return upgradeWriter{ResponseWriter: u.Unwrap(), gw: w}
}

func (w upgradeWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return w.gw.Hijack()
}
