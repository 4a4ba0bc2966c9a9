package realtime

import (
	"encoding/json"
	"time"

	"github.com/blogify/notifier/internal/models"
)

// Message types
const (
	MessageTypeSystem            = "system"
	MessageTypePing              = "ping"
	MessageTypePong              = "pong"
	MessageTypeError             = "error"
	MessageTypeNotification      = "notification"
	MessageTypeNotificationCount = "notification_count"
)

// Message is the envelope for every frame in either direction.
type Message struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	ID        string      `json:"id,omitempty"`
	ReplyTo   string      `json:"reply_to,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType string, payload interface{}) *Message {
	return &Message{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// NewErrorMessage creates an error frame
func NewErrorMessage(code, message string) *Message {
	return NewMessage(MessageTypeError, ErrorPayload{Code: code, Message: message})
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PingPayload struct {
	ClientTime int64 `json:"client_time"`
}

type PongPayload struct {
	ClientTime int64 `json:"client_time"`
	ServerTime int64 `json:"server_time"`
	Latency    int64 `json:"latency_ms"`
}

type SystemPayload struct {
	Event   string                 `json:"event"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// NotificationPayload is a persisted notification as shown to its recipient.
type NotificationPayload struct {
	ID        string                    `json:"id"`
	Type      models.NotificationType   `json:"notification_type"`
	SenderID  string                    `json:"sender_id"`
	BlogID    *string                   `json:"blog_id,omitempty"`
	Message   string                    `json:"message"`
	Status    models.NotificationStatus `json:"status"`
	IsRead    bool                      `json:"is_read"`
	CreatedAt time.Time                 `json:"created_at"`
}

func notificationPayload(n *models.Notification) NotificationPayload {
	return NotificationPayload{
		ID:        n.ID,
		Type:      n.Type,
		SenderID:  n.SenderID,
		BlogID:    n.BlogID,
		Message:   n.Message,
		Status:    n.Status,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

type NotificationCountPayload struct {
	UnreadCount int64 `json:"unread_count"`
}

// ParsePayload unmarshals the payload into target
func (m *Message) ParsePayload(target interface{}) error {
	data, err := json.Marshal(m.Payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}
