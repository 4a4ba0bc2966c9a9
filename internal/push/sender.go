package push

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/blogify/notifier/internal/models"
)

// Sender performs one encrypted send and reports the push service's status.
// A status of 0 means no response was received.
type Sender interface {
	Send(ctx context.Context, sub *models.PushSubscription, body []byte) (int, error)
}

// VAPIDConfig is the application server identity and send options.
type VAPIDConfig struct {
	PublicKey  string
	PrivateKey string
	Subject    string // mailto: address or https URL
	TTL        int    // seconds the push service may hold the message
	Urgency    string // very-low | low | normal | high
}

// WebPushSender sends VAPID-signed, aes128gcm-encrypted messages.
type WebPushSender struct {
	cfg    VAPIDConfig
	client *http.Client
}

func NewWebPushSender(cfg VAPIDConfig, client *http.Client) *WebPushSender {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.Urgency == "" {
		cfg.Urgency = string(webpush.UrgencyNormal)
	}
	return &WebPushSender{cfg: cfg, client: client}
}

// PublicKey is what browsers pass as applicationServerKey.
func (s *WebPushSender) PublicKey() string {
	return s.cfg.PublicKey
}

func (s *WebPushSender) Send(ctx context.Context, sub *models.PushSubscription, body []byte) (int, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, body,
		&webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				Auth:   sub.Auth,
				P256dh: sub.P256dh,
			},
		},
		&webpush.Options{
			HTTPClient: s.client,
			// the library adds the mailto: scheme itself
			Subscriber:      strings.TrimPrefix(s.cfg.Subject, "mailto:"),
			TTL:             s.cfg.TTL,
			Urgency:         webpush.Urgency(s.cfg.Urgency),
			VAPIDPublicKey:  s.cfg.PublicKey,
			VAPIDPrivateKey: s.cfg.PrivateKey,
		},
	)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return resp.StatusCode, err
		}
		return 0, fmt.Errorf("send web push: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, nil
}

// GenerateVAPIDKeys returns a new (public, private) key pair, base64url encoded.
func GenerateVAPIDKeys() (string, string, error) {
	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return "", "", fmt.Errorf("generate VAPID keys: %w", err)
	}
	return publicKey, privateKey, nil
}
