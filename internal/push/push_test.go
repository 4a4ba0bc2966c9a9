package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blogify/notifier/internal/database"
	"github.com/blogify/notifier/internal/errors"
	"github.com/blogify/notifier/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return NewRegistry(db)
}

func validInput(endpoint string) SubscriptionInput {
	return SubscriptionInput{
		Endpoint: endpoint,
		Keys:     SubscriptionKeys{P256dh: "BNcRdreALRFXTkOOUHK1EtK2wtaz5Ry4YfYCA_0QTpQtUbVlUls0VJXg7A8u-Ts1XbjhazAkj7I99e8QcYP7DkM", Auth: "tBHItJI5svbpez7KI4CCXg"},
	}
}

// fakeSender answers with a scripted status sequence.
type fakeSender struct {
	mu       sync.Mutex
	statuses []int
	err      error
	calls    int
	bodies   [][]byte
}

func (f *fakeSender) Send(_ context.Context, _ *models.PushSubscription, body []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies = append(f.bodies, body)
	status := 201
	if f.calls < len(f.statuses) {
		status = f.statuses[f.calls]
	}
	f.calls++
	return status, f.err
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		err    error
		want   OutcomeKind
	}{
		{200, nil, Delivered},
		{201, nil, Delivered},
		{202, nil, Delivered},
		{404, nil, PermanentFailure},
		{410, nil, PermanentFailure},
		{410, stderrors.New("gone"), PermanentFailure},
		{400, nil, TransientFailure},
		{413, nil, TransientFailure},
		{429, nil, TransientFailure},
		{500, nil, TransientFailure},
		{503, nil, TransientFailure},
		{0, context.DeadlineExceeded, TransientFailure},
		{201, stderrors.New("read body"), TransientFailure},
	}
	for _, tt := range tests {
		got := Classify(tt.status, tt.err)
		assert.Equal(t, tt.want, got.Kind, "status %d err %v", tt.status, tt.err)
		if got.Kind != Delivered {
			assert.True(t, errors.IsCode(got.Err, errors.ErrDeliveryFailure))
		}
	}
}

func TestRegistrySubscribeValidates(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()

	cases := map[string]SubscriptionInput{
		"endpoint":    {Keys: SubscriptionKeys{P256dh: "p", Auth: "a"}},
		"keys.p256dh": {Endpoint: "https://push.example/x", Keys: SubscriptionKeys{Auth: "a"}},
		"keys.auth":   {Endpoint: "https://push.example/x", Keys: SubscriptionKeys{P256dh: "p"}},
	}
	for field, in := range cases {
		_, err := r.Subscribe(ctx, "u1", in)
		require.Error(t, err)
		assert.True(t, errors.HasReason(err, errors.ReasonInvalidSubscription), field)
		apiErr, _ := errors.AsAPIError(err)
		assert.Equal(t, field, apiErr.Field)
	}

	_, err := r.Subscribe(ctx, "u1", SubscriptionInput{Endpoint: "not a url", Keys: SubscriptionKeys{P256dh: "p", Auth: "a"}})
	assert.True(t, errors.HasReason(err, errors.ReasonInvalidSubscription))

	_, err = r.Get(ctx, "u1")
	assert.True(t, errors.IsCode(err, errors.ErrNotFound), "nothing stored on invalid input")
}

func TestRegistryUpsertAndForget(t *testing.T) {
	r := newRegistry(t)
	ctx := context.Background()

	_, err := r.Subscribe(ctx, "u1", validInput("https://push.example/old"))
	require.NoError(t, err)
	sub, err := r.Subscribe(ctx, "u1", validInput("https://push.example/new"))
	require.NoError(t, err)
	assert.Equal(t, "https://push.example/new", sub.Endpoint)

	var count int64
	require.NoError(t, r.db.Model(&models.PushSubscription{}).Where("user_id = ?", "u1").Count(&count).Error)
	assert.Equal(t, int64(1), count, "one subscription per user")

	removed, err := r.Forget(ctx, "u1", "https://push.example/old")
	require.NoError(t, err)
	assert.False(t, removed, "stale endpoint does not remove the fresh subscription")

	removed, err = r.Forget(ctx, "u1", "https://push.example/new")
	require.NoError(t, err)
	assert.True(t, removed)

	require.NoError(t, r.Unsubscribe(ctx, "u1"))
	require.NoError(t, r.Unsubscribe(ctx, "u1"))
}

func TestRegistrySubscribeRequiresUser(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Subscribe(context.Background(), "", validInput("https://push.example/x"))
	assert.True(t, errors.IsCode(err, errors.ErrUnauthorized))
}

func TestDeliverNoSubscription(t *testing.T) {
	sender := &fakeSender{}
	d := NewDeliverer(newRegistry(t), sender)

	out := d.Deliver(context.Background(), "nobody", Payload{Title: "t"})
	assert.Equal(t, Skipped, out.Kind)
	assert.Equal(t, ReasonNoSubscription, out.Reason)
	assert.Zero(t, sender.calls)
}

func TestDeliverGoneRemovesSubscription(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)
	sender := &fakeSender{statuses: []int{201, 410}}
	d := NewDeliverer(r, sender)

	_, err := r.Subscribe(ctx, "u1", validInput("https://push.example/x"))
	require.NoError(t, err)

	out := d.Deliver(ctx, "u1", Payload{Title: "Blog Liked", Body: "Ann liked: Go", URL: "/blog/1"})
	assert.Equal(t, Delivered, out.Kind)
	assert.JSONEq(t, `{"title":"Blog Liked","body":"Ann liked: Go","url":"/blog/1"}`, string(sender.bodies[0]))

	out = d.Deliver(ctx, "u1", Payload{Title: "again"})
	assert.Equal(t, PermanentFailure, out.Kind)
	assert.Equal(t, 410, out.StatusCode)

	_, err = r.Get(ctx, "u1")
	assert.True(t, errors.IsCode(err, errors.ErrNotFound))

	out = d.Deliver(ctx, "u1", Payload{Title: "third"})
	assert.Equal(t, Skipped, out.Kind)
	assert.Equal(t, 2, sender.calls)
}

func TestDeliverTransientKeepsSubscription(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t)
	_, err := r.Subscribe(ctx, "u1", validInput("https://push.example/x"))
	require.NoError(t, err)

	for _, sender := range []*fakeSender{
		{statuses: []int{500}},
		{statuses: []int{429}},
		{statuses: []int{0}, err: stderrors.New("connection refused")},
	} {
		out := NewDeliverer(r, sender).Deliver(ctx, "u1", Payload{Title: "t"})
		assert.Equal(t, TransientFailure, out.Kind)
		_, err := r.Get(ctx, "u1")
		assert.NoError(t, err)
	}
}

func newBrowserKeys(t *testing.T) (string, string) {
	t.Helper()
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(priv.PublicKey().Bytes()), base64.RawURLEncoding.EncodeToString(auth)
}

func TestWebPushSenderAgainstPushService(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "aes128gcm", r.Header.Get("Content-Encoding"))
		assert.Equal(t, "30", r.Header.Get("TTL"))
		assert.Equal(t, "high", r.Header.Get("Urgency"))
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "vapid t="), r.Header.Get("Authorization"))
		if n == 1 {
			w.WriteHeader(http.StatusCreated)
			return
		}
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	pub, priv, err := GenerateVAPIDKeys()
	require.NoError(t, err)
	sender := NewWebPushSender(VAPIDConfig{
		PublicKey:  pub,
		PrivateKey: priv,
		Subject:    "mailto:ops@blogify.local",
		TTL:        30,
		Urgency:    "high",
	}, srv.Client())
	assert.Equal(t, pub, sender.PublicKey())

	ctx := context.Background()
	r := newRegistry(t)
	p256dh, auth := newBrowserKeys(t)
	_, err = r.Subscribe(ctx, "u1", SubscriptionInput{Endpoint: srv.URL + "/push/abc", Keys: SubscriptionKeys{P256dh: p256dh, Auth: auth}})
	require.NoError(t, err)

	d := NewDeliverer(r, sender)
	assert.Equal(t, Delivered, d.Deliver(ctx, "u1", Payload{Title: "New Blog Post"}).Kind)
	assert.Equal(t, PermanentFailure, d.Deliver(ctx, "u1", Payload{Title: "New Blog Post"}).Kind)
	assert.Equal(t, Skipped, d.Deliver(ctx, "u1", Payload{Title: "New Blog Post"}).Kind)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestWebPushSenderNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	pub, priv, err := GenerateVAPIDKeys()
	require.NoError(t, err)
	p256dh, auth := newBrowserKeys(t)
	sender := NewWebPushSender(VAPIDConfig{PublicKey: pub, PrivateKey: priv, Subject: "ops@blogify.local", TTL: 60}, &http.Client{Timeout: time.Second})

	status, err := sender.Send(context.Background(), &models.PushSubscription{Endpoint: url + "/x", P256dh: p256dh, Auth: auth}, []byte(`{}`))
	assert.Error(t, err)
	assert.Zero(t, status)
	assert.Equal(t, TransientFailure, Classify(status, err).Kind)
}
