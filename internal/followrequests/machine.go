// Package followrequests runs the follow-request approval lifecycle:
// PENDING moves once to ACCEPTED or REJECTED, and acceptance creates the
// follow edge in the same transaction.
package followrequests

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/blogify/notifier/internal/cache"
	"github.com/blogify/notifier/internal/errors"
	"github.com/blogify/notifier/internal/logger"
	"github.com/blogify/notifier/internal/metrics"
	"github.com/blogify/notifier/internal/models"
	"github.com/blogify/notifier/internal/notifications"
	"github.com/blogify/notifier/internal/push"
	"github.com/blogify/notifier/internal/relationships"
	"github.com/blogify/notifier/internal/telemetry"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Announcer delivers an already persisted notification to its recipient.
type Announcer interface {
	Announce(ctx context.Context, n *models.Notification, payload push.Payload)
}

// Machine owns every write to FOLLOW_REQUEST rows and to the follow graph.
type Machine struct {
	db           *gorm.DB
	users        *relationships.Store
	repo         *notifications.Repository
	locker       cache.Locker
	announcer    Announcer
	storeTimeout time.Duration
}

func NewMachine(db *gorm.DB, locker cache.Locker, storeTimeout time.Duration) *Machine {
	return &Machine{
		db:           db,
		users:        relationships.NewStore(db),
		repo:         notifications.NewRepository(db),
		locker:       locker,
		storeTimeout: storeTimeout,
	}
}

// SetAnnouncer wires delivery of new requests.
func (m *Machine) SetAnnouncer(a Announcer) {
	m.announcer = a
}

func (m *Machine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.storeTimeout)
}

// Request asks recipientID to approve senderID as a follower.
func (m *Machine) Request(ctx context.Context, senderID, recipientID string) (*models.Notification, error) {
	if senderID == recipientID {
		return nil, errors.SelfFollow()
	}

	ctx, span := telemetry.StartSpan(ctx, "followrequests.request", "sender_id", senderID, "recipient_id", recipientID)
	defer span.End()

	n, sender, err := m.request(ctx, senderID, recipientID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	metrics.Get().FollowRequestsTotal.WithLabelValues(string(models.FollowRequestPending)).Inc()
	metrics.Get().NotificationsCreated.WithLabelValues(string(n.Type)).Inc()
	logger.Log.Info("Follow request created",
		logger.WithNotificationID(n.ID),
		zap.String("sender_id", senderID),
		zap.String("recipient_id", recipientID),
	)

	if m.announcer != nil {
		m.announcer.Announce(ctx, n, RequestPayload(n, sender))
	}
	return n, nil
}

func (m *Machine) request(ctx context.Context, senderID, recipientID string) (*models.Notification, *models.User, error) {
	storeCtx, cancel := m.withTimeout(ctx)
	defer cancel()

	sender, err := m.users.GetUser(storeCtx, senderID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := m.users.GetUser(storeCtx, recipientID); err != nil {
		return nil, nil, err
	}

	unlock, err := m.locker.Lock(ctx, cache.FollowKey(senderID, recipientID))
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	following, err := m.users.IsFollowing(storeCtx, senderID, recipientID)
	if err != nil {
		return nil, nil, err
	}
	if following {
		return nil, nil, errors.AlreadyFollowing()
	}

	n := &models.Notification{
		SenderID:    senderID,
		RecipientID: recipientID,
		Message:     fmt.Sprintf("%s wants to follow you", sender.DisplayName),
	}
	if err := m.repo.CreatePendingRequest(storeCtx, n); err != nil {
		return nil, nil, err
	}
	return n, sender, nil
}

// RequestPayload is the push payload announcing a new follow request.
func RequestPayload(n *models.Notification, sender *models.User) push.Payload {
	return push.Payload{
		Title:     "Follow Request",
		Body:      n.Message,
		URL:       "/profile/" + sender.ID,
		Image:     sender.ProfileImageURL,
		Timestamp: n.CreatedAt.UnixMilli(),
	}
}

// Accept approves a pending request addressed to actorID and adds the edge.
func (m *Machine) Accept(ctx context.Context, notificationID, actorID string) (*models.Notification, error) {
	return m.decide(ctx, notificationID, actorID, models.StatusAccepted)
}

// Reject declines a pending request addressed to actorID.
func (m *Machine) Reject(ctx context.Context, notificationID, actorID string) (*models.Notification, error) {
	return m.decide(ctx, notificationID, actorID, models.StatusRejected)
}

// errLostRace rolls back a transaction whose compare-and-set matched nothing.
var errLostRace = stderrors.New("follow request is no longer pending")

func (m *Machine) decide(ctx context.Context, notificationID, actorID string, to models.NotificationStatus) (*models.Notification, error) {
	ctx, span := telemetry.StartSpan(ctx, "followrequests.decide", "notification_id", notificationID, "state", string(to))
	defer span.End()

	storeCtx, cancel := m.withTimeout(ctx)
	defer cancel()

	n, err := m.pendingFor(storeCtx, notificationID, actorID)
	if err != nil {
		return nil, err
	}

	unlock, err := m.locker.Lock(ctx, cache.FollowKey(n.SenderID, n.RecipientID))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer unlock()

	err = m.db.WithContext(storeCtx).Transaction(func(tx *gorm.DB) error {
		ok, err := m.repo.WithTx(tx).TransitionRequest(storeCtx, n.ID, actorID, to)
		if err != nil {
			return err
		}
		if !ok {
			return errLostRace
		}
		if to == models.StatusAccepted {
			return m.users.WithTx(tx).AddEdge(storeCtx, n.SenderID, n.RecipientID)
		}
		return nil
	})
	if stderrors.Is(err, errLostRace) {
		return nil, errors.NotFound("follow request")
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("%s follow request: %w", to, err)
	}

	n.Status = to
	n.IsRead = true
	metrics.Get().FollowRequestsTotal.WithLabelValues(string(to)).Inc()
	logger.Log.Info("Follow request decided",
		logger.WithNotificationID(n.ID),
		zap.String("state", string(to)),
		zap.String("sender_id", n.SenderID),
		zap.String("recipient_id", n.RecipientID),
	)
	return n, nil
}

// pendingFor loads a request only if actorID may decide it; anything else is NotFound.
func (m *Machine) pendingFor(ctx context.Context, notificationID, actorID string) (*models.Notification, error) {
	n, err := m.repo.Get(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	state, ok := n.FollowRequestState()
	if !ok || state != models.FollowRequestPending || n.RecipientID != actorID {
		return nil, errors.NotFound("follow request")
	}
	return n, nil
}

// Cancel lets the sender withdraw their own pending request.
func (m *Machine) Cancel(ctx context.Context, notificationID, actorID string) error {
	storeCtx, cancel := m.withTimeout(ctx)
	defer cancel()

	n, err := m.repo.Get(storeCtx, notificationID)
	if err != nil {
		return err
	}
	state, ok := n.FollowRequestState()
	if !ok || state != models.FollowRequestPending || n.SenderID != actorID {
		return errors.NotFound("follow request")
	}

	unlock, err := m.locker.Lock(ctx, cache.FollowKey(n.SenderID, n.RecipientID))
	if err != nil {
		return err
	}
	defer unlock()

	deleted, err := m.repo.DeletePending(storeCtx, n.SenderID, n.RecipientID)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return errors.NotFound("follow request")
	}
	metrics.Get().FollowRequestsTotal.WithLabelValues("CANCELLED").Inc()
	return nil
}

// Unfollow removes followerID→followeeID and any request still pending
// between them. It is idempotent.
func (m *Machine) Unfollow(ctx context.Context, followerID, followeeID string) error {
	if followerID == followeeID {
		return errors.SelfFollow()
	}

	storeCtx, cancel := m.withTimeout(ctx)
	defer cancel()

	unlock, err := m.locker.Lock(ctx, cache.FollowKey(followerID, followeeID))
	if err != nil {
		return err
	}
	defer unlock()

	err = m.db.WithContext(storeCtx).Transaction(func(tx *gorm.DB) error {
		if _, err := m.repo.WithTx(tx).DeletePending(storeCtx, followerID, followeeID); err != nil {
			return err
		}
		return m.users.WithTx(tx).RemoveEdge(storeCtx, followerID, followeeID)
	})
	if err != nil {
		return fmt.Errorf("unfollow: %w", err)
	}
	return nil
}

// MarkRead acknowledges any notification addressed to actorID.
func (m *Machine) MarkRead(ctx context.Context, notificationID, actorID string) (*models.Notification, error) {
	storeCtx, cancel := m.withTimeout(ctx)
	defer cancel()

	ok, err := m.repo.MarkRead(storeCtx, notificationID, actorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NotFound("notification")
	}
	return m.repo.Get(storeCtx, notificationID)
}

// PendingFor lists incoming requests still awaiting a decision.
func (m *Machine) PendingFor(ctx context.Context, recipientID string) ([]models.Notification, error) {
	storeCtx, cancel := m.withTimeout(ctx)
	defer cancel()
	return m.repo.PendingFor(storeCtx, recipientID)
}
