// Package notifications persists notification rows and answers the
// recipient-facing queries.
package notifications

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/blogify/notifier/internal/errors"
	"github.com/blogify/notifier/internal/models"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Repository is the gorm-backed notification store
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a Repository bound to an open transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create inserts one notification. Invariant violations come back as APIErrors.
func (r *Repository) Create(ctx context.Context, n *models.Notification) error {
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		if _, ok := errors.AsAPIError(err); ok {
			return err
		}
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// CreatePendingRequest inserts a PENDING follow request. The partial unique
// index turns a second pending row for the same pair into DuplicateRequest.
func (r *Repository) CreatePendingRequest(ctx context.Context, n *models.Notification) error {
	n.Type = models.NotificationFollowRequest
	n.Status = models.StatusPending
	n.IsRead = false
	err := r.Create(ctx, n)
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.DuplicateRequest()
	}
	return err
}

// Get returns NotFound when the row does not exist.
func (r *Repository) Get(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	err := r.db.WithContext(ctx).First(&n, "id = ?", id).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFound("notification")
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return &n, nil
}

// updates skips model hooks: the rows are validated on insert and these
// statements only move them along their own lifecycle.
func (r *Repository) updates(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Session(&gorm.Session{SkipHooks: true}).Model(&models.Notification{})
}

// TransitionRequest moves a PENDING follow request addressed to recipientID
// to status and marks it read. It returns false when no row matched.
func (r *Repository) TransitionRequest(ctx context.Context, id, recipientID string, status models.NotificationStatus) (bool, error) {
	res := r.updates(ctx).
		Where("id = ? AND recipient_id = ? AND type = ? AND status = ?",
			id, recipientID, models.NotificationFollowRequest, models.StatusPending).
		Updates(map[string]any{"status": status, "is_read": true})
	if res.Error != nil {
		return false, fmt.Errorf("transition follow request: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// MarkRead acknowledges a notification for its recipient. Follow requests
// only get is_read; their status is left for accept and reject.
func (r *Repository) MarkRead(ctx context.Context, id, recipientID string) (bool, error) {
	res := r.updates(ctx).
		Where("id = ? AND recipient_id = ? AND type = ?", id, recipientID, models.NotificationFollowRequest).
		Update("is_read", true)
	if res.Error != nil {
		return false, fmt.Errorf("mark follow request read: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	res = r.updates(ctx).
		Where("id = ? AND recipient_id = ? AND type <> ?", id, recipientID, models.NotificationFollowRequest).
		Updates(map[string]any{"status": models.StatusRead, "is_read": true})
	if res.Error != nil {
		return false, fmt.Errorf("mark notification read: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// DeletePending removes any PENDING follow request sender→recipient.
func (r *Repository) DeletePending(ctx context.Context, senderID, recipientID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("sender_id = ? AND recipient_id = ? AND type = ? AND status = ?",
			senderID, recipientID, models.NotificationFollowRequest, models.StatusPending).
		Delete(&models.Notification{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete pending follow request: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ListForRecipient returns a page of notifications, newest first.
func (r *Repository) ListForRecipient(ctx context.Context, recipientID string, limit, offset int) ([]models.Notification, error) {
	limit, offset = clampPage(limit, offset)
	var out []models.Notification
	err := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

// UnreadCount counts rows that are still PENDING and unread.
func (r *Repository) UnreadCount(ctx context.Context, recipientID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND status = ? AND is_read = ?", recipientID, models.StatusPending, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// PendingFor lists incoming follow requests still awaiting a decision.
func (r *Repository) PendingFor(ctx context.Context, recipientID string) ([]models.Notification, error) {
	var out []models.Notification
	err := r.db.WithContext(ctx).
		Where("recipient_id = ? AND type = ? AND status = ?", recipientID, models.NotificationFollowRequest, models.StatusPending).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list pending follow requests: %w", err)
	}
	return out, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
