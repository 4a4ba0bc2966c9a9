package models

import (
	"fmt"
	"time"

	"github.com/blogify/notifier/internal/errors"
	"gorm.io/gorm"
)

// NotificationType is the kind of event a notification records
type NotificationType string

const (
	NotificationFollowRequest NotificationType = "FOLLOW_REQUEST"
	NotificationNewBlog       NotificationType = "NEW_BLOG"
	NotificationLike          NotificationType = "LIKE"
	NotificationLikeComment   NotificationType = "LIKE_COMMENT"
	NotificationNewComment    NotificationType = "NEW_COMMENT"
)

// Valid reports whether t is a stored notification kind.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationFollowRequest, NotificationNewBlog, NotificationLike, NotificationLikeComment, NotificationNewComment:
		return true
	}
	return false
}

// NotificationStatus is the raw status column. Read it through
// FollowRequestState or AckState depending on Type.
type NotificationStatus string

const (
	StatusPending  NotificationStatus = "PENDING"
	StatusAccepted NotificationStatus = "ACCEPTED"
	StatusRejected NotificationStatus = "REJECTED"
	StatusRead     NotificationStatus = "READ"
)

// FollowRequestState is the lifecycle of a FOLLOW_REQUEST row.
type FollowRequestState string

const (
	FollowRequestPending  FollowRequestState = "PENDING"
	FollowRequestAccepted FollowRequestState = "ACCEPTED"
	FollowRequestRejected FollowRequestState = "REJECTED"
)

// AckState is the lifecycle of every other notification kind.
type AckState string

const (
	AckUnread AckState = "UNREAD"
	AckRead   AckState = "READ"
)

// Notification is one durable record addressed to a single recipient
type Notification struct {
	ID          string             `gorm:"primaryKey;type:varchar(36)" json:"id"`
	RecipientID string             `gorm:"type:varchar(36);not null;index:idx_notifications_recipient" json:"recipient_id"`
	SenderID    string             `gorm:"type:varchar(36);not null;index" json:"sender_id"`
	Type        NotificationType   `gorm:"type:varchar(32);not null" json:"type"`
	BlogID      *string            `gorm:"type:varchar(36)" json:"blog_id,omitempty"`
	Message     string             `gorm:"type:text;not null" json:"message"`
	Status      NotificationStatus `gorm:"type:varchar(16);not null;default:PENDING" json:"status"`
	IsRead      bool               `gorm:"not null;default:false" json:"is_read"`
	CreatedAt   time.Time          `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// IsFollowRequest reports whether the row follows the approval lifecycle.
func (n *Notification) IsFollowRequest() bool {
	return n.Type == NotificationFollowRequest
}

// FollowRequestState returns the request state; ok is false for other kinds
// or a status outside the request lifecycle.
func (n *Notification) FollowRequestState() (FollowRequestState, bool) {
	if !n.IsFollowRequest() {
		return "", false
	}
	switch n.Status {
	case StatusPending:
		return FollowRequestPending, true
	case StatusAccepted:
		return FollowRequestAccepted, true
	case StatusRejected:
		return FollowRequestRejected, true
	}
	return "", false
}

// AckState returns the read state; ok is false for follow requests or a
// status outside the acknowledge lifecycle.
func (n *Notification) AckState() (AckState, bool) {
	if n.IsFollowRequest() {
		return "", false
	}
	switch n.Status {
	case StatusPending:
		return AckUnread, true
	case StatusRead:
		return AckRead, true
	}
	return "", false
}

// BeforeCreate assigns the id
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = generateUUID()
	}
	return nil
}

// BeforeSave rejects rows that break the notification invariants.
func (n *Notification) BeforeSave(tx *gorm.DB) error {
	return n.Validate()
}

// Validate checks sender/recipient and the type/status combination.
func (n *Notification) Validate() error {
	if n.SenderID == "" || n.RecipientID == "" {
		return errors.ValidationError("recipient_id", "sender and recipient are required")
	}
	if n.SenderID == n.RecipientID {
		return errors.SelfNotify()
	}
	if !n.Type.Valid() {
		return errors.ValidationError("type", fmt.Sprintf("unknown notification type %q", n.Type))
	}
	if n.Status == "" {
		n.Status = StatusPending
	}
	var ok bool
	if n.IsFollowRequest() {
		_, ok = n.FollowRequestState()
	} else {
		_, ok = n.AckState()
	}
	if !ok {
		return errors.ValidationError("status", fmt.Sprintf("status %s is not valid for %s", n.Status, n.Type))
	}
	return nil
}
