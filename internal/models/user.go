package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tier is a per-owner audience setting for likes or comments.
type Tier string

const (
	TierEveryone  Tier = "everyone"
	TierFollowers Tier = "followers"
	TierFollowing Tier = "following"
)

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierEveryone, TierFollowers, TierFollowing:
		return true
	}
	return false
}

// User is an account as the notification engine sees it
type User struct {
	ID              string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	DisplayName     string `gorm:"not null" json:"display_name"`
	Email           string `gorm:"index" json:"email"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`

	// Who may like / comment on this user's blogs
	LikePermission    Tier `gorm:"type:varchar(16);not null;default:everyone" json:"like_permission"`
	CommentPermission Tier `gorm:"type:varchar(16);not null;default:everyone" json:"comment_permission"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Follow is one directed edge: FollowerID follows FolloweeID.
// The same row puts the follower in the followee's followers set and the
// followee in the follower's following set.
type Follow struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	FollowerID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_follows_pair,priority:1" json:"follower_id"`
	FolloweeID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_follows_pair,priority:2;index" json:"followee_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// PushSubscription is the single Web Push endpoint registered for a user.
type PushSubscription struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"user_id"`
	Endpoint  string    `gorm:"type:text;not null" json:"endpoint"`
	P256dh    string    `gorm:"type:text;not null" json:"p256dh"`
	Auth      string    `gorm:"type:text;not null" json:"auth"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = generateUUID()
	}
	if u.LikePermission == "" {
		u.LikePermission = TierEveryone
	}
	if u.CommentPermission == "" {
		u.CommentPermission = TierEveryone
	}
	return nil
}

func (f *Follow) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = generateUUID()
	}
	return nil
}

func (s *PushSubscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = generateUUID()
	}
	return nil
}

func generateUUID() string {
	return uuid.New().String()
}
