// Package content is the engine's view of blogs and comments: reads by id
// plus the like and comment mutations that are permission gated.
package content

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Blog struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id" bson:"_id"`
	AuthorID   string    `gorm:"type:varchar(36);not null;index" json:"author_id" bson:"author_id"`
	Title      string    `gorm:"not null" json:"title" bson:"title"`
	Body       string    `gorm:"type:text" json:"body" bson:"body"`
	CoverImage string    `json:"cover_image,omitempty" bson:"cover_image,omitempty"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" bson:"updated_at"`
}

type Comment struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id" bson:"_id"`
	BlogID    string    `gorm:"type:varchar(36);not null;index" json:"blog_id" bson:"blog_id"`
	AuthorID  string    `gorm:"type:varchar(36);not null" json:"author_id" bson:"author_id"`
	Content   string    `gorm:"type:text;not null" json:"content" bson:"content"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// BlogLike is one user's like on one blog.
type BlogLike struct {
	BlogID    string    `gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time
}

// CommentLike is one user's like on one comment.
type CommentLike struct {
	CommentID string    `gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time
}

func (b *Blog) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}
