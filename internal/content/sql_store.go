package content

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/blogify/notifier/internal/errors"
	"gorm.io/gorm"
)

// SQLStore keeps content in the same database as the notifications.
type SQLStore struct {
	db *gorm.DB
}

func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Migrate creates the content tables.
func (s *SQLStore) Migrate() error {
	if err := s.db.AutoMigrate(&Blog{}, &Comment{}, &BlogLike{}, &CommentLike{}); err != nil {
		return fmt.Errorf("failed to migrate content tables: %w", err)
	}
	return nil
}

func (s *SQLStore) GetBlog(ctx context.Context, id string) (*Blog, error) {
	var blog Blog
	err := s.db.WithContext(ctx).First(&blog, "id = ?", id).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFound("blog")
	}
	if err != nil {
		return nil, fmt.Errorf("get blog: %w", err)
	}
	return &blog, nil
}

func (s *SQLStore) GetComment(ctx context.Context, id string) (*Comment, error) {
	var comment Comment
	err := s.db.WithContext(ctx).First(&comment, "id = ?", id).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFound("comment")
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return &comment, nil
}

func (s *SQLStore) CreateBlog(ctx context.Context, blog *Blog) error {
	if err := s.db.WithContext(ctx).Create(blog).Error; err != nil {
		return fmt.Errorf("create blog: %w", err)
	}
	return nil
}

func (s *SQLStore) CreateComment(ctx context.Context, comment *Comment) error {
	if err := s.db.WithContext(ctx).Create(comment).Error; err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

func (s *SQLStore) ToggleBlogLike(ctx context.Context, blogID, userID string) (bool, error) {
	if _, err := s.GetBlog(ctx, blogID); err != nil {
		return false, err
	}
	return s.toggle(ctx, &BlogLike{BlogID: blogID, UserID: userID}, "blog_id = ? AND user_id = ?", blogID, userID)
}

func (s *SQLStore) ToggleCommentLike(ctx context.Context, commentID, userID string) (bool, error) {
	if _, err := s.GetComment(ctx, commentID); err != nil {
		return false, err
	}
	return s.toggle(ctx, &CommentLike{CommentID: commentID, UserID: userID}, "comment_id = ? AND user_id = ?", commentID, userID)
}

// toggle deletes the like row if present, otherwise inserts it, in one transaction.
func (s *SQLStore) toggle(ctx context.Context, row any, where string, args ...any) (bool, error) {
	var liked bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where(where, args...).Delete(row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			liked = false
			return nil
		}
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		liked = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("toggle like: %w", err)
	}
	return liked, nil
}

func (s *SQLStore) BlogLikers(ctx context.Context, blogID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&BlogLike{}).Where("blog_id = ?", blogID).Order("user_id").Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list blog likes: %w", err)
	}
	return ids, nil
}

func (s *SQLStore) CommentLikers(ctx context.Context, commentID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&CommentLike{}).Where("comment_id = ?", commentID).Order("user_id").Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list comment likes: %w", err)
	}
	return ids, nil
}
