// Package relationships reads users and the directed follow graph.
package relationships

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/blogify/notifier/internal/errors"
	"github.com/blogify/notifier/internal/models"
	"github.com/blogify/notifier/internal/permissions"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the Relationship Store backed by the users and follows tables.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx returns a Store bound to an open transaction.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{db: tx}
}

// GetUser returns NotFound when the user does not exist.
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	if id == "" {
		return nil, errors.NotFound("user")
	}
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFound("user")
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &user, nil
}

// CreateUser inserts a user; used by seeding and tests.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdatePermissions changes a user's like and comment tiers.
func (s *Store) UpdatePermissions(ctx context.Context, userID string, likes, comments models.Tier) error {
	if !likes.Valid() {
		return errors.ValidationError("like_permission", fmt.Sprintf("unknown tier %q", likes))
	}
	if !comments.Valid() {
		return errors.ValidationError("comment_permission", fmt.Sprintf("unknown tier %q", comments))
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		Updates(map[string]any{"like_permission": likes, "comment_permission": comments})
	if res.Error != nil {
		return fmt.Errorf("update permissions: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.NotFound("user")
	}
	return nil
}

// IsFollowing reports whether follower is in followee's followers set.
func (s *Store) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check follow edge: %w", err)
	}
	return count > 0, nil
}

// Followers returns the ids of users following userID.
func (s *Store) Followers(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("followee_id = ?", userID).
		Order("created_at ASC").
		Pluck("follower_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list followers: %w", err)
	}
	return ids, nil
}

// Following returns the ids of users that userID follows.
func (s *Store) Following(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ?", userID).
		Order("created_at ASC").
		Pluck("followee_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list following: %w", err)
	}
	return ids, nil
}

// AddEdge inserts follower→followee. Inserting an existing edge is a no-op.
func (s *Store) AddEdge(ctx context.Context, followerID, followeeID string) error {
	edge := &models.Follow{FollowerID: followerID, FolloweeID: followeeID}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "follower_id"}, {Name: "followee_id"}}, DoNothing: true}).
		Create(edge).Error
	if err != nil {
		return fmt.Errorf("add follow edge: %w", err)
	}
	return nil
}

// RemoveEdge deletes follower→followee if present.
func (s *Store) RemoveEdge(ctx context.Context, followerID, followeeID string) error {
	err := s.db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&models.Follow{}).Error
	if err != nil {
		return fmt.Errorf("remove follow edge: %w", err)
	}
	return nil
}

// OwnerFor snapshots ownerID's tiers together with actorID's place in the
// owner's follower and following sets.
func (s *Store) OwnerFor(ctx context.Context, ownerID, actorID string) (permissions.Owner, error) {
	user, err := s.GetUser(ctx, ownerID)
	if err != nil {
		return permissions.Owner{}, err
	}
	owner := permissions.Owner{
		ID:       user.ID,
		Likes:    user.LikePermission,
		Comments: user.CommentPermission,
	}
	if actorID == "" || actorID == ownerID {
		return owner, nil
	}
	if owner.ActorIsFollower, err = s.IsFollowing(ctx, actorID, ownerID); err != nil {
		return permissions.Owner{}, err
	}
	if owner.OwnerFollowsActor, err = s.IsFollowing(ctx, ownerID, actorID); err != nil {
		return permissions.Owner{}, err
	}
	return owner, nil
}
