package content

import (
	"context"
	"strings"

	"github.com/blogify/notifier/internal/cache"
	"github.com/blogify/notifier/internal/errors"
	"github.com/blogify/notifier/internal/events"
	"github.com/blogify/notifier/internal/logger"
	"github.com/blogify/notifier/internal/metrics"
	"github.com/blogify/notifier/internal/permissions"
	"github.com/blogify/notifier/internal/relationships"
	"go.uber.org/zap"
)

// Dispatcher fans an event out to its recipients.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev events.Event) (*events.Result, error)
}

// Service gates content mutations on the owner's tiers and reports each
// one to the fan-out engine.
type Service struct {
	store      Store
	users      *relationships.Store
	dispatcher Dispatcher
	locker     cache.Locker
}

func NewService(store Store, users *relationships.Store, dispatcher Dispatcher, locker cache.Locker) *Service {
	return &Service{store: store, users: users, dispatcher: dispatcher, locker: locker}
}

// LikeResult is the state after a toggle.
type LikeResult struct {
	Liked bool `json:"liked"`
	Count int  `json:"count"`
}

func (s *Service) PublishBlog(ctx context.Context, authorID, title, body, coverImage string) (*Blog, error) {
	if authorID == "" {
		return nil, errors.Unauthorized("sign in to publish")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.ValidationError("title", "title is required")
	}
	if _, err := s.users.GetUser(ctx, authorID); err != nil {
		return nil, err
	}

	blog := &Blog{AuthorID: authorID, Title: title, Body: body, CoverImage: coverImage}
	if err := s.store.CreateBlog(ctx, blog); err != nil {
		return nil, err
	}
	s.dispatch(ctx, events.Event{Action: events.NewBlog, ActorID: authorID, BlogID: blog.ID})
	return blog, nil
}

func (s *Service) ToggleBlogLike(ctx context.Context, actorID, blogID string) (*LikeResult, error) {
	blog, err := s.store.GetBlog(ctx, blogID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, permissions.ActionLike, actorID, blog.AuthorID); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, cache.LikeKey("blog", blogID, actorID))
	if err != nil {
		return nil, err
	}
	liked, err := s.store.ToggleBlogLike(ctx, blogID, actorID)
	unlock()
	if err != nil {
		return nil, err
	}

	likers, err := s.store.BlogLikers(ctx, blogID)
	if err != nil {
		return nil, err
	}
	if liked {
		s.dispatch(ctx, events.Event{Action: events.LikeBlog, ActorID: actorID, BlogID: blogID})
	}
	return &LikeResult{Liked: liked, Count: len(likers)}, nil
}

func (s *Service) CreateComment(ctx context.Context, actorID, blogID, text string) (*Comment, error) {
	blog, err := s.store.GetBlog(ctx, blogID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, permissions.ActionComment, actorID, blog.AuthorID); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.ValidationError("content", "comment content is required")
	}

	comment := &Comment{BlogID: blogID, AuthorID: actorID, Content: text}
	if err := s.store.CreateComment(ctx, comment); err != nil {
		return nil, err
	}
	s.dispatch(ctx, events.Event{Action: events.NewComment, ActorID: actorID, BlogID: blogID, CommentID: comment.ID})
	return comment, nil
}

// ToggleCommentLike is gated by the blog owner's comment tier.
func (s *Service) ToggleCommentLike(ctx context.Context, actorID, commentID string) (*LikeResult, error) {
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	blog, err := s.store.GetBlog(ctx, comment.BlogID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, permissions.ActionLikeComment, actorID, blog.AuthorID); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, cache.LikeKey("comment", commentID, actorID))
	if err != nil {
		return nil, err
	}
	liked, err := s.store.ToggleCommentLike(ctx, commentID, actorID)
	unlock()
	if err != nil {
		return nil, err
	}

	likers, err := s.store.CommentLikers(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if liked {
		s.dispatch(ctx, events.Event{Action: events.LikeComment, ActorID: actorID, CommentID: commentID})
	}
	return &LikeResult{Liked: liked, Count: len(likers)}, nil
}

// authorize evaluates the owner's tier for actorID. Owners may always act on
// their own content. Anonymous actors never mutate, even when the tier would
// admit them.
func (s *Service) authorize(ctx context.Context, action permissions.Action, actorID, ownerID string) error {
	if actorID != "" && actorID == ownerID {
		return nil
	}
	owner, err := s.users.OwnerFor(ctx, ownerID, actorID)
	if err != nil {
		return err
	}
	if !permissions.CanAct(action, actorID, owner) {
		metrics.Get().PermissionDenialTotal.WithLabelValues(string(action)).Inc()
		logger.Log.Info("Permission denied",
			logger.WithAction(string(action)),
			logger.WithUserID(actorID),
			zap.String("owner_id", ownerID),
			zap.String("tier", string(owner.Tier(action))),
		)
		return errors.PermissionDenied("the owner does not allow you to " + strings.ReplaceAll(string(action), "_", " ") + " here")
	}
	if actorID == "" {
		return errors.Unauthorized("sign in to " + strings.ReplaceAll(string(action), "_", " "))
	}
	return nil
}

// dispatch runs fan-out detached from the caller's cancellation. A failed
// fan-out never fails the mutation that triggered it.
func (s *Service) dispatch(ctx context.Context, ev events.Event) {
	if s.dispatcher == nil {
		return
	}
	if _, err := s.dispatcher.Dispatch(context.WithoutCancel(ctx), ev); err != nil {
		logger.Log.Warn("Fan-out failed",
			logger.WithAction(string(ev.Action)),
			logger.WithUserID(ev.ActorID),
			zap.Error(err),
		)
	}
}
