// Package fanout decides who hears about an action, persists one
// notification per recipient, and hands each one to delivery.
package fanout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/blogify/notifier/internal/content"
	"github.com/blogify/notifier/internal/errors"
	"github.com/blogify/notifier/internal/events"
	"github.com/blogify/notifier/internal/logger"
	"github.com/blogify/notifier/internal/metrics"
	"github.com/blogify/notifier/internal/models"
	"github.com/blogify/notifier/internal/notifications"
	"github.com/blogify/notifier/internal/push"
	"github.com/blogify/notifier/internal/relationships"
	"github.com/blogify/notifier/internal/telemetry"
	"go.uber.org/zap"
)

// Pusher queues a Web Push delivery.
type Pusher interface {
	Enqueue(userID string, payload push.Payload) error
}

// LiveNotifier pushes a persisted notification to open browser tabs.
type LiveNotifier interface {
	SendNotification(userID string, n *models.Notification)
}

// FollowRequester is the follow-request state machine.
type FollowRequester interface {
	Request(ctx context.Context, senderID, recipientID string) (*models.Notification, error)
}

// Options tunes an Engine.
type Options struct {
	Concurrency  int           // recipients persisted in parallel
	StoreTimeout time.Duration // per persistence call
}

// Engine is the fan-out engine.
type Engine struct {
	users    *relationships.Store
	content  content.Store
	repo     *notifications.Repository
	pusher   Pusher
	live     LiveNotifier
	requests FollowRequester
	opts     Options
}

func NewEngine(users *relationships.Store, store content.Store, repo *notifications.Repository, opts Options) *Engine {
	if opts.Concurrency < 1 {
		opts.Concurrency = 16
	}
	return &Engine{users: users, content: store, repo: repo, opts: opts}
}

func (e *Engine) SetPusher(p Pusher)                  { e.pusher = p }
func (e *Engine) SetLiveNotifier(l LiveNotifier)      { e.live = l }
func (e *Engine) SetFollowRequests(r FollowRequester) { e.requests = r }

// plan is a validated event: who to notify and what to tell them.
type plan struct {
	kind       models.NotificationType
	recipients []string
	blogID     *string
	title      string
	body       string
	url        string
	image      string
}

// Dispatch validates ev and fans it out. Validation problems are returned
// before anything is written; per-recipient failures only show in Result.
func (e *Engine) Dispatch(ctx context.Context, ev events.Event) (*events.Result, error) {
	if !ev.Action.Valid() {
		return nil, errors.InvalidAction(string(ev.Action))
	}

	ctx, span := telemetry.StartSpan(ctx, "fanout.dispatch", "action", string(ev.Action), "actor_id", ev.ActorID)
	defer span.End()

	actor, err := e.users.GetUser(ctx, ev.ActorID)
	if err != nil {
		return nil, err
	}

	if ev.Action == events.FollowRequest {
		return e.followRequest(ctx, ev)
	}

	p, err := e.plan(ctx, ev, actor)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := e.fanOut(ctx, actor, ev.Action, p)
	metrics.Get().FanoutRecipients.WithLabelValues(string(ev.Action)).Observe(float64(result.Recipients))

	logger.Log.Info("Event dispatched",
		logger.WithAction(string(ev.Action)),
		logger.WithUserID(actor.ID),
		zap.Int("recipients", result.Recipients),
		zap.Int("persisted", result.Persisted),
		zap.Int("suppressed", result.Suppressed),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (e *Engine) followRequest(ctx context.Context, ev events.Event) (*events.Result, error) {
	if ev.RecipientID == "" {
		return nil, errors.ValidationError("recipient_id", "recipient_id is required for FOLLOW_REQUEST")
	}
	if e.requests == nil {
		return nil, errors.ServiceUnavailable("follow requests")
	}
	if _, err := e.requests.Request(ctx, ev.ActorID, ev.RecipientID); err != nil {
		return nil, err
	}
	return &events.Result{Action: ev.Action, Recipients: 1, Persisted: 1}, nil
}

func (e *Engine) plan(ctx context.Context, ev events.Event, actor *models.User) (*plan, error) {
	if ev.Action == events.LikeComment {
		if ev.CommentID == "" {
			return nil, errors.ValidationError("comment_id", "comment_id is required for LIKE_COMMENT")
		}
		comment, err := e.content.GetComment(ctx, ev.CommentID)
		if err != nil {
			return nil, err
		}
		blog, err := e.content.GetBlog(ctx, comment.BlogID)
		if err != nil {
			return nil, err
		}
		return &plan{
			kind:       models.NotificationLikeComment,
			recipients: []string{comment.AuthorID},
			blogID:     &blog.ID,
			title:      "Comment Liked",
			body:       fmt.Sprintf("%s liked your comment on: %s", actor.DisplayName, blog.Title),
			url:        "/blog/" + blog.ID,
			image:      blog.CoverImage,
		}, nil
	}

	if ev.BlogID == "" {
		return nil, errors.ValidationError("blog_id", fmt.Sprintf("blog_id is required for %s", ev.Action))
	}
	blog, err := e.content.GetBlog(ctx, ev.BlogID)
	if err != nil {
		return nil, err
	}
	p := &plan{blogID: &blog.ID, url: "/blog/" + blog.ID, image: blog.CoverImage}

	switch ev.Action {
	case events.NewBlog:
		if blog.AuthorID != actor.ID {
			return nil, errors.PermissionDenied("only the author can announce a blog")
		}
		followers, err := e.users.Followers(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		p.kind = models.NotificationNewBlog
		p.recipients = followers
		p.title = "New Blog Post"
		p.body = fmt.Sprintf("%s posted: %s", actor.DisplayName, blog.Title)
	case events.LikeBlog:
		p.kind = models.NotificationLike
		p.recipients = []string{blog.AuthorID}
		p.title = "Blog Liked"
		p.body = fmt.Sprintf("%s liked: %s", actor.DisplayName, blog.Title)
	case events.NewComment:
		p.kind = models.NotificationNewComment
		p.recipients = []string{blog.AuthorID}
		p.title = "New Comment"
		p.body = fmt.Sprintf("%s commented on: %s", actor.DisplayName, blog.Title)
	}
	return p, nil
}

func (e *Engine) fanOut(ctx context.Context, actor *models.User, action events.Action, p *plan) *events.Result {
	result := &events.Result{Action: action, Recipients: len(p.recipients)}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, e.opts.Concurrency)
	)
	for _, recipientID := range p.recipients {
		if recipientID == actor.ID {
			result.Suppressed++
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(recipientID string) {
			defer wg.Done()
			defer func() { <-sem }()

			err := e.notify(ctx, actor, recipientID, p)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				metrics.Get().FanoutFailures.WithLabelValues(string(action)).Inc()
				logger.Log.Error("Failed to persist notification",
					logger.WithAction(string(action)),
					zap.String("recipient_id", recipientID),
					zap.Error(err),
				)
				return
			}
			result.Persisted++
		}(recipientID)
	}
	wg.Wait()
	return result
}

func (e *Engine) notify(ctx context.Context, actor *models.User, recipientID string, p *plan) error {
	storeCtx := ctx
	if e.opts.StoreTimeout > 0 {
		var cancel context.CancelFunc
		storeCtx, cancel = context.WithTimeout(ctx, e.opts.StoreTimeout)
		defer cancel()
	}

	n := &models.Notification{
		RecipientID: recipientID,
		SenderID:    actor.ID,
		Type:        p.kind,
		BlogID:      p.blogID,
		Message:     p.body,
		Status:      models.StatusPending,
	}
	if err := e.repo.Create(storeCtx, n); err != nil {
		return err
	}
	metrics.Get().NotificationsCreated.WithLabelValues(string(n.Type)).Inc()

	e.Announce(ctx, n, push.Payload{
		Title:     p.title,
		Body:      p.body,
		URL:       p.url,
		Image:     p.image,
		Timestamp: n.CreatedAt.UnixMilli(),
	})
	return nil
}

// Announce hands a persisted notification to push and the live channel.
// It never fails the caller.
func (e *Engine) Announce(ctx context.Context, n *models.Notification, payload push.Payload) {
	if e.pusher != nil {
		if err := e.pusher.Enqueue(n.RecipientID, payload); err != nil {
			logger.Log.Warn("Push not queued",
				logger.WithNotificationID(n.ID),
				logger.WithUserID(n.RecipientID),
				zap.Error(err),
			)
		}
	}
	if e.live != nil {
		e.live.SendNotification(n.RecipientID, n)
	}
}
