package content_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/blogify/notifier/internal/cache"
	"github.com/blogify/notifier/internal/content"
	"github.com/blogify/notifier/internal/database"
	"github.com/blogify/notifier/internal/errors"
	"github.com/blogify/notifier/internal/events"
	"github.com/blogify/notifier/internal/fanout"
	"github.com/blogify/notifier/internal/models"
	"github.com/blogify/notifier/internal/notifications"
	"github.com/blogify/notifier/internal/relationships"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type failingDispatcher struct{ calls int }

func (f *failingDispatcher) Dispatch(context.Context, events.Event) (*events.Result, error) {
	f.calls++
	return nil, errors.InternalError("fan-out unavailable")
}

type ServiceTestSuite struct {
	suite.Suite
	ctx   context.Context
	db    *gorm.DB
	users *relationships.Store
	store *content.SQLStore
	svc   *content.Service

	alice, bob, carol *models.User
}

func (s *ServiceTestSuite) SetupTest() {
	db, err := database.OpenMemory()
	s.Require().NoError(err)
	s.db = db
	s.T().Cleanup(func() { _ = database.Close(db) })
	s.ctx = context.Background()

	s.store = content.NewSQLStore(db)
	s.Require().NoError(s.store.Migrate())
	s.users = relationships.NewStore(db)
	engine := fanout.NewEngine(s.users, s.store, notifications.NewRepository(db), fanout.Options{Concurrency: 2})
	s.svc = content.NewService(s.store, s.users, engine, cache.NewLocalLocker(time.Second))

	s.alice = s.user("Alice")
	s.bob = s.user("Bob")
	s.carol = s.user("Carol")
}

func (s *ServiceTestSuite) user(name string) *models.User {
	u := &models.User{DisplayName: name}
	s.Require().NoError(s.users.CreateUser(s.ctx, u))
	return u
}

func (s *ServiceTestSuite) notifications(recipientID string, kind models.NotificationType) []models.Notification {
	var out []models.Notification
	s.Require().NoError(s.db.Where("recipient_id = ? AND type = ?", recipientID, kind).Find(&out).Error)
	return out
}

func (s *ServiceTestSuite) TestPublishNotifiesFollowers() {
	s.Require().NoError(s.users.AddEdge(s.ctx, s.bob.ID, s.alice.ID))

	blog, err := s.svc.PublishBlog(s.ctx, s.alice.ID, "  Hello  ", "body", "")
	s.Require().NoError(err)
	s.Equal("Hello", blog.Title)
	s.Len(s.notifications(s.bob.ID, models.NotificationNewBlog), 1)
	s.Empty(s.notifications(s.carol.ID, models.NotificationNewBlog))
}

func (s *ServiceTestSuite) TestPublishValidation() {
	_, err := s.svc.PublishBlog(s.ctx, "", "t", "b", "")
	s.True(errors.IsCode(err, errors.ErrUnauthorized))

	_, err = s.svc.PublishBlog(s.ctx, s.alice.ID, " ", "b", "")
	s.True(errors.IsCode(err, errors.ErrInvalidInput))

	_, err = s.svc.PublishBlog(s.ctx, "ghost", "t", "b", "")
	s.True(errors.IsCode(err, errors.ErrNotFound))
}

func (s *ServiceTestSuite) TestEvenTogglesRestoreLikes() {
	blog, err := s.svc.PublishBlog(s.ctx, s.alice.ID, "Post", "", "")
	s.Require().NoError(err)

	for i := 0; i < 4; i++ {
		res, err := s.svc.ToggleBlogLike(s.ctx, s.bob.ID, blog.ID)
		s.Require().NoError(err)
		s.Equal(i%2 == 0, res.Liked)
	}

	likers, err := s.store.BlogLikers(s.ctx, blog.ID)
	s.Require().NoError(err)
	s.Empty(likers)

	// two like transitions, two notifications, none for the unlikes
	s.Len(s.notifications(s.alice.ID, models.NotificationLike), 2)
}

// toggleConcurrently fires n toggles for the same user at once and fails the
// test on any error.
func (s *ServiceTestSuite) toggleConcurrently(n int, toggle func() (*content.LikeResult, error)) {
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := toggle(); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}
}

func (s *ServiceTestSuite) TestConcurrentBlogLikeTogglesAreSerialised() {
	blog, err := s.svc.PublishBlog(s.ctx, s.alice.ID, "Post", "", "")
	s.Require().NoError(err)

	s.toggleConcurrently(10, func() (*content.LikeResult, error) {
		return s.svc.ToggleBlogLike(s.ctx, s.bob.ID, blog.ID)
	})

	likers, err := s.store.BlogLikers(s.ctx, blog.ID)
	s.Require().NoError(err)
	s.Empty(likers)
	s.Len(s.notifications(s.alice.ID, models.NotificationLike), 5)
}

func (s *ServiceTestSuite) TestConcurrentCommentLikeTogglesAreSerialised() {
	blog, err := s.svc.PublishBlog(s.ctx, s.alice.ID, "Post", "", "")
	s.Require().NoError(err)
	comment, err := s.svc.CreateComment(s.ctx, s.bob.ID, blog.ID, "nice")
	s.Require().NoError(err)

	s.toggleConcurrently(10, func() (*content.LikeResult, error) {
		return s.svc.ToggleCommentLike(s.ctx, s.carol.ID, comment.ID)
	})

	likers, err := s.store.CommentLikers(s.ctx, comment.ID)
	s.Require().NoError(err)
	s.Empty(likers)
	s.Len(s.notifications(s.bob.ID, models.NotificationLikeComment), 5)
}

func (s *ServiceTestSuite) TestOwnLikeIsSilent() {
	blog, err := s.svc.PublishBlog(s.ctx, s.alice.ID, "Post", "", "")
	s.Require().NoError(err)

	res, err := s.svc.ToggleBlogLike(s.ctx, s.alice.ID, blog.ID)
	s.Require().NoError(err)
	s.True(res.Liked)
	s.Equal(1, res.Count)
	s.Empty(s.notifications(s.alice.ID, models.NotificationLike))
}

func (s *ServiceTestSuite) TestCommentTier() {
	s.Require().NoError(s.users.UpdatePermissions(s.ctx, s.alice.ID, models.TierEveryone, models.TierFollowers))
	s.Require().NoError(s.users.AddEdge(s.ctx, s.bob.ID, s.alice.ID))
	blog, err := s.svc.PublishBlog(s.ctx, s.alice.ID, "Post", "", "")
	s.Require().NoError(err)

	_, err = s.svc.CreateComment(s.ctx, s.bob.ID, blog.ID, "great read")
	s.Require().NoError(err)

	_, err = s.svc.CreateComment(s.ctx, s.carol.ID, blog.ID, "me too")
	s.True(errors.HasReason(err, errors.ReasonPermissionDenied))

	got := s.notifications(s.alice.ID, models.NotificationNewComment)
	s.Require().Len(got, 1)
	s.Equal(s.bob.ID, got[0].SenderID)
}

func (s *ServiceTestSuite) TestFollowingTierChecksOwnerSide() {
	s.Require().NoError(s.users.UpdatePermissions(s.ctx, s.alice.ID, models.TierFollowing, models.TierEveryone))
	blog, err := s.svc.PublishBlog(s.ctx, s.alice.ID, "Post", "", "")
	s.Require().NoError(err)

	// Bob following Alice is not enough
	s.Require().NoError(s.users.AddEdge(s.ctx, s.bob.ID, s.alice.ID))
	_, err = s.svc.ToggleBlogLike(s.ctx, s.bob.ID, blog.ID)
	s.True(errors.HasReason(err, errors.ReasonPermissionDenied))

	s.Require().NoError(s.users.AddEdge(s.ctx, s.alice.ID, s.carol.ID))
	_, err = s.svc.ToggleBlogLike(s.ctx, s.carol.ID, blog.ID)
	s.NoError(err)
}

func (s *ServiceTestSuite) TestAnonymousAndEmptyComment() {
	blog, err := s.svc.PublishBlog(s.ctx, s.alice.ID, "Post", "", "")
	s.Require().NoError(err)

	_, err = s.svc.CreateComment(s.ctx, "", blog.ID, "hi")
	s.True(errors.IsCode(err, errors.ErrUnauthorized))
	s.False(errors.HasReason(err, errors.ReasonPermissionDenied))

	_, err = s.svc.CreateComment(s.ctx, s.bob.ID, blog.ID, "   ")
	s.True(errors.IsCode(err, errors.ErrInvalidInput))

	_, err = s.svc.CreateComment(s.ctx, s.bob.ID, "missing", "hi")
	s.True(errors.IsCode(err, errors.ErrNotFound))
}

func (s *ServiceTestSuite) TestCommentLikeUsesBlogOwnerTier() {
	blog, err := s.svc.PublishBlog(s.ctx, s.alice.ID, "Post", "", "")
	s.Require().NoError(err)
	comment, err := s.svc.CreateComment(s.ctx, s.bob.ID, blog.ID, "nice")
	s.Require().NoError(err)

	s.Require().NoError(s.users.UpdatePermissions(s.ctx, s.alice.ID, models.TierEveryone, models.TierFollowers))
	_, err = s.svc.ToggleCommentLike(s.ctx, s.carol.ID, comment.ID)
	s.True(errors.HasReason(err, errors.ReasonPermissionDenied))

	s.Require().NoError(s.users.AddEdge(s.ctx, s.carol.ID, s.alice.ID))
	res, err := s.svc.ToggleCommentLike(s.ctx, s.carol.ID, comment.ID)
	s.Require().NoError(err)
	s.True(res.Liked)
	s.Len(s.notifications(s.bob.ID, models.NotificationLikeComment), 1)
}

func (s *ServiceTestSuite) TestFanoutFailureDoesNotFailMutation() {
	d := &failingDispatcher{}
	svc := content.NewService(s.store, s.users, d, cache.NewLocalLocker(time.Second))

	blog, err := svc.PublishBlog(s.ctx, s.alice.ID, "Post", "", "")
	s.Require().NoError(err)
	res, err := svc.ToggleBlogLike(s.ctx, s.bob.ID, blog.ID)
	s.Require().NoError(err)
	s.True(res.Liked)
	s.Equal(2, d.calls)
}

func TestServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}
