package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/blogify/notifier/internal/database"
	"github.com/blogify/notifier/internal/errors"
	"github.com/blogify/notifier/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type RepositoryTestSuite struct {
	suite.Suite
	repo *Repository
	ctx  context.Context
}

func (s *RepositoryTestSuite) SetupTest() {
	db, err := database.OpenMemory()
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = database.Close(db) })
	s.repo = NewRepository(db)
	s.ctx = context.Background()
}

func (s *RepositoryTestSuite) create(n *models.Notification) *models.Notification {
	if n.Message == "" {
		n.Message = "msg"
	}
	s.Require().NoError(s.repo.Create(s.ctx, n))
	return n
}

func (s *RepositoryTestSuite) TestListNewestFirst() {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s.create(&models.Notification{
			SenderID: "sender", RecipientID: "me", Type: models.NotificationLike,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	s.create(&models.Notification{SenderID: "sender", RecipientID: "someone-else", Type: models.NotificationLike})

	page, err := s.repo.ListForRecipient(s.ctx, "me", 3, 0)
	s.Require().NoError(err)
	s.Require().Len(page, 3)
	s.True(page[0].CreatedAt.After(page[1].CreatedAt))
	s.True(page[1].CreatedAt.After(page[2].CreatedAt))
	s.True(page[0].CreatedAt.Equal(base.Add(4 * time.Minute)))

	rest, err := s.repo.ListForRecipient(s.ctx, "me", 3, 3)
	s.Require().NoError(err)
	s.Len(rest, 2)
	s.True(rest[1].CreatedAt.Equal(base))
}

func (s *RepositoryTestSuite) TestUnreadCount() {
	like := s.create(&models.Notification{SenderID: "a", RecipientID: "me", Type: models.NotificationLike})
	s.create(&models.Notification{SenderID: "b", RecipientID: "me", Type: models.NotificationNewBlog})
	req := &models.Notification{SenderID: "c", RecipientID: "me", Message: "c wants to follow you"}
	s.Require().NoError(s.repo.CreatePendingRequest(s.ctx, req))

	count, err := s.repo.UnreadCount(s.ctx, "me")
	s.Require().NoError(err)
	s.Equal(int64(3), count)

	ok, err := s.repo.MarkRead(s.ctx, like.ID, "me")
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.repo.TransitionRequest(s.ctx, req.ID, "me", models.StatusAccepted)
	s.Require().NoError(err)
	s.True(ok)

	count, err = s.repo.UnreadCount(s.ctx, "me")
	s.Require().NoError(err)
	s.Equal(int64(1), count)
}

func (s *RepositoryTestSuite) TestMarkReadKeepsFollowRequestStatus() {
	req := &models.Notification{SenderID: "c", RecipientID: "me", Message: "c wants to follow you"}
	s.Require().NoError(s.repo.CreatePendingRequest(s.ctx, req))

	ok, err := s.repo.MarkRead(s.ctx, req.ID, "me")
	s.Require().NoError(err)
	s.True(ok)

	got, err := s.repo.Get(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, got.Status)
	s.True(got.IsRead)

	like := s.create(&models.Notification{SenderID: "a", RecipientID: "me", Type: models.NotificationLike})
	ok, err = s.repo.MarkRead(s.ctx, like.ID, "me")
	s.Require().NoError(err)
	s.True(ok)
	got, err = s.repo.Get(s.ctx, like.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusRead, got.Status)
	s.True(got.IsRead)

	ok, err = s.repo.MarkRead(s.ctx, like.ID, "intruder")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *RepositoryTestSuite) TestTransitionOnlyOnce() {
	req := &models.Notification{SenderID: "c", RecipientID: "me", Message: "c wants to follow you"}
	s.Require().NoError(s.repo.CreatePendingRequest(s.ctx, req))

	ok, err := s.repo.TransitionRequest(s.ctx, req.ID, "other", models.StatusAccepted)
	s.Require().NoError(err)
	s.False(ok, "only the recipient can transition")

	ok, err = s.repo.TransitionRequest(s.ctx, req.ID, "me", models.StatusRejected)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.repo.TransitionRequest(s.ctx, req.ID, "me", models.StatusAccepted)
	s.Require().NoError(err)
	s.False(ok, "terminal states do not move")
}

func (s *RepositoryTestSuite) TestDuplicatePending() {
	first := &models.Notification{SenderID: "c", RecipientID: "me", Message: "m"}
	s.Require().NoError(s.repo.CreatePendingRequest(s.ctx, first))

	err := s.repo.CreatePendingRequest(s.ctx, &models.Notification{SenderID: "c", RecipientID: "me", Message: "m"})
	s.True(errors.HasReason(err, errors.ReasonDuplicateRequest), "got %v", err)

	n, err := s.repo.DeletePending(s.ctx, "c", "me")
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	_, err = s.repo.Get(s.ctx, first.ID)
	s.True(errors.IsCode(err, errors.ErrNotFound))

	pending, err := s.repo.PendingFor(s.ctx, "me")
	s.Require().NoError(err)
	s.Empty(pending)
}

func (s *RepositoryTestSuite) TestCreateRejectsSelfNotification() {
	err := s.repo.Create(s.ctx, &models.Notification{SenderID: "me", RecipientID: "me", Type: models.NotificationLike, Message: "m"})
	s.True(errors.HasReason(err, errors.ReasonSelfNotify))
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func TestClampPage(t *testing.T) {
	l, o := clampPage(0, -4)
	assert.Equal(t, DefaultPageSize, l)
	assert.Equal(t, 0, o)
	l, _ = clampPage(1000, 0)
	require.Equal(t, MaxPageSize, l)
}
