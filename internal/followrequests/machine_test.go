package followrequests

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/blogify/notifier/internal/cache"
	"github.com/blogify/notifier/internal/database"
	"github.com/blogify/notifier/internal/errors"
	"github.com/blogify/notifier/internal/models"
	"github.com/blogify/notifier/internal/push"
	"github.com/blogify/notifier/internal/relationships"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type announced struct {
	n       *models.Notification
	payload push.Payload
}

type fakeAnnouncer struct {
	mu    sync.Mutex
	calls []announced
}

func (f *fakeAnnouncer) Announce(_ context.Context, n *models.Notification, p push.Payload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, announced{n: n, payload: p})
}

func (f *fakeAnnouncer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type MachineTestSuite struct {
	suite.Suite
	db        *gorm.DB
	users     *relationships.Store
	machine   *Machine
	announcer *fakeAnnouncer
	ctx       context.Context

	alice, bob *models.User
}

func (s *MachineTestSuite) SetupTest() {
	db, err := database.OpenMemory()
	s.Require().NoError(err)
	s.db = db
	s.T().Cleanup(func() { _ = database.Close(db) })

	s.ctx = context.Background()
	s.users = relationships.NewStore(db)
	s.announcer = &fakeAnnouncer{}
	s.machine = NewMachine(db, cache.NewLocalLocker(5*time.Second), 5*time.Second)
	s.machine.SetAnnouncer(s.announcer)

	s.alice = s.createUser("Alice")
	s.bob = s.createUser("Bob")
}

func (s *MachineTestSuite) createUser(name string) *models.User {
	u := &models.User{DisplayName: name, ProfileImageURL: "https://img.example/" + name}
	s.Require().NoError(s.users.CreateUser(s.ctx, u))
	return u
}

func (s *MachineTestSuite) follows(follower, followee string) bool {
	ok, err := s.users.IsFollowing(s.ctx, follower, followee)
	s.Require().NoError(err)
	return ok
}

func (s *MachineTestSuite) countRequests(status models.NotificationStatus) int64 {
	var n int64
	s.Require().NoError(s.db.Model(&models.Notification{}).
		Where("sender_id = ? AND recipient_id = ? AND type = ? AND status = ?", s.alice.ID, s.bob.ID, models.NotificationFollowRequest, status).
		Count(&n).Error)
	return n
}

func (s *MachineTestSuite) TestRequestCreatesPendingAndAnnounces() {
	n, err := s.machine.Request(s.ctx, s.alice.ID, s.bob.ID)
	s.Require().NoError(err)

	s.Equal(models.NotificationFollowRequest, n.Type)
	s.Equal(models.StatusPending, n.Status)
	s.False(n.IsRead)
	s.Equal("Alice wants to follow you", n.Message)

	s.Require().Equal(1, s.announcer.count())
	p := s.announcer.calls[0].payload
	s.Equal("Follow Request", p.Title)
	s.Equal("Alice wants to follow you", p.Body)
	s.Equal("/profile/"+s.alice.ID, p.URL)
	s.Equal("https://img.example/Alice", p.Image)
	s.Equal(n.CreatedAt.UnixMilli(), p.Timestamp)

	pending, err := s.machine.PendingFor(s.ctx, s.bob.ID)
	s.Require().NoError(err)
	s.Len(pending, 1)
}

func (s *MachineTestSuite) TestRequestGuards() {
	_, err := s.machine.Request(s.ctx, s.alice.ID, s.alice.ID)
	s.True(errors.HasReason(err, errors.ReasonSelfFollow))

	_, err = s.machine.Request(s.ctx, s.alice.ID, "ghost")
	s.True(errors.IsCode(err, errors.ErrNotFound))

	_, err = s.machine.Request(s.ctx, "ghost", s.bob.ID)
	s.True(errors.IsCode(err, errors.ErrNotFound))

	s.Require().NoError(s.users.AddEdge(s.ctx, s.alice.ID, s.bob.ID))
	_, err = s.machine.Request(s.ctx, s.alice.ID, s.bob.ID)
	s.True(errors.HasReason(err, errors.ReasonAlreadyFollowing))

	s.Equal(0, s.announcer.count())
}

func (s *MachineTestSuite) TestDuplicateRequest() {
	_, err := s.machine.Request(s.ctx, s.alice.ID, s.bob.ID)
	s.Require().NoError(err)

	_, err = s.machine.Request(s.ctx, s.alice.ID, s.bob.ID)
	s.True(errors.HasReason(err, errors.ReasonDuplicateRequest))

	// the reverse direction is a different pair
	_, err = s.machine.Request(s.ctx, s.bob.ID, s.alice.ID)
	s.NoError(err)
}

func (s *MachineTestSuite) TestConcurrentDuplicateRequests() {
	const n = 16
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.machine.Request(s.ctx, s.alice.ID, s.bob.ID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, dup int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.HasReason(err, errors.ReasonDuplicateRequest):
			dup++
		default:
			s.Failf("unexpected error", "%v", err)
		}
	}
	s.Equal(1, ok)
	s.Equal(n-1, dup)
	s.Equal(int64(1), s.countRequests(models.StatusPending))
	s.Equal(1, s.announcer.count())
}

func (s *MachineTestSuite) TestAcceptAddsBothMemberships() {
	req, err := s.machine.Request(s.ctx, s.alice.ID, s.bob.ID)
	s.Require().NoError(err)

	got, err := s.machine.Accept(s.ctx, req.ID, s.bob.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusAccepted, got.Status)
	s.True(got.IsRead)

	followers, err := s.users.Followers(s.ctx, s.bob.ID)
	s.Require().NoError(err)
	s.Equal([]string{s.alice.ID}, followers)
	following, err := s.users.Following(s.ctx, s.alice.ID)
	s.Require().NoError(err)
	s.Equal([]string{s.bob.ID}, following)

	_, err = s.machine.Accept(s.ctx, req.ID, s.bob.ID)
	s.True(errors.IsCode(err, errors.ErrNotFound), "accept is effective once")
	_, err = s.machine.Reject(s.ctx, req.ID, s.bob.ID)
	s.True(errors.IsCode(err, errors.ErrNotFound), "accepted is terminal")
}

func (s *MachineTestSuite) TestRejectLeavesGraphUntouched() {
	req, err := s.machine.Request(s.ctx, s.alice.ID, s.bob.ID)
	s.Require().NoError(err)

	got, err := s.machine.Reject(s.ctx, req.ID, s.bob.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, got.Status)
	s.False(s.follows(s.alice.ID, s.bob.ID))
	s.False(s.follows(s.bob.ID, s.alice.ID))

	_, err = s.machine.Accept(s.ctx, req.ID, s.bob.ID)
	s.True(errors.IsCode(err, errors.ErrNotFound))

	// a later cycle starts from a fresh pending row
	_, err = s.machine.Request(s.ctx, s.alice.ID, s.bob.ID)
	s.NoError(err)
}

func (s *MachineTestSuite) TestOnlyRecipientDecides() {
	req, err := s.machine.Request(s.ctx, s.alice.ID, s.bob.ID)
	s.Require().NoError(err)
	carol := s.createUser("Carol")

	for _, actor := range []string{s.alice.ID, carol.ID} {
		_, err = s.machine.Accept(s.ctx, req.ID, actor)
		s.True(errors.IsCode(err, errors.ErrNotFound))
		_, err = s.machine.Reject(s.ctx, req.ID, actor)
		s.True(errors.IsCode(err, errors.ErrNotFound))
	}
	s.Equal(int64(1), s.countRequests(models.StatusPending))

	_, err = s.machine.Accept(s.ctx, "missing", s.bob.ID)
	s.True(errors.IsCode(err, errors.ErrNotFound))
}

func (s *MachineTestSuite) TestAcceptRejectsOtherKinds() {
	like := &models.Notification{SenderID: s.alice.ID, RecipientID: s.bob.ID, Type: models.NotificationLike, Message: "Alice liked: Go"}
	s.Require().NoError(s.db.Create(like).Error)

	_, err := s.machine.Accept(s.ctx, like.ID, s.bob.ID)
	s.True(errors.IsCode(err, errors.ErrNotFound))
	s.False(s.follows(s.alice.ID, s.bob.ID))
}

func (s *MachineTestSuite) TestConcurrentAcceptsApplyOnce() {
	req, err := s.machine.Request(s.ctx, s.alice.ID, s.bob.ID)
	s.Require().NoError(err)

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.machine.Accept(s.ctx, req.ID, s.bob.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
		} else {
			s.True(errors.IsCode(err, errors.ErrNotFound), "%v", err)
		}
	}
	s.Equal(1, ok)

	var edges int64
	s.Require().NoError(s.db.Model(&models.Follow{}).Count(&edges).Error)
	s.Equal(int64(1), edges)
}

func (s *MachineTestSuite) TestAcceptRacingUnfollowStaysConsistent() {
	for i := 0; i < 10; i++ {
		req, err := s.machine.Request(s.ctx, s.alice.ID, s.bob.ID)
		s.Require().NoError(err)

		var wg sync.WaitGroup
		var acceptErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, acceptErr = s.machine.Accept(s.ctx, req.ID, s.bob.ID)
		}()
		go func() {
			defer wg.Done()
			s.NoError(s.machine.Unfollow(s.ctx, s.alice.ID, s.bob.ID))
		}()
		wg.Wait()

		var got models.Notification
		err = s.db.First(&got, "id = ?", req.ID).Error
		edge := s.follows(s.alice.ID, s.bob.ID)
		if acceptErr == nil {
			// accept won; unfollow then either ran after and removed the edge, or not at all
			s.Require().NoError(err)
			s.Equal(models.StatusAccepted, got.Status)
		} else {
			// unfollow won and deleted the pending row; no edge may appear
			s.True(errors.IsCode(acceptErr, errors.ErrNotFound))
			s.ErrorIs(err, gorm.ErrRecordNotFound)
			s.False(edge)
		}
		s.Require().NoError(s.machine.Unfollow(s.ctx, s.alice.ID, s.bob.ID))
	}
}

func (s *MachineTestSuite) TestUnfollow() {
	_, err := s.machine.Request(s.ctx, s.alice.ID, s.bob.ID)
	s.Require().NoError(err)

	s.Require().NoError(s.machine.Unfollow(s.ctx, s.alice.ID, s.bob.ID))
	s.Equal(int64(0), s.countRequests(models.StatusPending), "lingering request removed")

	s.Require().NoError(s.users.AddEdge(s.ctx, s.alice.ID, s.bob.ID))
	s.Require().NoError(s.machine.Unfollow(s.ctx, s.alice.ID, s.bob.ID))
	s.False(s.follows(s.alice.ID, s.bob.ID))
	s.Require().NoError(s.machine.Unfollow(s.ctx, s.alice.ID, s.bob.ID), "idempotent")

	s.True(errors.HasReason(s.machine.Unfollow(s.ctx, s.alice.ID, s.alice.ID), errors.ReasonSelfFollow))
}

func (s *MachineTestSuite) TestMarkRead() {
	req, err := s.machine.Request(s.ctx, s.alice.ID, s.bob.ID)
	s.Require().NoError(err)

	got, err := s.machine.MarkRead(s.ctx, req.ID, s.bob.ID)
	s.Require().NoError(err)
	s.True(got.IsRead)
	s.Equal(models.StatusPending, got.Status, "a read request can still be decided")

	_, err = s.machine.Accept(s.ctx, req.ID, s.bob.ID)
	s.NoError(err)

	like := &models.Notification{SenderID: s.alice.ID, RecipientID: s.bob.ID, Type: models.NotificationLike, Message: "Alice liked: Go"}
	s.Require().NoError(s.db.Create(like).Error)
	got, err = s.machine.MarkRead(s.ctx, like.ID, s.bob.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusRead, got.Status)

	_, err = s.machine.MarkRead(s.ctx, like.ID, s.alice.ID)
	s.True(errors.IsCode(err, errors.ErrNotFound))
}

func (s *MachineTestSuite) TestCancel() {
	req, err := s.machine.Request(s.ctx, s.alice.ID, s.bob.ID)
	s.Require().NoError(err)

	s.True(errors.IsCode(s.machine.Cancel(s.ctx, req.ID, s.bob.ID), errors.ErrNotFound), "only the sender cancels")
	s.Require().NoError(s.machine.Cancel(s.ctx, req.ID, s.alice.ID))
	s.True(errors.IsCode(s.machine.Cancel(s.ctx, req.ID, s.alice.ID), errors.ErrNotFound))

	_, err = s.machine.Request(s.ctx, s.alice.ID, s.bob.ID)
	s.NoError(err)
}

func TestMachineTestSuite(t *testing.T) {
	suite.Run(t, new(MachineTestSuite))
}
