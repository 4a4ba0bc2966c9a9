// Package seed fills a development database with users, follow graphs,
// blogs, and engagement. Everything goes through the real services so the
// seeded notifications look the way production ones do.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/blogify/notifier/internal/content"
	"github.com/blogify/notifier/internal/errors"
	"github.com/blogify/notifier/internal/kernel"
	"github.com/blogify/notifier/internal/logger"
	"github.com/blogify/notifier/internal/models"
	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options sizes a dev seed.
type Options struct {
	Users      int
	Follows    int // follow requests sent; about two thirds get accepted
	Blogs      int
	Engagement int // likes and comments spread across the blogs
}

// DefaultOptions is what `notifyctl seed` uses without flags.
func DefaultOptions() Options {
	return Options{Users: 50, Follows: 300, Blogs: 80, Engagement: 600}
}

// Stats counts what a seed run produced.
type Stats struct {
	Users     int
	Requests  int
	Accepted  int
	Blogs     int
	Likes     int
	Comments  int
	Denied    int // engagement refused by the owner's tier
	Conflicts int // duplicate or self follow attempts skipped
}

// Seeder handles database seeding operations
type Seeder struct {
	k   *kernel.Kernel
	rnd *rand.Rand
}

// NewSeeder creates a new seeder instance
func NewSeeder(k *kernel.Kernel) *Seeder {
	// Note: Seed returns an error only for invalid sources
	_ = gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{k: k, rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// WithSeed makes the structure of a run (who follows whom, who likes what)
// reproducible. Fake names still vary.
func (s *Seeder) WithSeed(seed int64) *Seeder {
	s.rnd = rand.New(rand.NewSource(seed))
	return s
}

// SeedDev seeds the development database with realistic data
func (s *Seeder) SeedDev(ctx context.Context, opts Options) (*Stats, error) {
	stats := &Stats{}

	logger.Log.Info("Creating users...")
	users, err := s.seedUsers(ctx, opts.Users)
	if err != nil {
		return stats, fmt.Errorf("failed to seed users: %w", err)
	}
	stats.Users = len(users)
	if len(users) < 2 {
		return stats, nil
	}

	logger.Log.Info("Creating follow graph...")
	if err := s.seedFollows(ctx, users, opts.Follows, stats); err != nil {
		return stats, fmt.Errorf("failed to seed follows: %w", err)
	}

	logger.Log.Info("Publishing blogs...")
	blogs, err := s.seedBlogs(ctx, users, opts.Blogs)
	if err != nil {
		return stats, fmt.Errorf("failed to seed blogs: %w", err)
	}
	stats.Blogs = len(blogs)

	logger.Log.Info("Creating likes and comments...")
	if err := s.seedEngagement(ctx, users, blogs, opts.Engagement, stats); err != nil {
		return stats, fmt.Errorf("failed to seed engagement: %w", err)
	}

	logger.Log.Info("Seed complete",
		zap.Int("users", stats.Users),
		zap.Int("follow_requests", stats.Requests),
		zap.Int("accepted", stats.Accepted),
		zap.Int("blogs", stats.Blogs),
		zap.Int("likes", stats.Likes),
		zap.Int("comments", stats.Comments),
		zap.Int("denied", stats.Denied),
	)
	return stats, nil
}

// SeedTest seeds a small fixed cast for manual and e2e testing:
// alice follows bob, carol has a pending request to bob, and bob only
// accepts comments from followers.
func (s *Seeder) SeedTest(ctx context.Context) ([]models.User, error) {
	fixtures := []struct {
		name, email string
		comments    models.Tier
	}{
		{"Alice Smith", "alice@example.com", models.TierEveryone},
		{"Bob Johnson", "bob@example.com", models.TierFollowers},
		{"Carol Brown", "carol@example.com", models.TierEveryone},
	}

	users := make([]models.User, 0, len(fixtures))
	for _, fx := range fixtures {
		u := models.User{
			DisplayName:       fx.name,
			Email:             fx.email,
			ProfileImageURL:   avatarURL(fx.email),
			LikePermission:    models.TierEveryone,
			CommentPermission: fx.comments,
		}
		if err := s.k.Users().CreateUser(ctx, &u); err != nil {
			return nil, fmt.Errorf("failed to create test user %s: %w", fx.email, err)
		}
		users = append(users, u)
	}
	alice, bob, carol := users[0], users[1], users[2]

	req, err := s.k.FollowRequests().Request(ctx, alice.ID, bob.ID)
	if err != nil {
		return nil, err
	}
	if _, err := s.k.FollowRequests().Accept(ctx, req.ID, bob.ID); err != nil {
		return nil, err
	}
	if _, err := s.k.FollowRequests().Request(ctx, carol.ID, bob.ID); err != nil {
		return nil, err
	}
	if _, err := s.k.Content().PublishBlog(ctx, bob.ID, "Hello from Bob", "First post.", ""); err != nil {
		return nil, err
	}
	return users, nil
}

// Clean empties every table the engine owns. Content living in Mongo is
// left alone.
func (s *Seeder) Clean(ctx context.Context) error {
	db := s.k.DB().WithContext(ctx)
	tables := []interface{}{
		&content.CommentLike{}, &content.BlogLike{}, &content.Comment{}, &content.Blog{},
		&models.PushSubscription{}, &models.Notification{}, &models.Follow{}, &models.User{},
	}
	for _, t := range tables {
		if !db.Migrator().HasTable(t) {
			continue
		}
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(t).Error; err != nil {
			return fmt.Errorf("failed to clean %T: %w", t, err)
		}
	}
	return nil
}

// seedUsers creates users with realistic data and a mix of audience tiers
func (s *Seeder) seedUsers(ctx context.Context, count int) ([]models.User, error) {
	users := make([]models.User, 0, count)
	for i := 0; i < count; i++ {
		email := strings.ToLower(gofakeit.Username()) + fmt.Sprintf("+%d@example.com", i)
		u := models.User{
			DisplayName:       gofakeit.Name(),
			Email:             email,
			ProfileImageURL:   avatarURL(email),
			LikePermission:    s.tier(),
			CommentPermission: s.tier(),
		}
		if err := s.k.Users().CreateUser(ctx, &u); err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		users = append(users, u)
	}
	return users, nil
}

// tier is everyone 60% of the time, followers 30%, following 10%.
func (s *Seeder) tier() models.Tier {
	switch r := s.rnd.Intn(10); {
	case r < 6:
		return models.TierEveryone
	case r < 9:
		return models.TierFollowers
	default:
		return models.TierFollowing
	}
}

func (s *Seeder) seedFollows(ctx context.Context, users []models.User, count int, stats *Stats) error {
	requests := s.k.FollowRequests()
	for i := 0; i < count; i++ {
		sender, recipient := s.pick(users), s.pick(users)
		n, err := requests.Request(ctx, sender.ID, recipient.ID)
		if err != nil {
			if errors.IsCode(err, errors.ErrConflict) {
				stats.Conflicts++
				continue
			}
			return err
		}
		stats.Requests++

		switch s.rnd.Intn(3) {
		case 0:
			// left pending
		default:
			if _, err := requests.Accept(ctx, n.ID, recipient.ID); err != nil {
				return err
			}
			stats.Accepted++
		}
	}
	return nil
}

func (s *Seeder) seedBlogs(ctx context.Context, users []models.User, count int) ([]*content.Blog, error) {
	blogs := make([]*content.Blog, 0, count)
	for i := 0; i < count; i++ {
		author := s.pick(users)
		title := strings.TrimSuffix(gofakeit.HipsterSentence(), ".")
		body := strings.Join([]string{gofakeit.HipsterSentence(), gofakeit.HipsterSentence(), gofakeit.HipsterSentence()}, " ")
		cover := ""
		if s.rnd.Intn(2) == 0 {
			cover = fmt.Sprintf("https://picsum.photos/seed/%s/1200/630", gofakeit.Word())
		}
		blog, err := s.k.Content().PublishBlog(ctx, author.ID, title, body, cover)
		if err != nil {
			return nil, err
		}
		blogs = append(blogs, blog)
	}
	return blogs, nil
}

func (s *Seeder) seedEngagement(ctx context.Context, users []models.User, blogs []*content.Blog, count int, stats *Stats) error {
	if len(blogs) == 0 {
		return nil
	}
	svc := s.k.Content()
	var comments []*content.Comment

	for i := 0; i < count; i++ {
		actor := s.pick(users)
		var err error
		switch r := s.rnd.Intn(10); {
		case r < 5:
			var res *content.LikeResult
			if res, err = svc.ToggleBlogLike(ctx, actor.ID, blogs[s.rnd.Intn(len(blogs))].ID); err == nil && res.Liked {
				stats.Likes++
			}
		case r < 8 || len(comments) == 0:
			var c *content.Comment
			if c, err = svc.CreateComment(ctx, actor.ID, blogs[s.rnd.Intn(len(blogs))].ID, gofakeit.HipsterSentence()); err == nil {
				comments = append(comments, c)
				stats.Comments++
			}
		default:
			var res *content.LikeResult
			if res, err = svc.ToggleCommentLike(ctx, actor.ID, comments[s.rnd.Intn(len(comments))].ID); err == nil && res.Liked {
				stats.Likes++
			}
		}
		if err != nil {
			if errors.HasReason(err, errors.ReasonPermissionDenied) {
				stats.Denied++
				continue
			}
			return err
		}
	}
	return nil
}

func (s *Seeder) pick(users []models.User) models.User {
	return users[s.rnd.Intn(len(users))]
}

func avatarURL(seed string) string {
	return fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/png?seed=%s", seed)
}
