package kernel

import (
	"context"
	"testing"
	"time"

	"github.com/blogify/notifier/internal/config"
	"github.com/blogify/notifier/internal/database"
	"github.com/blogify/notifier/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment:   "test",
		DBDriver:      "sqlite",
		ContentStore:  "sql",
		JWTSecret:     "kernel-test-secret",
		PushTimeout:   time.Second,
		PushWorkers:   1,
		PushQueueSize: 8,
		StoreTimeout:  5 * time.Second,
		LockTimeout:   time.Second,
		FanoutLimit:   4,
		CORSOrigins:   []string{"https://blogify.example/"},
	}
}

func TestBuildWiresEndToEnd(t *testing.T) {
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	ctx := context.Background()
	k, err := Build(ctx, testConfig(), db)
	require.NoError(t, err)
	k.Start()
	k.Start()
	t.Cleanup(func() { assert.NoError(t, k.Cleanup(context.Background())) })

	assert.Nil(t, k.Cache())
	assert.NotNil(t, k.Handlers())

	author := &models.User{DisplayName: "Ada"}
	reader := &models.User{DisplayName: "Ben"}
	require.NoError(t, k.Users().CreateUser(ctx, author))
	require.NoError(t, k.Users().CreateUser(ctx, reader))
	require.NoError(t, k.Users().AddEdge(ctx, reader.ID, author.ID))

	_, err = k.Content().PublishBlog(ctx, author.ID, "Hello", "body", "")
	require.NoError(t, err)

	count, err := k.Notifications().UnreadCount(ctx, reader.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	token, _, err := k.AuthService().IssueToken(reader)
	require.NoError(t, err)
	u, err := k.AuthService().ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, reader.ID, u.ID)
}

func TestBuildRejectsUnknownContentStore(t *testing.T) {
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	cfg := testConfig()
	cfg.ContentStore = "cassandra"
	_, err = Build(context.Background(), cfg, db)
	assert.ErrorContains(t, err, "cassandra")
}

func TestValidateListsMissing(t *testing.T) {
	err := New().Validate()
	var initErr *InitializationError
	require.ErrorAs(t, err, &initErr)
	assert.Contains(t, initErr.MissingDeps, "database (DB)")
	assert.Contains(t, initErr.MissingDeps, "fan-out engine")
	assert.Contains(t, err.Error(), "Missing required dependencies: ")
}

func TestCleanupRunsInReverse(t *testing.T) {
	k := New()
	var order []int
	k.OnCleanup(func(context.Context) error { order = append(order, 1); return nil })
	k.OnCleanup(func(context.Context) error { order = append(order, 2); return assert.AnError })
	k.OnCleanup(func(context.Context) error { order = append(order, 3); return nil })

	assert.ErrorIs(t, k.Cleanup(context.Background()), assert.AnError)
	assert.Equal(t, []int{3, 2, 1}, order)
	assert.NoError(t, k.Cleanup(context.Background()))
}

func TestOriginPatterns(t *testing.T) {
	assert.Equal(t,
		[]string{"blogify.example", "localhost:3000"},
		originPatterns([]string{"https://blogify.example/", "http://localhost:3000", ""}),
	)
}
