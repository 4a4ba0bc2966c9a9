// Package kernel builds the notification engine's object graph and owns its
// lifecycle.
package kernel

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blogify/notifier/internal/auth"
	"github.com/blogify/notifier/internal/cache"
	"github.com/blogify/notifier/internal/config"
	"github.com/blogify/notifier/internal/content"
	"github.com/blogify/notifier/internal/fanout"
	"github.com/blogify/notifier/internal/followrequests"
	"github.com/blogify/notifier/internal/handlers"
	"github.com/blogify/notifier/internal/logger"
	"github.com/blogify/notifier/internal/notifications"
	"github.com/blogify/notifier/internal/push"
	"github.com/blogify/notifier/internal/realtime"
	"github.com/blogify/notifier/internal/relationships"
	"github.com/blogify/notifier/internal/telemetry"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Kernel holds all application dependencies and provides type-safe access.
type Kernel struct {
	// Core infrastructure
	db     *gorm.DB
	logger *zap.Logger
	cache  *cache.RedisClient
	locker cache.Locker

	// Stores
	users   *relationships.Store
	content content.Store
	repo    *notifications.Repository

	// Engine
	engine        *fanout.Engine
	requests      *followrequests.Machine
	notifications *notifications.Service
	contentSvc    *content.Service

	// Delivery
	registry   *push.Registry
	dispatcher *push.Dispatcher
	hub        *realtime.Hub

	// HTTP
	auth      *auth.Service
	wsHandler *realtime.Handler
	handlers  *handlers.Handlers

	vapidPublicKey string

	// Lifecycle hooks
	cleanupFuncs []func(context.Context) error
	started      bool
	mu           sync.RWMutex
}

// New creates a new empty kernel.
func New() *Kernel {
	return &Kernel{
		cleanupFuncs: make([]func(context.Context) error, 0),
	}
}

// Build wires every component from cfg on top of an open, migrated db.
// Redis is optional; without it locks are process-local.
func Build(ctx context.Context, cfg *config.Config, db *gorm.DB) (*Kernel, error) {
	k := New().WithDB(db).WithLogger(logger.Log)

	if cfg.RedisHost != "" {
		rc, err := cache.NewRedisClient(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		k.cache = rc
		k.locker = cache.NewRedisLocker(rc, 0, cfg.LockTimeout)
		k.OnCleanup(func(context.Context) error { return rc.Close() })
	} else {
		k.locker = cache.NewLocalLocker(cfg.LockTimeout)
	}

	switch cfg.ContentStore {
	case "mongo":
		ms, err := content.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		if err := ms.EnsureIndexes(ctx); err != nil {
			_ = ms.Close(ctx)
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		k.content = ms
		k.OnCleanup(ms.Close)
	case "sql", "":
		ss := content.NewSQLStore(db)
		if err := ss.Migrate(); err != nil {
			return nil, fmt.Errorf("migrate content: %w", err)
		}
		k.content = ss
	default:
		return nil, fmt.Errorf("unknown content store %q", cfg.ContentStore)
	}

	k.users = relationships.NewStore(db)
	k.repo = notifications.NewRepository(db)
	k.requests = followrequests.NewMachine(db, k.locker, cfg.StoreTimeout)
	k.engine = fanout.NewEngine(k.users, k.content, k.repo, fanout.Options{
		Concurrency:  cfg.FanoutLimit,
		StoreTimeout: cfg.StoreTimeout,
	})

	k.registry = push.NewRegistry(db)
	sender := push.NewWebPushSender(push.VAPIDConfig{
		PublicKey:  cfg.VAPIDPublicKey,
		PrivateKey: cfg.VAPIDPrivateKey,
		Subject:    cfg.VAPIDSubject,
		TTL:        cfg.PushTTL,
		Urgency:    cfg.PushUrgency,
	}, telemetry.NewInstrumentedHTTPClient(cfg.PushTimeout))
	k.dispatcher = push.NewDispatcher(push.NewDeliverer(k.registry, sender), push.DispatcherOptions{
		Workers:   cfg.PushWorkers,
		QueueSize: cfg.PushQueueSize,
		Timeout:   cfg.PushTimeout,
	})
	k.vapidPublicKey = cfg.VAPIDPublicKey

	k.hub = realtime.NewHub()
	k.auth = auth.NewService([]byte(cfg.JWTSecret), k.users)
	k.notifications = notifications.NewService(k.repo, k.requests)
	k.notifications.SetCountNotifier(k.hub)

	k.engine.SetPusher(k.dispatcher)
	k.engine.SetLiveNotifier(k.hub)
	k.engine.SetFollowRequests(k.requests)
	k.requests.SetAnnouncer(k.engine)

	k.contentSvc = content.NewService(k.content, k.users, k.engine, k.locker)
	k.wsHandler = realtime.NewHandler(k.hub, k.auth, k.notifications, originPatterns(cfg.CORSOrigins))
	k.handlers = handlers.NewHandlers(handlers.Deps{
		Notifications:  k.notifications,
		Requests:       k.requests,
		Dispatcher:     k.engine,
		Content:        k.contentSvc,
		Registry:       k.registry,
		Users:          k.users,
		VAPIDPublicKey: cfg.VAPIDPublicKey,
		WS:             k.wsHandler,
	})

	if err := k.Validate(); err != nil {
		_ = k.Cleanup(ctx)
		return nil, err
	}
	return k, nil
}

// originPatterns turns CORS origins into the host patterns the WebSocket
// upgrader matches on.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(strings.TrimPrefix(o, "https://"), "http://")
		if o = strings.TrimSuffix(o, "/"); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// ============================================================================
// GETTERS
// ============================================================================

// DB returns the database connection
func (c *Kernel) DB() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

// Logger returns the logger instance
func (c *Kernel) Logger() *zap.Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.logger == nil {
		return logger.Log
	}
	return c.logger
}

// Cache returns the Redis client, or nil when running without Redis.
func (c *Kernel) Cache() *cache.RedisClient {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache
}

func (c *Kernel) Users() *relationships.Store {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.users
}

func (c *Kernel) Content() *content.Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.contentSvc
}

// Engine returns the fan-out engine.
func (c *Kernel) Engine() *fanout.Engine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.engine
}

func (c *Kernel) FollowRequests() *followrequests.Machine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.requests
}

func (c *Kernel) Notifications() *notifications.Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.notifications
}

func (c *Kernel) Dispatcher() *push.Dispatcher {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dispatcher
}

// Hub returns the WebSocket hub.
func (c *Kernel) Hub() *realtime.Hub {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hub
}

// AuthService returns the auth service
func (c *Kernel) AuthService() *auth.Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.auth
}

func (c *Kernel) Handlers() *handlers.Handlers {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handlers
}

// ============================================================================
// FLUENT API SUPPORT
// ============================================================================

// WithDB is a fluent setter for database
func (c *Kernel) WithDB(db *gorm.DB) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.db = db
	return c
}

// WithLogger is a fluent setter for logger
func (c *Kernel) WithLogger(l *zap.Logger) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = l
	return c
}

// ============================================================================
// LIFECYCLE MANAGEMENT
// ============================================================================

// Start launches the push workers and the hub loop. Calling it twice is a
// no-op.
func (c *Kernel) Start() {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	c.dispatcher.Start()
	go c.hub.Run()

	c.OnCleanup(func(context.Context) error {
		c.dispatcher.Stop()
		return nil
	})
	c.OnCleanup(c.hub.Shutdown)
}

// OnCleanup registers a cleanup function to be called during shutdown.
// Cleanup functions are called in LIFO order.
func (c *Kernel) OnCleanup(fn func(context.Context) error) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
	return c
}

// Cleanup performs graceful shutdown of all registered services. Every
// function runs; the first error is returned.
func (c *Kernel) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	funcs := c.cleanupFuncs
	c.cleanupFuncs = nil
	c.mu.Unlock()

	var first error
	for i := len(funcs) - 1; i >= 0; i-- {
		if err := funcs[i](ctx); err != nil {
			c.Logger().Error("Cleanup function failed", zap.Int("index", i), zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// ============================================================================
// VALIDATION
// ============================================================================

// Validate checks that all required dependencies are registered.
func (c *Kernel) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	missingDeps := []string{}
	required := []struct {
		name string
		ok   bool
	}{
		{"database (DB)", c.db != nil},
		{"lock provider", c.locker != nil},
		{"content store", c.content != nil},
		{"fan-out engine", c.engine != nil},
		{"follow-request machine", c.requests != nil},
		{"push dispatcher", c.dispatcher != nil},
		{"websocket hub", c.hub != nil},
		{"auth service", c.auth != nil},
		{"handlers", c.handlers != nil},
	}
	for _, r := range required {
		if !r.ok {
			missingDeps = append(missingDeps, r.name)
		}
	}

	if len(missingDeps) > 0 {
		return NewInitializationError("Missing required dependencies", missingDeps)
	}

	if c.vapidPublicKey == "" && c.logger != nil {
		c.logger.Warn("VAPID keys not configured; Web Push is disabled")
	}
	return nil
}
