package cache

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/blogify/notifier/internal/errors"
	"github.com/blogify/notifier/internal/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Unlock releases a held lock. Calling it more than once is safe.
type Unlock func()

// Locker serialises work on a key, such as one follower/followee pair.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// FollowKey is the lock key for the directed pair follower→followee.
func FollowKey(followerID, followeeID string) string {
	return "follow:" + followerID + ":" + followeeID
}

// LikeKey is the lock key for one user's like on one piece of content.
func LikeKey(kind, contentID, userID string) string {
	return "like:" + kind + ":" + contentID + ":" + userID
}

// LocalLocker is an in-process keyed mutex.
type LocalLocker struct {
	timeout time.Duration

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker returns a keyed mutex; timeout <= 0 waits as long as ctx allows.
func NewLocalLocker(timeout time.Duration) *LocalLocker {
	return &LocalLocker{timeout: timeout, locks: make(map[string]*keyLock)}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-kl.ch
				l.release(key, kl)
			})
		}, nil
	case <-ctx.Done():
		l.release(key, kl)
		return nil, lockError(key, ctx.Err())
	}
}

func (l *LocalLocker) release(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

// held reports how many keys currently have waiters or holders.
func (l *LocalLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// unlockScript deletes the key only if we still own it.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a lock shared by every instance pointing at the same Redis.
type RedisLocker struct {
	client  *redis.Client
	ttl     time.Duration
	timeout time.Duration
	retry   time.Duration
	prefix  string
}

// NewRedisLocker uses SET NX PX with a random token. ttl bounds how long a
// crashed holder can block others.
func NewRedisLocker(rc *RedisClient, ttl, timeout time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{
		client:  rc.Client(),
		ttl:     ttl,
		timeout: timeout,
		retry:   25 * time.Millisecond,
		prefix:  "notifier:lock:",
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	redisKey := l.prefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, lockError(key, ctx.Err())
			}
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-time.After(l.retry):
		case <-ctx.Done():
			return nil, lockError(key, ctx.Err())
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := unlockScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil && !stderrors.Is(err, redis.Nil) {
				logger.Log.Warn("Failed to release redis lock", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}

func lockError(key string, err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Timeout("acquire lock " + key)
	}
	return fmt.Errorf("acquire lock %s: %w", key, err)
}
