package inventory

import (
	"context"
	"errors"
	"sync"
	"time"

	"inventory-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrBusy is returned when a product lock could not be acquired
var ErrBusy = errors.New("system busy, please try again later (lock)")

// Locker serializes writers of one product's inventory
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// LockClient is the Redis surface RedisLocker needs
type LockClient interface {
	AcquireLock(ctx context.Context, lockKey, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey, token string) error
}

// RedisLocker holds a SETNX lock per key, shared by every process using
// the same Redis
type RedisLocker struct {
	client   LockClient
	ttl      time.Duration
	attempts int
	wait     time.Duration
	logger   *zap.Logger
}

func NewRedisLocker(client LockClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &RedisLocker{
		client:   client,
		ttl:      ttl,
		attempts: 3,
		wait:     100 * time.Millisecond,
		logger:   util.GetLogger(),
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	start := time.Now()
	token := uuid.New().String()

	for i := 0; i < l.attempts; i++ {
		ok, err := l.client.AcquireLock(ctx, key, token, l.ttl)
		if err != nil {
			l.logger.Error("failed to acquire lock redis error", zap.String("key", key), zap.Error(err))
		}
		if ok {
			util.InventoryLockWait.Observe(time.Since(start).Seconds())
			return func() {
				// release must outlive a cancelled request context
				if err := l.client.ReleaseLock(context.Background(), key, token); err != nil {
					l.logger.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.wait):
		}
	}
	return nil, ErrBusy
}

// LocalLocker is an in-process keyed mutex
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*keyLock)}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	start := time.Now()

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
	case <-ctx.Done():
		l.release(key, kl, false)
		return nil, ctx.Err()
	}

	util.InventoryLockWait.Observe(time.Since(start).Seconds())
	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, kl, true) })
	}, nil
}

func (l *LocalLocker) release(key string, kl *keyLock, held bool) {
	if held {
		<-kl.ch
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}
