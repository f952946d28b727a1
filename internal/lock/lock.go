package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"SpinApi/pkg/logger"
	"SpinApi/pkg/redis"
)

// Locker is the advisory mutual-exclusion primitive shared by the state
// machine and the elimination loop. TryLock never blocks: ok reports whether
// the caller now holds the key, and the returned token must be passed back
// to Unlock. A held key expires after ttl so a crashed holder cannot wedge a
// wheel forever; release is token-checked so a holder that outlived its ttl
// cannot delete a lock someone else re-acquired.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key string, token string) error
}

// RedisLocker implements Locker with SET NX + expiry and a value-checked
// delete on release.
type RedisLocker struct {
	service *redis.RedisService
}

func NewRedisLocker(service *redis.RedisService) *RedisLocker {
	return &RedisLocker{service: service}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token, err := newToken()
	if err != nil {
		return "", false, logger.WrapError(err, "")
	}

	ok, err := l.service.SetKeyNX(ctx, key, token, ttl)
	if err != nil {
		return "", false, logger.WrapError(err, "")
	}
	if !ok {
		return "", false, nil
	}

	return token, true, nil
}

func (l *RedisLocker) Unlock(ctx context.Context, key string, token string) error {
	if token == "" {
		return nil
	}

	if err := l.service.DeleteKeyIfValue(ctx, key, token); err != nil {
		return logger.WrapError(err, "")
	}
	return nil
}

func newToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

type memoryLock struct {
	token  string
	expiry time.Time
}

// MemoryLocker is a process-local Locker with the same expiry and token
// contract. A single authoritative process does not strictly need Redis for
// this, and tests use it directly.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]memoryLock
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]memoryLock)}
}

func (l *MemoryLocker) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	token, err := newToken()
	if err != nil {
		return "", false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if cur, held := l.locks[key]; held && time.Now().Before(cur.expiry) {
		return "", false, nil
	}
	l.locks[key] = memoryLock{token: token, expiry: time.Now().Add(ttl)}
	return token, true, nil
}

func (l *MemoryLocker) Unlock(_ context.Context, key string, token string) error {
	if token == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if cur, held := l.locks[key]; held && cur.token == token {
		delete(l.locks, key)
	}
	return nil
}
