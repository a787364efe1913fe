package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned by Acquire when another holder owns the key.
var ErrHeld = errors.New("lock is held")

// Locker guards a named critical section across processes.
type Locker interface {
	// Acquire returns a release func, or ErrHeld.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Noop never blocks. Used when Redis is not configured.
type Noop struct{}

func (Noop) Acquire(ctx context.Context, key string) (func(), error) {
	return func() {}, nil
}

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript extends the TTL only while the key still carries our token.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker uses SET NX PX with a random token. The TTL bounds how long a
// crashed holder can block others; a live holder extends it every TTL/3
// until release.
type RedisLocker struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{rdb: rdb, ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	name := "lock:" + key
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, name, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrHeld
	}

	stop := keepAlive(l.ttl/3, func() (bool, error) {
		n, err := refreshScript.Run(context.Background(), l.rdb, []string{name}, token, l.ttl.Milliseconds()).Int()
		return n == 1, err
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			stop()
			releaseScript.Run(context.Background(), l.rdb, []string{name}, token)
		})
	}, nil
}

// keepAlive calls extend every interval until the returned stop func is
// called or extend reports the lock as lost. Transient errors are retried on
// the next tick. stop waits for the loop to exit.
func keepAlive(every time.Duration, extend func() (bool, error)) (stop func()) {
	if every <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				if held, err := extend(); err == nil && !held {
					return
				}
			}
		}
	}()
	return func() {
		close(done)
		<-exited
	}
}
