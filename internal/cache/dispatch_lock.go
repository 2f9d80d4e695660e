package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DispatchLockKey = "followups:dispatch:lock"

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// DispatchLock keeps two dispatch cycles from overlapping across processes. The TTL
// bounds how long a crashed holder can block later cycles.
type DispatchLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewDispatchLock(client *redis.Client, ttl time.Duration) *DispatchLock {
	return &DispatchLock{client: client, key: DispatchLockKey, ttl: ttl}
}

// TryAcquire returns a token when the lock was taken and ok=false when another holder has it.
func (l *DispatchLock) TryAcquire(ctx context.Context) (token string, ok bool, err error) {
	token = uuid.NewString()
	ok, err = l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release drops the lock if token still owns it. Releasing an expired or stolen lock is a no-op.
func (l *DispatchLock) Release(ctx context.Context, token string) error {
	err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
