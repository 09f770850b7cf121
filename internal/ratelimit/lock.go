package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Leases guard work that must run on one replica at a time, such as the
// window-reset sweep. Acquisition is SetNX with a random token; release
// deletes the key only while the token still matches, so a lease that
// expired and was taken over by another replica is never deleted out
// from under the new holder.

const leaseKeyPrefix = "gradpath:lease:"

const leaseReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

type Locker struct {
	client  *redis.Client
	release *redis.Script
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client:  client,
		release: redis.NewScript(leaseReleaseScript),
	}
}

// Lease is a held single-holder lease. It expires on its own after the
// TTL; Release lets go early.
type Lease struct {
	locker *Locker
	key    string
	token  string
}

// Acquire attempts to take the named lease for ttl. A nil lease with no
// error means another holder already has it.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (*Lease, error) {
	if l == nil || l.client == nil {
		return nil, errors.New("lease client not configured")
	}
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("lease name is empty")
	}
	if ttl <= 0 {
		return nil, errors.New("lease ttl must be positive")
	}

	key := leaseKeyPrefix + name
	token := uuid.NewString()
	held, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !held {
		return nil, nil
	}
	return &Lease{locker: l, key: key, token: token}, nil
}

// Release drops the lease if this holder still owns it.
func (le *Lease) Release(ctx context.Context) error {
	if le == nil {
		return nil
	}
	return le.locker.release.Run(ctx, le.locker.client, []string{le.key}, le.token).Err()
}
