package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Mirror publishes who is online somewhere outside the process.
// It is observational only; the Registry stays authoritative.
type Mirror interface {
	Online(ctx context.Context, userID, connID string) error
	Offline(ctx context.Context, userID, connID string) error
}

// NopMirror discards everything. Used when no Redis is configured.
type NopMirror struct{}

func (NopMirror) Online(context.Context, string, string) error  { return nil }
func (NopMirror) Offline(context.Context, string, string) error { return nil }

const keyPrefix = "teslo:presence:"

// Deletes the key only while it still points at the given connection, so a
// late disconnect of a displaced socket cannot wipe the newer entry.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisMirror stores teslo:presence:<userID> = connID with a TTL.
type RedisMirror struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewRedisMirror(rdb redis.UniversalClient, ttl time.Duration) *RedisMirror {
	return &RedisMirror{rdb: rdb, ttl: ttl}
}

// DialRedis connects to addr and pings it.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}
	return rdb, nil
}

func Key(userID string) string { return keyPrefix + userID }

// Online marks the user online and renews the TTL.
func (m *RedisMirror) Online(ctx context.Context, userID, connID string) error {
	return m.rdb.Set(ctx, Key(userID), connID, m.ttl).Err()
}

func (m *RedisMirror) Offline(ctx context.Context, userID, connID string) error {
	return releaseScript.Run(ctx, m.rdb, []string{Key(userID)}, connID).Err()
}

// Lookup returns the connection id the user is online with.
func (m *RedisMirror) Lookup(ctx context.Context, userID string) (string, bool, error) {
	val, err := m.rdb.Get(ctx, Key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}
