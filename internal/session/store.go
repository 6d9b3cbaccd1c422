// Package session persists the per-user lists of currently valid refresh
// tokens in Redis. A refresh token is usable only while it remains a member
// of its user's list and the key has not expired.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "refreshTokens:"

type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func key(userID string) string {
	return keyPrefix + userID
}

// Register appends the refresh token to the user's session list. The TTL is
// applied only when the key is created, never refreshed by later logins, so
// every token in the list dies with the key at most ttl after the first login.
// The exists/push/expire sequence is not atomic; two concurrent first logins
// may both set the TTL, which is harmless since the value is identical.
func (s *Store) Register(ctx context.Context, userID string, token string) error {
	k := key(userID)

	exists, err := s.client.Exists(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("check session key: %w", err)
	}

	if err := s.client.LPush(ctx, k, token).Err(); err != nil {
		return fmt.Errorf("register refresh token: %w", err)
	}

	if exists == 0 {
		if err := s.client.Expire(ctx, k, s.ttl).Err(); err != nil {
			return fmt.Errorf("set session expiry: %w", err)
		}
	}

	return nil
}

// Contains reports whether the token is currently a member of the user's
// session list. Absence means the session was revoked, rotated away, or never
// registered.
func (s *Store) Contains(ctx context.Context, userID string, token string) (bool, error) {
	tokens, err := s.client.LRange(ctx, key(userID), 0, -1).Result()
	if err != nil {
		return false, fmt.Errorf("read session tokens: %w", err)
	}

	for _, candidate := range tokens {
		if candidate == token {
			return true, nil
		}
	}

	return false, nil
}

// RevokeAll drops the user's entire session list, invalidating every
// outstanding refresh token at once.
func (s *Store) RevokeAll(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, key(userID)).Err(); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	return nil
}

func (s *Store) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
