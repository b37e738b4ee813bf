// Package revocation keeps the ids of accounts whose outstanding tokens must
// no longer be accepted, typically after a moderation disable.
package revocation

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "revoked:account:"

// Store is Redis-backed. A nil client turns every call into a no-op.
type Store struct {
	client *redis.Client
}

func New(c *redis.Client) *Store {
	return &Store{client: c}
}

// Revoke marks uid as revoked for ttl, which should outlive the longest
// token lifetime.
func (s *Store) Revoke(ctx context.Context, uid string, ttl time.Duration) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Set(ctx, keyPrefix+uid, "1", ttl).Err()
}

// Restore lifts a revocation (re-enable).
func (s *Store) Restore(ctx context.Context, uid string) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Del(ctx, keyPrefix+uid).Err()
}

func (s *Store) IsRevoked(ctx context.Context, uid string) (bool, error) {
	if s == nil || s.client == nil {
		return false, nil
	}
	n, err := s.client.Exists(ctx, keyPrefix+uid).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
