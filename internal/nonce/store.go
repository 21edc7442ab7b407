// Package nonce issues and consumes the single-use, time-limited challenge
// tokens that bind a solve attempt to a specific room.
package nonce

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/internos-labs/secretroom/internal"
)

var (
	// ErrNotFound indicates the token never existed, expired, or was already
	// consumed. The three cases are indistinguishable by construction.
	ErrNotFound = errors.New("nonce not found")
	// ErrRedisUnavailable indicates the nonce backend is unreachable.
	ErrRedisUnavailable = errors.New("nonce redis unavailable")
)

// Store maps random tokens to room ids with a fixed TTL. Expiry is enforced
// entirely by the store; an expired entry is an absent entry.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewStore creates a nonce [Store] backed by the given Redis client.
func NewStore(redisClient redis.UniversalClient, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = "sn"
	}
	return &Store{
		redis:  redisClient,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *Store) key(token string) string {
	return s.prefix + ":" + token
}

// TTL returns the configured token lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Issue generates a random token bound to roomID and stores it with the
// configured TTL.
func (s *Store) Issue(ctx context.Context, roomID int64) (string, error) {
	token := internal.NewNonceToken()

	if err := s.redis.Set(ctx, s.key(token), roomID, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return token, nil
}

// Consume atomically resolves and deletes the token in a single GETDEL, so
// under concurrent consumption of the same token at most one caller observes
// the mapping. Consumption is destructive: a consumed token never resolves
// again.
func (s *Store) Consume(ctx context.Context, token string) (int64, error) {
	val, err := s.redis.GetDel(ctx, s.key(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	roomID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		// A corrupt mapping is treated as absent; the delete already happened.
		return 0, ErrNotFound
	}

	return roomID, nil
}
