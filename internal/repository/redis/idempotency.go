package redisrepo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	lockValue      = "LOCK"
	resultPrefix   = "RES:"
	fingerprintSep = "|"
)

// StoredResult is a completed response together with the fingerprint of the
// request that produced it.
type StoredResult struct {
	Fingerprint string
	Payload     string
}

// IdempotencyStore remembers the outcome of a request keyed by a client
// supplied Idempotency-Key. A key holds either a LOCK marker while the first
// request runs or RES:<fingerprint>|<payload> once it completed.
type IdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

func (s *IdempotencyStore) AcquireLock(ctx context.Context, key string, lockTTL time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, key, lockValue, lockTTL).Result()
}

// SaveResult stores jsonPayload for key. fingerprint must not contain "|".
func (s *IdempotencyStore) SaveResult(ctx context.Context, key, fingerprint, jsonPayload string) error {
	return s.rdb.Set(ctx, key, resultPrefix+fingerprint+fingerprintSep+jsonPayload, s.ttl).Err()
}

// GetResult returns the stored result. ok is false when the key is absent
// or still locked.
func (s *IdempotencyStore) GetResult(ctx context.Context, key string) (res StoredResult, ok bool, err error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return StoredResult{}, false, nil
	}
	if err != nil {
		return StoredResult{}, false, err
	}

	rest, found := strings.CutPrefix(v, resultPrefix)
	if !found {
		return StoredResult{}, false, nil
	}

	fp, payload, _ := strings.Cut(rest, fingerprintSep)

	return StoredResult{Fingerprint: fp, Payload: payload}, true, nil
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
