package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Idempotency remembers the response to a create request so a retried
// request with the same key gets the same order back.
type Idempotency struct {
	RDB redis.Cmdable
}

func (s Idempotency) Lookup(ctx context.Context, userID int64, key string) ([]byte, bool, error) {
	b, err := s.RDB.Get(ctx, fmt.Sprintf(KeyIdemOrderCreate, userID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s Idempotency) Remember(ctx context.Context, userID int64, key string, body []byte) error {
	return s.RDB.Set(ctx, fmt.Sprintf(KeyIdemOrderCreate, userID, key), body, TTLIdempotency).Err()
}

// Dedup marks event ids as processed for one consumer.
type Dedup struct {
	RDB     redis.Cmdable
	Service string
}

// Claim returns false when id was already claimed.
func (d Dedup) Claim(ctx context.Context, id string) (bool, error) {
	return d.RDB.SetNX(ctx, fmt.Sprintf(KeyDedup, d.Service, id), 1, TTLDedup).Result()
}

// Release drops a claim so the event can be retried.
func (d Dedup) Release(ctx context.Context, id string) error {
	return d.RDB.Del(ctx, fmt.Sprintf(KeyDedup, d.Service, id)).Err()
}
