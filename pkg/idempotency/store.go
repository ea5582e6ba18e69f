package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrInFlight is returned when another request holds the same key and has not
// completed yet.
var ErrInFlight = errors.New("request with this idempotency key is in flight")

const pendingMarker = "\x00pending"

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// Key names a consumed Kafka record.
func (s *Store) Key(topic string, partition int, offset int64) string {
	return fmt.Sprintf("idem:%s:%d:%d", topic, partition, offset)
}

// Seen marks key as processed and reports whether it already was.
func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// RequestKey names a client-supplied Idempotency-Key within a scope.
func RequestKey(scope, key string) string {
	return fmt.Sprintf("idem:req:%s:%s", scope, key)
}

// Begin claims key for a new request. When the key already completed, the
// stored response is returned with fresh=false.
func (s *Store) Begin(ctx context.Context, key string) (cached []byte, fresh bool, err error) {
	ok, err := s.rdb.SetNX(ctx, key, pendingMarker, s.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if ok {
		return nil, true, nil
	}
	val, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired between SetNX and Get; the caller may retry
		return nil, false, ErrInFlight
	}
	if err != nil {
		return nil, false, err
	}
	if string(val) == pendingMarker {
		return nil, false, ErrInFlight
	}
	return val, false, nil
}

// Complete stores the response replayed for later requests with the same key.
func (s *Store) Complete(ctx context.Context, key string, response []byte) error {
	return s.rdb.Set(ctx, key, response, s.ttl).Err()
}

// Release drops a claim so the request can be attempted again.
func (s *Store) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
