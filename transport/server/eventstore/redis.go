package eventstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisStore is a durable Store backed by Redis, letting SSE replay survive
// a server restart or land on a different instance behind a load balancer.
// Each stream is a sorted set keyed by event id (the score), so ReplayAfter
// is a single ZRANGEBYSCORE call.
type RedisStore struct {
	rdb       *redis.Client
	prefix    string
	retention time.Duration
}

// NewRedisStore creates a Redis-backed Store. retention, when positive, is
// applied as the key TTL on every Store call (refreshed per write).
func NewRedisStore(rdb *redis.Client, prefix string, retention time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "mcp:events:"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, retention: retention}
}

func (s *RedisStore) key(streamID string) string  { return s.prefix + streamID }
func (s *RedisStore) seqKey(streamID string) string { return s.prefix + streamID + ":seq" }

func (s *RedisStore) Store(ctx context.Context, streamID string, message []byte) (uint64, error) {
	id, err := s.rdb.Incr(ctx, s.seqKey(streamID)).Result()
	if err != nil {
		return 0, err
	}
	member := fmt.Sprintf("%d:%s", id, message)
	pipe := s.rdb.TxPipeline()
	pipe.ZAdd(ctx, s.key(streamID), redis.Z{Score: float64(id), Member: member})
	if s.retention > 0 {
		pipe.Expire(ctx, s.key(streamID), s.retention)
		pipe.Expire(ctx, s.seqKey(streamID), s.retention)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func (s *RedisStore) ReplayAfter(ctx context.Context, streamID string, afterID uint64) ([]Event, error) {
	members, err := s.rdb.ZRangeByScore(ctx, s.key(streamID), &redis.ZRangeBy{
		Min: fmt.Sprintf("(%d", afterID), // exclusive lower bound
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}
	if members == nil {
		return nil, ErrNotFound
	}
	out := make([]Event, 0, len(members))
	for _, m := range members {
		ev, err := decodeMember(m)
		if err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *RedisStore) Drop(ctx context.Context, streamID string) error {
	return s.rdb.Del(ctx, s.key(streamID), s.seqKey(streamID)).Err()
}

// Cleanup is a no-op: Redis TTLs already expire stale streams.
func (s *RedisStore) Cleanup(_ context.Context) error { return nil }

func decodeMember(m string) (Event, error) {
	for i := 0; i < len(m); i++ {
		if m[i] == ':' {
			id, err := strconv.ParseUint(m[:i], 10, 64)
			if err != nil {
				return Event{}, err
			}
			return Event{ID: id, Message: []byte(m[i+1:])}, nil
		}
	}
	return Event{}, fmt.Errorf("malformed event member: %q", m)
}
