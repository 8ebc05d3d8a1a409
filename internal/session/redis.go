package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "monte:view"

// RedisStore keeps each session's hint in a list, tracks sessions holding a
// hint in a set, and stores each issued session's last seen day in its own key.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisStore(rdb redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{rdb: rdb, prefix: defaultKeyPrefix, ttl: ttl}
}

func (s *RedisStore) key(sessionID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, sessionID)
}

func (s *RedisStore) sessionKey(sessionID string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, sessionID)
}

func (s *RedisStore) registry() string {
	return s.prefix + ":sessions"
}

func (s *RedisStore) Append(ctx context.Context, sessionID, slot string) error {
	key := s.key(sessionID)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, slot)
		pipe.Expire(ctx, key, s.ttl)
		pipe.SAdd(ctx, s.registry(), sessionID)
		pipe.Expire(ctx, s.registry(), s.ttl)
		return nil
	})
	return err
}

func (s *RedisStore) RemoveEverywhere(ctx context.Context, slot string) error {
	ids, err := s.liveSessions(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.LRem(ctx, s.key(id), 0, slot)
		}
		return nil
	})
	return err
}

// liveSessions returns registry members whose hint list still exists and
// removes the ones whose list has expired.
func (s *RedisStore) liveSessions(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, s.registry()).Result()
	if err != nil || len(ids) == 0 {
		return nil, err
	}

	exists := make([]*redis.IntCmd, len(ids))
	if _, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			exists[i] = pipe.Exists(ctx, s.key(id))
		}
		return nil
	}); err != nil {
		return nil, err
	}

	live := make([]string, 0, len(ids))
	var stale []interface{}
	for i, id := range ids {
		if exists[i].Val() > 0 {
			live = append(live, id)
			continue
		}
		stale = append(stale, id)
	}
	if len(stale) > 0 {
		if err := s.rdb.SRem(ctx, s.registry(), stale...).Err(); err != nil {
			return nil, err
		}
	}
	return live, nil
}

func (s *RedisStore) ClearAll(ctx context.Context) error {
	ids, err := s.rdb.SMembers(ctx, s.registry()).Result()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.key(id))
	}
	keys = append(keys, s.registry())
	return s.rdb.Del(ctx, keys...).Err()
}

func (s *RedisStore) Slots(ctx context.Context, sessionID string) ([]string, error) {
	return s.rdb.LRange(ctx, s.key(sessionID), 0, -1).Result()
}

func (s *RedisStore) Drop(ctx context.Context, sessionID string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(sessionID), s.sessionKey(sessionID))
		pipe.SRem(ctx, s.registry(), sessionID)
		return nil
	})
	return err
}

func (s *RedisStore) Register(ctx context.Context, sessionID string) error {
	return s.rdb.Set(ctx, s.sessionKey(sessionID), "", s.ttl).Err()
}

func (s *RedisStore) Registered(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.sessionKey(sessionID)).Result()
	return n > 0, err
}

func (s *RedisStore) MarkSeen(ctx context.Context, sessionID, date string) (string, error) {
	key := s.sessionKey(sessionID)

	var prev *redis.StringCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		prev = pipe.Get(ctx, key)
		pipe.Set(ctx, key, date, s.ttl)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}

	seen, err := prev.Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return seen, err
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
