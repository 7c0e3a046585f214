package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/suPer8Hu/chatrelay/internal/session"
)

const keyPrefix = "chatrelay:pointer:"

// Store keeps session pointers in a redis hash per client, refreshed to ttl
// on every write.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(addr, password string, db int, ttl time.Duration) *Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func pointerKey(clientID string) string { return keyPrefix + clientID }

func (s *Store) Get(ctx context.Context, clientID string) (session.Pointer, error) {
	vals, err := s.rdb.HGetAll(ctx, pointerKey(clientID)).Result()
	if err != nil {
		return session.Pointer{}, fmt.Errorf("redis get pointer: %w", err)
	}
	return session.Pointer{
		Chat:     vals["chat"],
		Provider: vals["provider"],
		Model:    vals["model"],
	}, nil
}

func (s *Store) Put(ctx context.Context, clientID string, p session.Pointer) error {
	key := pointerKey(clientID)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]any{
			"chat":     p.Chat,
			"provider": p.Provider,
			"model":    p.Model,
		})
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put pointer: %w", err)
	}
	return nil
}

var _ session.PointerStore = (*Store)(nil)
