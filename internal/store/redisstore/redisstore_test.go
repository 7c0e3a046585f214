package redisstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/chatrelay/internal/session"
)

func TestStore_PutGet(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	s := New(addr, "", 0, time.Minute)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Ping(ctx))

	id := uuid.NewString()
	t.Cleanup(func() { s.rdb.Del(ctx, pointerKey(id)) })

	p, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, session.Pointer{}, p)

	want := session.Pointer{Chat: "Final Plan", Provider: "openrouter", Model: "openrouter/auto"}
	require.NoError(t, s.Put(ctx, id, want))
	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, want, got)

	ttl, err := s.rdb.TTL(ctx, pointerKey(id)).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))
}
