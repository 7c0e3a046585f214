package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	p, err := s.Get(ctx, "nobody")
	require.NoError(t, err)
	require.Equal(t, Pointer{}, p)
	require.Equal(t, "default", p.CurrentChat())

	require.NoError(t, s.Put(ctx, "a", Pointer{Chat: "work", Provider: "ollama", Model: "llama3"}))
	require.NoError(t, s.Put(ctx, "b", Pointer{Chat: "play"}))

	p, err = s.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "work", p.CurrentChat())
	require.Equal(t, "llama3", p.Model)

	p, err = s.Get(ctx, "b")
	require.NoError(t, err)
	require.Equal(t, "play", p.Chat)
	require.Empty(t, p.Provider)
}
