package session

import (
	"context"
	"sync"

	"github.com/suPer8Hu/chatrelay/internal/chat"
)

// Pointer is one browser session's view: which chat is current and which
// provider/model its messages are relayed to.
type Pointer struct {
	Chat     string `json:"chat"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// CurrentChat returns the pointer's chat, falling back to the default chat.
func (p Pointer) CurrentChat() string {
	if p.Chat == "" {
		return chat.DefaultChat
	}
	return p.Chat
}

// PointerStore keeps pointers keyed by client id. Get on an unknown client
// returns the zero Pointer.
type PointerStore interface {
	Get(ctx context.Context, clientID string) (Pointer, error)
	Put(ctx context.Context, clientID string, p Pointer) error
}

type MemoryStore struct {
	mu       sync.RWMutex
	pointers map[string]Pointer
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pointers: make(map[string]Pointer)}
}

func (m *MemoryStore) Get(ctx context.Context, clientID string) (Pointer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pointers[clientID], nil
}

func (m *MemoryStore) Put(ctx context.Context, clientID string, p Pointer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pointers[clientID] = p
	return nil
}
