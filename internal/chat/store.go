package chat

import (
	"context"
	"fmt"
	"strings"
)

// Store persists named chats and their ordered message lists. Every method is
// a single transaction; concurrent writers to the same chat are last-write-wins.
type Store interface {
	// Load returns the chat's messages in order, or an empty slice when the chat
	// does not exist. It never creates the chat.
	Load(ctx context.Context, name string) ([]Message, error)
	// Save replaces the full message list, creating the chat if needed.
	Save(ctx context.Context, name string, messages []Message) error
	// Clear drops all messages but keeps the chat itself.
	Clear(ctx context.Context, name string) error
	Rename(ctx context.Context, oldName, newName string) error
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]string, error)
	Ensure(ctx context.Context, name string) error
	// Exists reports whether the chat is stored. It never creates the chat.
	Exists(ctx context.Context, name string) (bool, error)
}

// MaxNameBytes bounds chat names so the file store's encoded file name stays
// under the 255-byte limit of common filesystems.
const MaxNameBytes = 180

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: chat name is required", ErrValidation)
	}
	if len(name) > MaxNameBytes {
		return fmt.Errorf("%w: chat name longer than %d bytes", ErrValidation, MaxNameBytes)
	}
	return nil
}

func validateMessages(messages []Message) error {
	for i, m := range messages {
		if !m.Role.Valid() {
			return fmt.Errorf("%w: message %d has invalid role %q", ErrValidation, i, m.Role)
		}
	}
	return nil
}

// WithSystemPrompt returns messages with prompt as the single leading system
// message, overwriting an existing one in place.
func WithSystemPrompt(messages []Message, prompt string) []Message {
	if len(messages) > 0 && messages[0].Role == RoleSystem {
		out := append([]Message(nil), messages...)
		out[0].Content = prompt
		return out
	}
	out := make([]Message, 0, len(messages)+1)
	out = append(out, Message{Role: RoleSystem, Content: prompt})
	return append(out, messages...)
}

// Window keeps the leading system prompt plus the n most recent turns.
// n <= 0 keeps everything.
func Window(messages []Message, n int) []Message {
	if n <= 0 || len(messages) <= n {
		return messages
	}
	if messages[0].Role == RoleSystem {
		rest := messages[1:]
		if len(rest) <= n {
			return messages
		}
		out := make([]Message, 0, n+1)
		out = append(out, messages[0])
		return append(out, rest[len(rest)-n:]...)
	}
	return messages[len(messages)-n:]
}
