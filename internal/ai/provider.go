package ai

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one provider-neutral chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider sends a full conversation and returns the complete assistant reply.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// ModelLister is an optional interface for providers that can enumerate their models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}
