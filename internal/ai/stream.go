package ai

import "context"

// StreamProvider is an optional interface. Providers may implement streaming chat.
// Both returned channels are closed when the stream ends; errs carries at most one error.
type StreamProvider interface {
	StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error)
}

// send delivers a chunk unless ctx is cancelled first.
func send(ctx context.Context, chunks chan<- string, c string) bool {
	select {
	case chunks <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
