package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/suPer8Hu/chatrelay/internal/ai"
	"go.uber.org/zap"
)

// Service relays a chat's history to the selected provider and persists both
// sides of the exchange.
type Service struct {
	store             Store
	registry          *ai.Registry
	events            EventPublisher
	log               *zap.Logger
	contextWindowSize int
}

type ServiceOption func(*Service)

func WithEvents(p EventPublisher) ServiceOption {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithContextWindow limits how many turns are sent upstream; 0 sends the full history.
func WithContextWindow(n int) ServiceOption {
	return func(s *Service) {
		if n < 0 || n > 1000 {
			n = 0
		}
		s.contextWindowSize = n
	}
}

func NewService(store Store, registry *ai.Registry, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		registry: registry,
		events:   NopPublisher{},
		log:      zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Store() Store { return s.store }

// History returns the chat's messages in order.
func (s *Service) History(ctx context.Context, chatName string) ([]Message, error) {
	return s.store.Load(ctx, chatName)
}

func (s *Service) publish(ctx context.Context, chatName string, role Role) {
	ev := NewEvent(EventMessageAppended, chatName)
	ev.Role = role
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("publish chat event failed", zap.String("chat", chatName), zap.Error(err))
	}
}

func toProviderMessages(msgs []Message) []ai.Message {
	out := make([]ai.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ai.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}

// appendUser resolves the provider, then persists the user turn before any
// upstream call so a failed relay still leaves it in history.
func (s *Service) appendUser(ctx context.Context, chatName, providerName, model, content string) (ai.Provider, []Message, error) {
	if chatName == "" {
		chatName = DefaultChat
	}
	provider, err := s.registry.Get(ctx, providerName, model)
	if err != nil {
		return nil, nil, upstreamErr(err)
	}

	history, err := s.store.Load(ctx, chatName)
	if err != nil {
		return nil, nil, err
	}
	history = append(history, Message{Role: RoleUser, Content: content, CreatedAt: time.Now()})
	if err := s.store.Save(ctx, chatName, history); err != nil {
		return nil, nil, err
	}
	s.publish(ctx, chatName, RoleUser)
	return provider, history, nil
}

func (s *Service) appendAssistant(ctx context.Context, chatName string, history []Message, reply string) error {
	if chatName == "" {
		chatName = DefaultChat
	}
	history = append(history, Message{Role: RoleAssistant, Content: reply, CreatedAt: time.Now()})
	if err := s.store.Save(ctx, chatName, history); err != nil {
		return err
	}
	s.publish(ctx, chatName, RoleAssistant)
	return nil
}

// SendMessage is the batch relay: it waits for the complete reply.
func (s *Service) SendMessage(ctx context.Context, chatName, providerName, model, content string) (string, error) {
	provider, history, err := s.appendUser(ctx, chatName, providerName, model, content)
	if err != nil {
		return "", err
	}

	start := time.Now()
	reply, err := provider.Chat(ctx, toProviderMessages(Window(history, s.contextWindowSize)))
	if err != nil {
		s.log.Warn("provider call failed",
			zap.String("provider", providerName),
			zap.String("model", model),
			zap.Duration("cost", time.Since(start)),
			zap.Error(err))
		return "", upstreamErr(err)
	}

	if err := s.appendAssistant(ctx, chatName, history, reply); err != nil {
		return "", err
	}
	s.log.Debug("relay complete",
		zap.String("chat", chatName),
		zap.String("provider", providerName),
		zap.Duration("cost", time.Since(start)))
	return reply, nil
}

// SendMessageStream stores the user message immediately, forwards assistant
// fragments in arrival order, and stores the concatenated reply once the
// upstream stream completes. Both channels close when the relay ends; errs
// carries at most one error.
//
// If ctx is cancelled (client went away) forwarding stops, the upstream is
// drained, and whatever text arrived is still persisted.
func (s *Service) SendMessageStream(ctx context.Context, chatName, providerName, model, content string) (<-chan string, <-chan error) {
	outChunks := make(chan string)
	outErrs := make(chan error, 1)

	go func() {
		defer close(outChunks)
		defer close(outErrs)

		provider, history, err := s.appendUser(ctx, chatName, providerName, model, content)
		if err != nil {
			outErrs <- err
			return
		}

		sp, ok := provider.(ai.StreamProvider)
		if !ok {
			outErrs <- upstreamErr(fmt.Errorf("provider %s does not support streaming", providerName))
			return
		}

		pChunks, pErrs := sp.StreamChat(ctx, toProviderMessages(Window(history, s.contextWindowSize)))

		var b strings.Builder
		forwarding := true
		for c := range pChunks {
			b.WriteString(c)
			if !forwarding {
				continue
			}
			select {
			case outChunks <- c:
			case <-ctx.Done():
				forwarding = false
			}
		}

		cancelled := ctx.Err() != nil
		if err := <-pErrs; err != nil && !cancelled {
			outErrs <- upstreamErr(err)
			return
		}

		reply := b.String()
		if cancelled {
			if reply == "" {
				return
			}
			s.log.Info("client disconnected mid-stream, keeping partial reply",
				zap.String("chat", chatName),
				zap.Int("bytes", len(reply)))
		}

		saveCtx := context.WithoutCancel(ctx)
		if err := s.appendAssistant(saveCtx, chatName, history, reply); err != nil {
			if !cancelled {
				outErrs <- err
			}
			s.log.Error("persist assistant reply failed", zap.String("chat", chatName), zap.Error(err))
		}
	}()

	return outChunks, outErrs
}

// IsUpstream reports whether err came from the inference endpoint.
func IsUpstream(err error) bool { return errors.Is(err, ErrUpstreamUnavailable) }
