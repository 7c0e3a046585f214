package chat

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/suPer8Hu/chatrelay/internal/common"
)

type EventType string

const (
	EventMessageAppended EventType = "message.appended"
	EventChatReset       EventType = "chat.reset"
	EventChatRenamed     EventType = "chat.renamed"
	EventChatDeleted     EventType = "chat.deleted"
	EventSystemPrompt    EventType = "chat.system_prompt"
)

// Event describes one committed store mutation.
type Event struct {
	ID     string    `json:"id"`
	Type   EventType `json:"type"`
	Chat   string    `json:"chat"`
	Role   Role      `json:"role,omitempty"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

var newEventID = common.NewULID

// NewEvent stamps an event with a fresh ULID. If the monotonic source fails
// the id falls back to ulid.Make, which never returns an error.
func NewEvent(t EventType, chat string) Event {
	id, err := newEventID()
	if err != nil || id == "" {
		id = ulid.Make().String()
	}
	return Event{ID: id, Type: t, Chat: chat, At: time.Now().UTC()}
}

// EventPublisher delivers events on a best-effort basis.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
