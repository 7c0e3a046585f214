package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const helpText = "Commands: /chat reset, /chat rename <name>, /chat delete, /chat open <name>, /chat list, /system <prompt>"

// Result is the acknowledgement of a command plus the chat the client should
// point at afterwards.
type Result struct {
	Reply string
	Chat  string
}

type Dispatcher struct {
	store  Store
	events EventPublisher
	log    *zap.Logger
}

func NewDispatcher(store Store, events EventPublisher, log *zap.Logger) *Dispatcher {
	if events == nil {
		events = NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{store: store, events: events, log: log}
}

func (d *Dispatcher) publish(ctx context.Context, ev Event) {
	if err := d.events.Publish(ctx, ev); err != nil {
		d.log.Warn("publish chat event failed", zap.String("type", string(ev.Type)), zap.String("chat", ev.Chat), zap.Error(err))
	}
}

// Dispatch runs cmd against the current chat. Refusals (protected chat, name
// conflict) come back as a normal Result; only storage failures are errors.
func (d *Dispatcher) Dispatch(ctx context.Context, current string, cmd Command) (Result, error) {
	if current == "" {
		current = DefaultChat
	}
	res := Result{Chat: current}

	switch cmd.Kind {
	case CommandReset:
		if err := d.store.Clear(ctx, current); err != nil {
			return res, err
		}
		d.publish(ctx, NewEvent(EventChatReset, current))
		res.Reply = "Chat history has been reset."

	case CommandRename:
		err := d.store.Rename(ctx, current, cmd.Arg)
		switch {
		case errors.Is(err, ErrNameConflict):
			res.Reply = fmt.Sprintf("A chat named %q already exists.", cmd.Arg)
		case err != nil:
			return res, err
		default:
			ev := NewEvent(EventChatRenamed, cmd.Arg)
			ev.Detail = current
			d.publish(ctx, ev)
			res.Chat = cmd.Arg
			res.Reply = fmt.Sprintf("Chat renamed to %s.", cmd.Arg)
		}

	case CommandDelete:
		err := d.store.Delete(ctx, current)
		switch {
		case errors.Is(err, ErrProtectedSession):
			res.Reply = "The default chat cannot be deleted."
		case err != nil:
			return res, err
		default:
			d.publish(ctx, NewEvent(EventChatDeleted, current))
			res.Chat = DefaultChat
			res.Reply = fmt.Sprintf("Chat %s deleted.", current)
		}

	case CommandOpen:
		if err := d.store.Ensure(ctx, cmd.Arg); err != nil {
			return res, err
		}
		res.Chat = cmd.Arg
		res.Reply = fmt.Sprintf("Opened chat %s.", cmd.Arg)

	case CommandList:
		names, err := d.store.List(ctx)
		if err != nil {
			return res, err
		}
		res.Reply = strings.Join(names, ", ")

	case CommandSystem:
		history, err := d.store.Load(ctx, current)
		if err != nil {
			return res, err
		}
		if err := d.store.Save(ctx, current, WithSystemPrompt(history, cmd.Arg)); err != nil {
			return res, err
		}
		ev := NewEvent(EventSystemPrompt, current)
		ev.Role = RoleSystem
		d.publish(ctx, ev)
		res.Reply = "System prompt set to: " + cmd.Arg

	case CommandHelp:
		res.Reply = helpText

	case CommandUsage:
		res.Reply = fmt.Sprintf("Usage: %s <argument>", cmd.Arg)

	case CommandUnknown:
		res.Reply = "Unknown command: " + cmd.Raw

	default:
		return res, fmt.Errorf("%w: %q is not a command", ErrValidation, cmd.Raw)
	}

	d.log.Debug("command dispatched",
		zap.String("kind", cmd.Kind.String()),
		zap.String("chat", current),
		zap.String("next_chat", res.Chat))
	return res, nil
}
