package chat

import "strings"

type CommandKind int

const (
	CommandNone CommandKind = iota
	CommandReset
	CommandRename
	CommandDelete
	CommandOpen
	CommandList
	CommandSystem
	CommandHelp
	CommandUsage
	CommandUnknown
)

func (k CommandKind) String() string {
	switch k {
	case CommandNone:
		return "none"
	case CommandReset:
		return "reset"
	case CommandRename:
		return "rename"
	case CommandDelete:
		return "delete"
	case CommandOpen:
		return "open"
	case CommandList:
		return "list"
	case CommandSystem:
		return "system"
	case CommandHelp:
		return "help"
	case CommandUsage:
		return "usage"
	default:
		return "unknown"
	}
}

type Command struct {
	Kind CommandKind
	// Arg keeps the user's original casing; chat names are case-sensitive.
	Arg string
	Raw string
}

func (c Command) IsCommand() bool { return c.Kind != CommandNone }

// prefixed commands take an argument; order matters, most specific first.
var prefixed = []struct {
	prefix string
	kind   CommandKind
}{
	{"/chat rename ", CommandRename},
	{"/chat open ", CommandOpen},
	{"/system ", CommandSystem},
}

var exact = map[string]CommandKind{
	"/chat reset":  CommandReset,
	"/chat delete": CommandDelete,
	"/chat list":   CommandList,
	"/chat help":   CommandHelp,
	"/help":        CommandHelp,
	// argument-taking verbs given without one
	"/chat rename": CommandUsage,
	"/chat open":   CommandUsage,
	"/system":      CommandUsage,
}

// ParseCommand classifies user input. Anything not starting with "/" after
// trimming is CommandNone and goes to the model unchanged.
func ParseCommand(input string) Command {
	trimmed := strings.TrimSpace(input)
	lower := strings.ToLower(trimmed)
	if !strings.HasPrefix(lower, "/") {
		return Command{Kind: CommandNone, Raw: input}
	}

	for _, p := range prefixed {
		if strings.HasPrefix(lower, p.prefix) {
			arg := strings.TrimSpace(trimmed[len(p.prefix):])
			if arg == "" {
				return Command{Kind: CommandUsage, Raw: trimmed, Arg: strings.TrimSpace(p.prefix)}
			}
			return Command{Kind: p.kind, Arg: arg, Raw: trimmed}
		}
	}

	if kind, ok := exact[lower]; ok {
		cmd := Command{Kind: kind, Raw: trimmed}
		if kind == CommandUsage {
			cmd.Arg = lower
		}
		return cmd
	}
	return Command{Kind: CommandUnknown, Raw: trimmed}
}
