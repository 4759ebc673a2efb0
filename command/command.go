package command

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/Anyuluo996/BotShepherd/errors"
	"github.com/Anyuluo996/BotShepherd/onebot"
)

// Request carries the context of one command invocation.
type Request struct {
	// Event is the message event that triggered the command.
	Event *onebot.Event
	// BotID is the self_id of the bot account the message arrived on.
	BotID string
	// Name is the resolved command name (never an alias).
	Name string
	// Args are the whitespace-separated words after the command word.
	Args []string
	// RawArgs is the argument text as typed, trimmed.
	RawArgs string
	// Prefix is the active command prefix, for rendering usage hints.
	Prefix string
}

// Command is one chat command. Execute returns the reply text sent back
// to the originating chat; an empty reply with a nil error stays silent.
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	// AlwaysAllow lets the command run for bots that have not passed key
	// auth yet. The auth command itself must be reachable this way.
	AlwaysAllow bool
	Execute     func(ctx context.Context, req *Request) (string, error)
}

// Registry holds the known commands and resolves names and aliases.
type Registry struct {
	mu     sync.RWMutex
	order  []*Command
	byName map[string]*Command
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Command)}
}

// Register adds a command. Names and aliases share one namespace and are
// matched case-insensitively.
func (r *Registry) Register(cmd *Command) error {
	if cmd == nil || cmd.Name == "" {
		return errors.InvalidInput("name", "command name is required")
	}
	if cmd.Execute == nil {
		return errors.InvalidInput("execute", "command has no handler")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(cmd.Aliases)+1)
	keys = append(keys, strings.ToLower(cmd.Name))
	for _, alias := range cmd.Aliases {
		keys = append(keys, strings.ToLower(alias))
	}
	for _, key := range keys {
		if _, exists := r.byName[key]; exists {
			return errors.Conflict("command name already registered: " + key)
		}
	}
	for _, key := range keys {
		r.byName[key] = cmd
	}
	r.order = append(r.order, cmd)
	return nil
}

// Resolve finds a command by name or alias.
func (r *Registry) Resolve(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.byName[strings.ToLower(name)]
	return cmd, ok
}

// Commands returns the registered commands in registration order.
func (r *Registry) Commands() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Command, len(r.order))
	copy(out, r.order)
	return out
}

// Names returns the sorted primary names of all registered commands.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.order))
	for _, cmd := range r.order {
		names = append(names, cmd.Name)
	}
	sort.Strings(names)
	return names
}
