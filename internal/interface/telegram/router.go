// Package telegram implements the Telegram bot for the guild ranking.
package telegram

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/alem-hub/albion-guild-ranking/internal/interface/telegram/handler"
)

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER TYPES
// ══════════════════════════════════════════════════════════════════════════════

// CommandFunc handles a command. A nil response sends nothing.
type CommandFunc func(ctx context.Context, req handler.Request) (*handler.Response, error)

// CallbackFunc handles an inline button press.
type CallbackFunc func(ctx context.Context, req handler.CallbackRequest) (*handler.Response, error)

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER
// Routes commands, text aliases and callbacks to handlers.
// ══════════════════════════════════════════════════════════════════════════════

// Router routes Telegram updates to handlers.
type Router struct {
	logger *slog.Logger

	mu        sync.RWMutex
	commands  map[string]CommandFunc
	aliases   map[string]string
	callbacks map[string]CallbackFunc

	defaultCommand CommandFunc
}

// NewRouter creates a new router.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		logger:    logger.With("component", "telegram_router"),
		commands:  make(map[string]CommandFunc),
		aliases:   make(map[string]string),
		callbacks: make(map[string]CallbackFunc),
		defaultCommand: func(context.Context, handler.Request) (*handler.Response, error) {
			return nil, nil
		},
	}
}

// RegisterCommand registers a handler for a command without the leading "/".
func (r *Router) RegisterCommand(command string, fn CommandFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[strings.ToLower(command)] = fn
}

// RegisterTextAlias maps a plain-text trigger word (e.g. "!ranking") to a
// registered command.
func (r *Router) RegisterTextAlias(word, command string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[strings.ToLower(word)] = strings.ToLower(command)
}

// RegisterCallbackPrefix registers a handler for callbacks matching a prefix.
// The prefix should include the trailing delimiter (e.g., "rank:").
func (r *Router) RegisterCallbackPrefix(prefix string, fn CallbackFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[prefix] = fn
}

// SetDefaultCommandHandler sets the handler for unknown commands.
func (r *Router) SetDefaultCommandHandler(fn CommandFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultCommand = fn
}

// Commands returns the registered command names, sorted.
func (r *Router) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveAlias turns "!ranking pvp" into ("ranking", "pvp").
func (r *Router) ResolveAlias(text string) (command, args string, ok bool) {
	word, rest, _ := strings.Cut(strings.TrimSpace(text), " ")

	r.mu.RLock()
	command, ok = r.aliases[strings.ToLower(word)]
	r.mu.RUnlock()

	return command, strings.TrimSpace(rest), ok
}

// HandleCommand routes a command to its handler.
func (r *Router) HandleCommand(ctx context.Context, req handler.Request) (*handler.Response, error) {
	r.mu.RLock()
	fn, ok := r.commands[req.Command]
	fallback := r.defaultCommand
	r.mu.RUnlock()

	if !ok {
		r.logger.Debug("no handler for command", "command", req.Command)
		return fallback(ctx, req)
	}
	return fn(ctx, req)
}

// HandleCallback routes a callback to the handler with the longest matching prefix.
func (r *Router) HandleCallback(ctx context.Context, req handler.CallbackRequest) (*handler.Response, error) {
	r.mu.RLock()
	var matchedPrefix string
	var matched CallbackFunc
	for prefix, fn := range r.callbacks {
		if strings.HasPrefix(req.Data, prefix) && len(prefix) > len(matchedPrefix) {
			matchedPrefix = prefix
			matched = fn
		}
	}
	r.mu.RUnlock()

	if matched == nil {
		r.logger.Debug("no handler for callback", "data", req.Data)
		return nil, nil
	}
	return matched(ctx, req)
}
