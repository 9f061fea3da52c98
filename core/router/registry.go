package router

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/m3rciful/rocketbot/core/commands"
	"github.com/m3rciful/rocketbot/core/logger"
)

// Registry holds bot commands. It is filled once during startup and read-only afterwards.
type Registry struct {
	commands map[string]commands.Command
	aliases  map[string]string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]commands.Command),
		aliases:  make(map[string]string),
	}
}

// RegisterCommand adds a new command. Invalid or duplicate registrations are logged and skipped.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) {
	key := NormalizeCommand(name)
	if r == nil || key == "" || cmd.Handler == nil || cmd.Description == "" {
		logger.Wire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.skip",
			slog.String("name", name),
			slog.String("reason", "invalid"),
		)
		return
	}
	if _, exists := r.resolve(key); exists {
		logger.Wire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.duplicate",
			slog.String("name", key),
		)
		return
	}
	r.commands[key] = cmd
	for _, alias := range cmd.Aliases {
		a := NormalizeCommand(alias)
		if a == "" {
			continue
		}
		if _, exists := r.resolve(a); exists {
			logger.Wire.LogAttrs(context.Background(), slog.LevelWarn, "register.alias.duplicate",
				slog.String("name", key),
				slog.String("alias", a),
			)
			continue
		}
		r.aliases[a] = key
	}
}

// ListCommands returns the command table sorted by name, optionally filtering out hidden commands.
func (r *Registry) ListCommands(visibleOnly bool) []commands.Info {
	list := make([]commands.Info, 0, len(r.commands))
	for name, meta := range r.commands {
		if visibleOnly && meta.Hidden {
			continue
		}
		list = append(list, commands.Info{
			Name:        name,
			Description: meta.Description,
			Aliases:     append([]string(nil), meta.Aliases...),
		})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// LookupCommand searches for a command by name or alias and returns the canonical key with metadata if found.
func (r *Registry) LookupCommand(token string) (string, commands.Command, bool) {
	key, ok := r.resolve(NormalizeCommand(token))
	if !ok {
		return "", commands.Command{}, false
	}
	return key, r.commands[key], true
}

// Len returns the number of registered commands.
func (r *Registry) Len() int {
	return len(r.commands)
}

func (r *Registry) resolve(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	if _, ok := r.commands[name]; ok {
		return name, true
	}
	if key, ok := r.aliases[name]; ok {
		return key, true
	}
	return "", false
}

// NormalizeCommand lowercases a command token and strips one leading "!" or "/".
func NormalizeCommand(token string) string {
	token = strings.TrimSpace(token)
	if strings.HasPrefix(token, "!") || strings.HasPrefix(token, "/") {
		token = token[1:]
	}
	return strings.ToLower(token)
}
