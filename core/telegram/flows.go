package telegram

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/botflow/core/flow"
	"github.com/m3rciful/botflow/core/logger"
)

// Launch binds a bot command to the flow it starts.
type Launch struct {
	Definition  *flow.Definition
	Description string
	// Hidden keeps the command out of the Telegram command menu.
	Hidden bool
}

// Flows maps bot commands to flow definitions. Registration happens during
// wiring; lookups run concurrently once the bot is serving.
type Flows struct {
	mu       sync.RWMutex
	launches map[string]Launch
}

// NewFlows creates an empty command-to-flow registry.
func NewFlows() *Flows {
	return &Flows{launches: make(map[string]Launch)}
}

// Register binds command (with leading slash) to launch. Invalid or duplicate
// registrations are logged and skipped, matching bot wiring being best-effort.
func (f *Flows) Register(command string, launch Launch) {
	if f == nil || launch.Definition == nil {
		logger.Warn(context.Background(), "tg.wire", "register.flow.skip",
			slog.String("command", command),
			slog.String("reason", "invalid"),
		)
		return
	}
	if !strings.HasPrefix(command, "/") {
		logger.Warn(context.Background(), "tg.wire", "register.flow.skip",
			slog.String("command", command),
			slog.String("reason", "no_slash_prefix"),
		)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.launches[command]; exists {
		logger.Warn(context.Background(), "tg.wire", "register.flow.duplicate",
			slog.String("command", command),
		)
		return
	}
	f.launches[command] = launch
}

// Lookup returns the launch bound to command.
func (f *Flows) Lookup(command string) (Launch, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	l, ok := f.launches[command]
	return l, ok
}

// Commands lists registered commands for bot.Handle wiring, sorted.
func (f *Flows) Commands() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.launches))
	for cmd := range f.launches {
		out = append(out, cmd)
	}
	sort.Strings(out)
	return out
}

// MenuCommands returns the visible commands for the Telegram command menu.
func (f *Flows) MenuCommands() []tele.Command {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var list []tele.Command
	for cmd, launch := range f.launches {
		if launch.Hidden {
			continue
		}
		desc := launch.Description
		if desc == "" {
			desc = launch.Definition.Name()
		}
		list = append(list, tele.Command{Text: cmd, Description: desc})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}
