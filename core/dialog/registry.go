package dialog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/vexa-ai/vexabot/core/logger"
)

// Registry holds the static description of every flow and global command.
// It is populated at startup and read-only afterwards.
type Registry struct {
	flows    map[FlowID]Flow
	commands map[string]CommandHandler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		flows:    make(map[FlowID]Flow),
		commands: make(map[string]CommandHandler),
	}
}

// AddFlow registers a flow definition.
func (r *Registry) AddFlow(fl Flow) error {
	if r == nil || fl.ID == "" {
		return errors.New("dialog: invalid flow registration")
	}
	if _, exists := r.flows[fl.ID]; exists {
		logger.Warn(context.Background(), "dialog", "register.flow.duplicate",
			slog.String("flow", string(fl.ID)),
		)
		return fmt.Errorf("dialog: flow already registered: %s", fl.ID)
	}
	r.flows[fl.ID] = fl
	return nil
}

// AddCommand registers a global slash command handler.
func (r *Registry) AddCommand(name string, h CommandHandler) error {
	if r == nil || name == "" || h == nil {
		return errors.New("dialog: invalid command registration")
	}
	if !strings.HasPrefix(name, "/") {
		return fmt.Errorf("dialog: command %q must start with '/'", name)
	}
	if _, exists := r.commands[name]; exists {
		logger.Warn(context.Background(), "dialog", "register.command.duplicate",
			slog.String("name", name),
		)
		return fmt.Errorf("dialog: command already registered: %s", name)
	}
	r.commands[name] = h
	return nil
}

// Flow returns a flow definition by id.
func (r *Registry) Flow(id FlowID) (Flow, bool) {
	fl, ok := r.flows[id]
	return fl, ok
}

// Command returns a global command handler by name.
func (r *Registry) Command(name string) (CommandHandler, bool) {
	h, ok := r.commands[name]
	return h, ok
}

// Flows returns sorted flow ids (for diagnostics).
func (r *Registry) Flows() []FlowID {
	ids := make([]FlowID, 0, len(r.flows))
	for id := range r.flows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Validate checks the structural invariants of every registered flow: a
// non-empty state set, an entry state that exists, consistent state ids, and
// non-empty action ids. It is meant to run once at startup.
func (r *Registry) Validate() error {
	var errs []error
	for id, fl := range r.flows {
		if len(fl.States) == 0 {
			errs = append(errs, fmt.Errorf("flow %s: no states", id))
			continue
		}
		if fl.Entry == "" {
			errs = append(errs, fmt.Errorf("flow %s: no entry state", id))
		} else if _, ok := fl.States[fl.Entry]; !ok {
			errs = append(errs, fmt.Errorf("flow %s: entry state %s not declared", id, fl.Entry))
		}
		for sid, st := range fl.States {
			if sid == "" {
				errs = append(errs, fmt.Errorf("flow %s: empty state id", id))
			}
			if st.ID != "" && st.ID != sid {
				errs = append(errs, fmt.Errorf("flow %s: state key %s does not match id %s", id, sid, st.ID))
			}
			if st.Render == nil {
				errs = append(errs, fmt.Errorf("flow %s: state %s has no renderer", id, sid))
			}
			for aid := range st.Actions {
				if aid == "" {
					errs = append(errs, fmt.Errorf("flow %s: state %s has an empty action id", id, sid))
				}
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("dialog: registry validation failed: %w", errors.Join(errs...))
	}
	return nil
}
