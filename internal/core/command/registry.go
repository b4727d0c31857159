// Package command is the action boundary of a session: every player or
// client request is a named Command run by a Handler under the session lock.
package command

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/zeusync/tabletop/internal/core/events"
	"github.com/zeusync/tabletop/internal/core/hex"
	"github.com/zeusync/tabletop/internal/core/models"
	"github.com/zeusync/tabletop/internal/core/narration"
	"github.com/zeusync/tabletop/internal/core/storage"
	"github.com/zeusync/tabletop/internal/core/turn"
)

type Command struct {
	Name     string     `json:"name" yaml:"name"`
	ActorID  string     `json:"actor_id" yaml:"actor_id"`
	TargetID string     `json:"target_id,omitempty" yaml:"target_id,omitempty"`
	Dest     *hex.Coord `json:"dest,omitempty" yaml:"dest,omitempty"`
	Weapon   string     `json:"weapon,omitempty" yaml:"weapon,omitempty"`
	Spell    string     `json:"spell,omitempty" yaml:"spell,omitempty"`
}

// Outcome is what the caller of Dispatch sees. Rule rejections come back as
// OK == false with a message; they are not errors.
type Outcome struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Result  any    `json:"result,omitempty"`
}

func ok(result any, format string, args ...any) Outcome {
	return Outcome{OK: true, Message: fmt.Sprintf(format, args...), Result: result}
}

// Env is a handler's view of the locked session.
type Env struct {
	ctx       context.Context
	state     *models.GameState
	seq       *turn.Sequencer
	locations storage.LocationRepository

	mutated bool
	outbox  []events.Notification
	trigger string
	mode    narration.Mode
}

func (e *Env) Context() context.Context   { return e.ctx }
func (e *Env) State() *models.GameState   { return e.state }
func (e *Env) Sequencer() *turn.Sequencer { return e.seq }

// Changed marks the state as modified so it is saved before the lock is
// released.
func (e *Env) Changed() {
	e.mutated = true
}

// Notify queues a notification for after the lock is released.
func (e *Env) Notify(n events.Notification) {
	e.outbox = append(e.outbox, n)
}

// Narrate asks for flavour text about trigger once the lock is released.
func (e *Env) Narrate(trigger string, mode narration.Mode) {
	e.trigger, e.mode = trigger, mode
}

// Handler runs one command. It returns rule errors as errors; the
// dispatcher turns them into a rejected Outcome.
type Handler func(env *Env, cmd Command) (Outcome, error)

// Registry maps command names to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(name string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.handlers[name]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, name)
	}
	r.handlers[name] = h
	return nil
}

func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.handlers))
}

// DefaultRegistry holds the built-in commands.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for name, h := range map[string]Handler{
		"move":         handleMove,
		"attack":       handleAttack,
		"cast":         handleCast,
		"open":         handleOpen,
		"identify":     handleIdentify,
		"travel":       handleTravel,
		"end_turn":     handleEndTurn,
		"start_combat": handleStartCombat,
		"talk":         handleTalk,
		"leave_talk":   handleLeaveTalk,
	} {
		_ = r.Register(name, h)
	}
	return r
}
