package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/zeusync/tabletop/internal/core/autoturn"
	"github.com/zeusync/tabletop/internal/core/events"
	"github.com/zeusync/tabletop/internal/core/lock"
	"github.com/zeusync/tabletop/internal/core/models"
	"github.com/zeusync/tabletop/internal/core/narration"
	"github.com/zeusync/tabletop/internal/core/observability/log"
	"github.com/zeusync/tabletop/internal/core/state"
	"github.com/zeusync/tabletop/internal/core/storage"
	"github.com/zeusync/tabletop/internal/core/turn"
)

// Runner starts autonomous turns for a session. *autoturn.Loop satisfies it.
type Runner interface {
	Trigger(ctx context.Context, sessionID string, opts autoturn.RunOptions) bool
}

var _ Runner = (*autoturn.Loop)(nil)

type Dispatcher struct {
	registry  *Registry
	locks     *lock.Manager
	store     *state.Store
	seq       *turn.Sequencer
	locations storage.LocationRepository
	broadcast events.Broadcaster
	narrator  narration.Narrator
	runner    Runner
	logger    log.Log
}

func NewDispatcher(
	registry *Registry,
	locks *lock.Manager,
	store *state.Store,
	seq *turn.Sequencer,
	locations storage.LocationRepository,
	broadcast events.Broadcaster,
	narrator narration.Narrator,
	runner Runner,
	logger log.Log,
) *Dispatcher {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if narrator == nil {
		narrator = narration.Noop{}
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Dispatcher{
		registry:  registry,
		locks:     locks,
		store:     store,
		seq:       seq,
		locations: locations,
		broadcast: broadcast,
		narrator:  narration.WithTimeout(narrator, narration.DefaultTimeout, logger),
		runner:    runner,
		logger:    logger.With(log.Component("dispatcher")),
	}
}

func rejected(err error) bool {
	return turn.IsRuleError(err) || errors.Is(err, ErrMissingArgument) || errors.Is(err, ErrUnknownCommand)
}

// Dispatch runs cmd against the session under its lock. The state is saved
// when the handler changed it, including when the handler then rejected the
// command. Notifications, narration and autonomous turns follow once the
// lock is released. Only lock, storage and invariant failures are returned
// as errors.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID string, cmd Command) (Outcome, error) {
	logger := d.logger.With(log.Session(sessionID), log.String("command", cmd.Name))
	h, found := d.registry.Lookup(cmd.Name)
	if !found {
		return Outcome{Message: fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Name).Error()}, nil
	}

	var (
		out   Outcome
		env   *Env
		runAI bool
	)
	err := d.locks.WithLock(ctx, sessionID, func(ctx context.Context) error {
		gs, err := d.store.Load(ctx, sessionID)
		if err != nil {
			return err
		}
		wasCombat := gs.Phase == models.PhaseCombat
		prevActive := gs.ActiveEntityID

		env = &Env{ctx: ctx, state: gs, seq: d.seq, locations: d.locations}
		res, herr := h(env, cmd)
		switch {
		case herr == nil:
			out = res
		case rejected(herr):
			out = Outcome{Message: herr.Error()}
		default:
			return herr
		}
		if !env.mutated {
			return nil
		}
		if err := d.store.Save(ctx, sessionID, gs); err != nil {
			return err
		}

		env.Notify(events.State(gs))
		if wasCombat && gs.Phase != models.PhaseCombat && gs.Outcome != models.OutcomeNone {
			env.Notify(events.CombatEnded(sessionID, gs.Outcome))
		}
		if active := gs.ActiveEntity(); gs.Phase == models.PhaseCombat && active != nil &&
			(!wasCombat || active.ID != prevActive) {
			env.Notify(events.TurnStarted(sessionID, active))
			runAI = !active.IsHuman()
		}
		return nil
	})
	if err != nil {
		logger.Warn("command failed", log.Error(err))
		return Outcome{}, fmt.Errorf("dispatch %s on %s: %w", cmd.Name, sessionID, err)
	}
	if !out.OK {
		logger.Debug("command rejected", log.String("reason", out.Message))
	}

	if d.broadcast != nil {
		for _, n := range env.outbox {
			d.broadcast.Publish(ctx, n)
		}
		if env.trigger != "" {
			if res := d.narrator.Narrate(ctx, sessionID, env.trigger, env.mode); res.Ok() {
				d.broadcast.Publish(ctx, events.Narration(sessionID, cmd.Name, res.Text))
			}
		}
	}
	if runAI && d.runner != nil {
		d.runner.Trigger(ctx, sessionID, autoturn.RunOptions{ProcessCurrent: true})
	}
	return out, nil
}
