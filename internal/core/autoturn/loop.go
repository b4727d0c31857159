// Package autoturn drives AI-controlled entities through combat. A run keeps
// taking turns until a human is up, combat ends or the iteration bound is
// hit. The session lock is never held across the pacing pause or a
// narration request; every reacquisition reloads the state.
package autoturn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zeusync/tabletop/internal/core/dice"
	"github.com/zeusync/tabletop/internal/core/events"
	"github.com/zeusync/tabletop/internal/core/lock"
	"github.com/zeusync/tabletop/internal/core/models"
	"github.com/zeusync/tabletop/internal/core/narration"
	"github.com/zeusync/tabletop/internal/core/observability/log"
	"github.com/zeusync/tabletop/internal/core/state"
	"github.com/zeusync/tabletop/internal/core/turn"
)

type StopReason string

const (
	StopHumanTurn  StopReason = "human_turn"
	StopCombatOver StopReason = "combat_over"
	StopNoLiving   StopReason = "no_living"
	StopLimit      StopReason = "iteration_limit"
)

type RunOptions struct {
	// ProcessCurrent acts for the entity already holding the turn instead of
	// advancing first. Used right after combat starts.
	ProcessCurrent bool
}

type Report struct {
	Iterations int
	Stop       StopReason
	// Acted lists the entities that took a turn, in order.
	Acted []string
}

type Loop struct {
	locks     *lock.Manager
	store     *state.Store
	seq       *turn.Sequencer
	narrator  narration.Narrator
	broadcast events.Broadcaster
	policy    Policy
	barks     dice.Roller
	cfg       Config
	logger    log.Log

	// sleep is the pacing pause; it returns early with ctx.Err().
	sleep func(ctx context.Context, d time.Duration) error

	mu sync.Mutex
	// running holds the sessions with a run in flight. The value is set when
	// a trigger arrived during the run and another pass is owed.
	running map[string]bool
	base    context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(
	locks *lock.Manager,
	store *state.Store,
	seq *turn.Sequencer,
	narrator narration.Narrator,
	broadcast events.Broadcaster,
	cfg Config,
	logger log.Log,
) *Loop {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = log.Nop()
	}
	if narrator == nil {
		narrator = narration.Noop{}
	}
	seed, err := dice.NewSeed()
	if err != nil {
		seed = time.Now().UnixNano()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Loop{
		locks:     locks,
		store:     store,
		seq:       seq,
		narrator:  narration.WithTimeout(narrator, cfg.NarrationTimeout, logger),
		broadcast: broadcast,
		policy:    WeakestFoe,
		barks:     dice.NewRoller(seed),
		cfg:       cfg,
		logger:    logger.With(log.Component("autoturn")),
		sleep:     pause,
		running:   make(map[string]bool),
		base:      base,
		cancel:    cancel,
	}
}

// WithPolicy replaces the target selection.
func (l *Loop) WithPolicy(p Policy) *Loop {
	l.policy = p
	return l
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (l *Loop) publish(ctx context.Context, batch []events.Notification) {
	if l.broadcast == nil {
		return
	}
	for _, n := range batch {
		l.broadcast.Publish(ctx, n)
	}
}

// Run processes AI turns of a session until a human is up, combat is over or
// the iteration bound is reached.
func (l *Loop) Run(ctx context.Context, sessionID string, opts RunOptions) (Report, error) {
	var (
		report      Report
		limit       = l.cfg.MinIterations
		bounded     bool
		skipAdvance = opts.ProcessCurrent
	)
	logger := l.logger.With(log.Session(sessionID))

	for report.Iterations < limit {
		report.Iterations++

		// Hand the turn over and decide whether the AI is up.
		var (
			activeID string
			stop     StopReason
			outbox   []events.Notification
		)
		err := l.locks.WithLock(ctx, sessionID, func(ctx context.Context) error {
			gs, err := l.store.Load(ctx, sessionID)
			if err != nil {
				return err
			}
			if gs.Phase != models.PhaseCombat {
				stop = StopCombatOver
				return nil
			}
			if !bounded {
				limit = max(2*len(gs.TurnOrder), l.cfg.MinIterations)
				bounded = true
			}

			active := gs.ActiveEntity()
			if !skipAdvance || !active.IsAlive() {
				next, err := l.seq.Advance(gs)
				if errors.Is(err, turn.ErrNoLivingEntities) {
					stop = StopNoLiving
					return nil
				}
				if err != nil {
					return err
				}
				if err := l.store.Save(ctx, sessionID, gs); err != nil {
					return err
				}
				active = next
				outbox = append(outbox, events.State(gs))
			}
			activeID = active.ID
			outbox = append(outbox, events.TurnStarted(sessionID, active))
			if active.IsHuman() {
				stop = StopHumanTurn
			}
			return nil
		})
		skipAdvance = false
		if err != nil {
			return report, fmt.Errorf("autoturn %s: %w", sessionID, err)
		}
		l.publish(ctx, outbox)
		if stop != "" {
			report.Stop = stop
			logger.Debug("autoturn stopped", log.String("reason", string(stop)), log.Int("iterations", report.Iterations))
			return report, nil
		}

		if err := l.sleep(ctx, l.cfg.Pace); err != nil {
			return report, err
		}

		done, stale, err := l.act(ctx, sessionID, activeID, logger)
		if err != nil {
			return report, fmt.Errorf("autoturn %s: %w", sessionID, err)
		}
		if stale {
			// someone else moved the session on while we paused
			skipAdvance = true
			continue
		}
		report.Acted = append(report.Acted, activeID)
		if done {
			report.Stop = StopCombatOver
			return report, nil
		}
	}

	report.Stop = StopLimit
	logger.Warn("autoturn iteration bound reached", log.Int("iterations", report.Iterations))
	return report, nil
}

// act takes activeID's turn. stale is set when, after reloading, activeID no
// longer holds the turn; nothing is written in that case.
func (l *Loop) act(ctx context.Context, sessionID, activeID string, logger log.Log) (done, stale bool, err error) {
	var (
		outbox  []events.Notification
		trigger string
	)
	err = l.locks.WithLock(ctx, sessionID, func(ctx context.Context) error {
		gs, err := l.store.Load(ctx, sessionID)
		if err != nil {
			return err
		}
		actor := gs.Entity(activeID)
		if gs.Phase != models.PhaseCombat || gs.ActiveEntityID != activeID || !actor.IsAlive() {
			stale = true
			return nil
		}

		target, ok := l.policy.Target(gs, actor)
		if !ok {
			trigger = describe(actor, actor, false, nil, "")
			return nil
		}

		move, err := l.seq.Approach(gs, actor.ID, target.ID, l.seq.Resolver().WeaponReach(actor))
		switch {
		case err == nil:
		case turn.IsRuleError(err):
			logger.Debug("ai could not move", log.Entity(actor.ID), log.Error(err))
		default:
			return err
		}

		var attack *turn.AttackOutcome
		out, err := l.seq.Attack(gs, actor.ID, target.ID, "")
		switch {
		case err == nil:
			attack = &out
		case turn.IsRuleError(err):
			logger.Debug("ai could not attack", log.Entity(actor.ID), log.String("target", target.ID), log.Error(err))
		default:
			return err
		}

		if !move.Moved() && attack == nil {
			trigger = describe(actor, target, false, nil, "")
			return nil
		}
		if err := l.store.Save(ctx, sessionID, gs); err != nil {
			return err
		}

		if move.Moved() {
			outbox = append(outbox, events.Path(sessionID, actor.ID, move.Path))
		}
		outbox = append(outbox, events.State(gs))
		if attack != nil && attack.Death != nil && attack.Death.Ended {
			done = true
			outbox = append(outbox, events.CombatEnded(sessionID, attack.Death.Outcome))
		}

		bark, _ := narration.Bark(l.barks, actor, models.BarkAttack)
		trigger = describe(actor, target, move.Moved(), attack, bark)
		return nil
	})
	if err != nil || stale {
		return false, stale, err
	}

	l.publish(ctx, outbox)
	if res := l.narrator.Narrate(ctx, sessionID, trigger, narration.ModeCombat); res.Ok() {
		l.publish(ctx, []events.Notification{events.Narration(sessionID, "ai_turn", res.Text)})
	}
	return done, false, nil
}

// Trigger starts a background run for sessionID. When a run is already in
// flight it is asked for one more pass over the current turn once it
// finishes, so a trigger is never lost. Cancelling ctx does not stop the
// run; Close does.
func (l *Loop) Trigger(ctx context.Context, sessionID string, opts RunOptions) bool {
	l.mu.Lock()
	if l.base.Err() != nil {
		l.mu.Unlock()
		return false
	}
	if _, busy := l.running[sessionID]; busy {
		l.running[sessionID] = true
		l.mu.Unlock()
		return true
	}
	l.running[sessionID] = false
	l.wg.Add(1)
	l.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(l.base, cancel)
	go func() {
		defer l.wg.Done()
		defer stop()
		defer cancel()

		for {
			l.runOnce(runCtx, sessionID, opts)
			if !l.again(sessionID) {
				return
			}
			opts = RunOptions{ProcessCurrent: true}
		}
	}()
	return true
}

// again clears the owed pass of sessionID and reports whether there was one.
// Without one the session leaves running in the same critical section.
func (l *Loop) again(sessionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running[sessionID] && l.base.Err() == nil {
		l.running[sessionID] = false
		return true
	}
	delete(l.running, sessionID)
	return false
}

func (l *Loop) runOnce(ctx context.Context, sessionID string, opts RunOptions) {
	report, err := l.Run(ctx, sessionID, opts)
	if err != nil && !errors.Is(err, context.Canceled) {
		l.logger.Error("autoturn run failed", log.Session(sessionID), log.Error(err))
		return
	}
	l.logger.Debug("autoturn run finished", log.Session(sessionID),
		log.String("stop", string(report.Stop)), log.Strings("acted", report.Acted))
}

// Running reports whether a background run is in flight for sessionID.
func (l *Loop) Running(sessionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.running[sessionID]
	return ok
}

// Close cancels background runs and waits for them to return.
func (l *Loop) Close() {
	l.cancel()
	l.wg.Wait()
}
