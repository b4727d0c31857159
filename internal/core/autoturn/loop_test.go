package autoturn

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zeusync/tabletop/internal/core/dice"
	"github.com/zeusync/tabletop/internal/core/events"
	"github.com/zeusync/tabletop/internal/core/hex"
	"github.com/zeusync/tabletop/internal/core/lock"
	"github.com/zeusync/tabletop/internal/core/models"
	"github.com/zeusync/tabletop/internal/core/narration"
	"github.com/zeusync/tabletop/internal/core/observability/log"
	"github.com/zeusync/tabletop/internal/core/resolver"
	"github.com/zeusync/tabletop/internal/core/state"
	"github.com/zeusync/tabletop/internal/core/storage/memory"
	"github.com/zeusync/tabletop/internal/core/turn"
)

type fixture struct {
	loop   *Loop
	mem    *memory.Store
	store  *state.Store
	locks  *lock.Manager
	seq    *turn.Sequencer
	events *events.Recorder
}

func newFixture(narrator narration.Narrator, rolls ...int) *fixture {
	mem := memory.New()
	store := state.NewStore(mem, mem, models.DefaultCatalog(), log.Nop())
	locks := lock.NewManager(lock.NewMemoryBackend(0), lock.DefaultConfig(), log.Nop())
	res := resolver.New(dice.NewScripted(rolls...), models.DefaultCatalog(), resolver.Options{})
	seq := turn.New(res, turn.DefaultConfig(), log.Nop())
	rec := events.NewRecorder(64)

	l := New(locks, store, seq, narrator, rec, Config{}, log.Nop())
	l.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return &fixture{loop: l, mem: mem, store: store, locks: locks, seq: seq, events: rec}
}

func disk(radius int) hex.Set {
	out := hex.NewSet()
	for q := -radius; q <= radius; q++ {
		for r := max(-radius, -q-radius); r <= min(radius, -q+radius); r++ {
			out.Add(hex.New(q, r))
		}
	}
	return out
}

func at(q, r int) *hex.Coord {
	c := hex.New(q, r)
	return &c
}

func aria(pos *hex.Coord) *models.Entity {
	return &models.Entity{
		ID: "hero", Kind: models.KindPlayer, Name: "Aria", HPCurrent: 12, HPMax: 12, Speed: 30,
		Position: pos,
	}
}

func goblin(pos *hex.Coord) *models.Entity {
	return &models.Entity{
		ID: "goblin", Kind: models.KindEnemy, Name: "Goblin", HPCurrent: 7, HPMax: 7, NaturalArmor: 13, Speed: 30,
		Position:  pos,
		Abilities: models.Abilities{Dex: 14},
		Equipment: models.Equipment{MainHand: "dagger"},
	}
}

func combat(party, enemies []*models.Entity, walkable hex.Set, order ...string) *models.GameState {
	return &models.GameState{
		SessionID:      "s1",
		Phase:          models.PhaseCombat,
		Location:       models.NewLocation("cave", "Cave", "", walkable, nil, nil),
		Party:          party,
		Enemies:        enemies,
		TurnOrder:      order,
		ActiveEntityID: order[0],
	}
}

func TestRunStopsAtHumanTurn(t *testing.T) {
	ctx := context.Background()
	// goblin: to hit 15+2, dagger 3+2
	f := newFixture(narration.Echo{}, 15, 3)
	require.NoError(t, f.store.Create(ctx, combat(
		[]*models.Entity{aria(at(0, 0))}, []*models.Entity{goblin(at(3, 0))}, disk(5), "hero", "goblin")))

	report, err := f.loop.Run(ctx, "s1", RunOptions{})
	require.NoError(t, err)
	require.Equal(t, StopHumanTurn, report.Stop)
	require.Equal(t, []string{"goblin"}, report.Acted)
	require.Equal(t, 2, report.Iterations)

	gs, err := f.store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "hero", gs.ActiveEntityID)
	require.Equal(t, 7, gs.Entity("hero").HPCurrent)
	require.Equal(t, hex.New(1, 0), *gs.Entity("goblin").Position, "goblin closes to melee along the shortest path")

	require.Equal(t, []events.Kind{
		events.KindState, events.KindTurnStart,
		events.KindPath, events.KindState, events.KindNarration,
		events.KindState, events.KindTurnStart,
	}, f.events.Kinds())
}

func TestRunProcessCurrentUntilDefeat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(narration.Echo{}, 15, 3)
	hero := aria(at(0, 0))
	hero.HPCurrent = 2
	require.NoError(t, f.store.Create(ctx, combat(
		[]*models.Entity{hero}, []*models.Entity{goblin(at(1, 0))}, disk(5), "goblin", "hero")))

	report, err := f.loop.Run(ctx, "s1", RunOptions{ProcessCurrent: true})
	require.NoError(t, err)
	require.Equal(t, StopCombatOver, report.Stop)
	require.Equal(t, 1, report.Iterations)
	require.Equal(t, []string{"goblin"}, report.Acted)

	gs, err := f.store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, models.PhaseExploration, gs.Phase)
	require.Equal(t, models.OutcomeDefeat, gs.Outcome)
	require.Zero(t, gs.Entity("hero").HPCurrent)

	kinds := f.events.Kinds()
	require.Contains(t, kinds, events.KindCombatEnd)
	require.NotContains(t, kinds, events.KindPath, "already adjacent")

	t.Run("Nothing Left To Do", func(t *testing.T) {
		report, err := f.loop.Run(ctx, "s1", RunOptions{})
		require.NoError(t, err)
		require.Equal(t, StopCombatOver, report.Stop)
		require.Empty(t, report.Acted)
	})
}

func TestRunSavesOncePerStep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(narration.Noop{}, 15, 3)
	require.NoError(t, f.store.Create(ctx, combat(
		[]*models.Entity{aria(at(0, 0))}, []*models.Entity{goblin(at(3, 0))}, disk(5), "hero", "goblin")))
	_, created := f.mem.Writes()

	report, err := f.loop.Run(ctx, "s1", RunOptions{})
	require.NoError(t, err)
	require.Equal(t, []string{"goblin"}, report.Acted)

	_, appends := f.mem.Writes()
	// advance to the goblin, its move and attack together, advance to the hero
	require.Equal(t, int64(3), appends-created)
	require.Equal(t, 1+3, f.mem.History("s1"))

	t.Run("Idle Turn Writes Nothing", func(t *testing.T) {
		f := newFixture(narration.Noop{})
		islands := hex.NewSet(hex.New(0, 0), hex.New(4, 0))
		require.NoError(t, f.store.Create(ctx, combat(
			[]*models.Entity{aria(at(0, 0))}, []*models.Entity{goblin(at(4, 0))}, islands, "goblin", "hero")))
		_, created := f.mem.Writes()

		report, err := f.loop.Run(ctx, "s1", RunOptions{ProcessCurrent: true})
		require.NoError(t, err)
		require.Equal(t, StopHumanTurn, report.Stop)

		_, appends := f.mem.Writes()
		require.Equal(t, int64(1), appends-created, "only the hand-over to the hero is saved")
	})
}

func TestRunIterationBound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(narration.Noop{})

	golem := aria(at(0, 0))
	golem.ID, golem.Name, golem.Controller = "golem", "Golem", models.ControllerAI
	islands := hex.NewSet(hex.New(0, 0), hex.New(4, 0))
	require.NoError(t, f.store.Create(ctx, combat(
		[]*models.Entity{golem}, []*models.Entity{goblin(at(4, 0))}, islands, "golem", "goblin")))

	report, err := f.loop.Run(ctx, "s1", RunOptions{})
	require.NoError(t, err)
	require.Equal(t, StopLimit, report.Stop)
	require.Equal(t, 20, report.Iterations)

	gs, err := f.store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, 12, gs.Entity("golem").HPCurrent)
	require.Equal(t, 7, gs.Entity("goblin").HPCurrent)
}

func TestRunReloadsAfterPause(t *testing.T) {
	ctx := context.Background()
	f := newFixture(narration.Noop{}, 15, 3)
	require.NoError(t, f.store.Create(ctx, combat(
		[]*models.Entity{aria(at(0, 0))}, []*models.Entity{goblin(at(3, 0))}, disk(5), "hero", "goblin")))

	paused := 0
	f.loop.sleep = func(ctx context.Context, _ time.Duration) error {
		paused++
		// another writer hands the turn back while the loop is paused
		return f.locks.WithLock(ctx, "s1", func(ctx context.Context) error {
			gs, err := f.store.Load(ctx, "s1")
			if err != nil {
				return err
			}
			if _, err := f.seq.Advance(gs); err != nil {
				return err
			}
			return f.store.Save(ctx, "s1", gs)
		})
	}

	report, err := f.loop.Run(ctx, "s1", RunOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, paused)
	require.Equal(t, StopHumanTurn, report.Stop)
	require.Empty(t, report.Acted, "the goblin lost its turn before acting")

	gs, err := f.store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "hero", gs.ActiveEntityID)
	require.Equal(t, 12, gs.Entity("hero").HPCurrent)
	require.Equal(t, hex.New(3, 0), *gs.Entity("goblin").Position)
}

func TestRunNarrationFailureIsIgnored(t *testing.T) {
	ctx := context.Background()
	broken := narration.Func(func(context.Context, string, string, narration.Mode) narration.Result {
		return narration.Unavailable(errors.New("model offline"))
	})
	f := newFixture(broken, 15, 3)
	require.NoError(t, f.store.Create(ctx, combat(
		[]*models.Entity{aria(at(0, 0))}, []*models.Entity{goblin(at(1, 0))}, disk(5), "hero", "goblin")))

	report, err := f.loop.Run(ctx, "s1", RunOptions{})
	require.NoError(t, err)
	require.Equal(t, []string{"goblin"}, report.Acted)
	require.NotContains(t, f.events.Kinds(), events.KindNarration)
}

func TestRunCancelledDuringPause(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := newFixture(narration.Noop{})
	require.NoError(t, f.store.Create(ctx, combat(
		[]*models.Entity{aria(at(0, 0))}, []*models.Entity{goblin(at(3, 0))}, disk(5), "hero", "goblin")))

	f.loop.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return pause(ctx, time.Hour)
	}
	_, err := f.loop.Run(ctx, "s1", RunOptions{})
	require.ErrorIs(t, err, context.Canceled)

	locked, h, err := f.locks.Acquire(context.Background(), "s1")
	require.NoError(t, err, "the lock is not held across the pause")
	require.True(t, lock.Held(locked, "s1"))
	require.NoError(t, h.Release())
}

func TestTrigger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(narration.Noop{}, 15, 3)
	require.NoError(t, f.store.Create(ctx, combat(
		[]*models.Entity{aria(at(0, 0))}, []*models.Entity{goblin(at(1, 0))}, disk(5), "hero", "goblin")))

	release := make(chan struct{})
	f.loop.sleep = func(ctx context.Context, _ time.Duration) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	reqCtx, cancelReq := context.WithCancel(ctx)
	require.True(t, f.loop.Trigger(reqCtx, "s1", RunOptions{}))
	require.True(t, f.loop.Trigger(ctx, "s1", RunOptions{}), "folded into the run in flight")
	require.True(t, f.loop.Running("s1"))
	cancelReq()

	close(release)
	require.Eventually(t, func() bool { return !f.loop.Running("s1") }, 2*time.Second, 5*time.Millisecond)

	gs, err := f.store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, 7, gs.Entity("hero").HPCurrent, "request cancellation does not stop the run")
	require.Equal(t, "hero", gs.ActiveEntityID, "the extra pass leaves the human turn alone")

	f.loop.Close()
	require.False(t, f.loop.Trigger(ctx, "s1", RunOptions{}), "closed loops start nothing")
}

// reactor forwards notifications and lets a test respond to them the way a
// client would.
type reactor struct {
	next events.Broadcaster
	on   func(ctx context.Context, n events.Notification)
}

func (r *reactor) Publish(ctx context.Context, n events.Notification) {
	r.next.Publish(ctx, n)
	r.on(ctx, n)
}

func TestTriggerWhileFinishing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(narration.Noop{}, 15, 3, 15, 3)
	require.NoError(t, f.store.Create(ctx, combat(
		[]*models.Entity{aria(at(0, 0))}, []*models.Entity{goblin(at(1, 0))}, disk(5), "hero", "goblin")))

	var ended atomic.Bool
	endErr := make(chan error, 1)
	f.loop.broadcast = &reactor{next: f.events, on: func(ctx context.Context, n events.Notification) {
		start, ok := n.Payload.(events.TurnStart)
		if !ok || !start.Human || !ended.CompareAndSwap(false, true) {
			return
		}
		// the player ends the turn before the run has wound down
		err := f.locks.WithLock(ctx, "s1", func(ctx context.Context) error {
			gs, err := f.store.Load(ctx, "s1")
			if err != nil {
				return err
			}
			if _, err := f.seq.Advance(gs); err != nil {
				return err
			}
			return f.store.Save(ctx, "s1", gs)
		})
		if err != nil {
			endErr <- err
			return
		}
		if !f.loop.Trigger(ctx, "s1", RunOptions{ProcessCurrent: true}) {
			endErr <- errors.New("trigger refused")
			return
		}
		close(endErr)
	}}

	require.True(t, f.loop.Trigger(ctx, "s1", RunOptions{}))
	require.Eventually(t, func() bool { return !f.loop.Running("s1") }, 2*time.Second, 5*time.Millisecond)
	require.True(t, ended.Load())
	require.NoError(t, <-endErr)

	gs, err := f.store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, 2, gs.Entity("hero").HPCurrent, "the goblin took the turn it was handed")
	require.Equal(t, "hero", gs.ActiveEntityID)
	f.loop.Close()
}

func TestWeakestFoe(t *testing.T) {
	gob := goblin(at(3, 0))
	hero, rogue, cleric := aria(at(0, 0)), aria(at(1, 0)), aria(nil)
	rogue.ID, rogue.HPCurrent = "rogue", 5
	hero.HPCurrent = 5
	cleric.ID, cleric.HPCurrent = "cleric", 1
	merchant := &models.Entity{ID: "merchant", Kind: models.KindNPC, HPCurrent: 1, HPMax: 4, Position: at(2, 0)}

	gs := &models.GameState{Party: []*models.Entity{hero, rogue, cleric}, Enemies: []*models.Entity{gob}, NPCs: []*models.Entity{merchant}}

	target, ok := WeakestFoe.Target(gs, gob)
	require.True(t, ok)
	require.Equal(t, "hero", target.ID, "ties keep encounter order; unplaced and neutral entities are skipped")

	target, ok = WeakestFoe.Target(gs, hero)
	require.True(t, ok)
	require.Equal(t, "goblin", target.ID)

	gob.HPCurrent = 0
	_, ok = WeakestFoe.Target(gs, hero)
	require.False(t, ok)
}
