package state

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zeusync/tabletop/internal/core/hex"
	"github.com/zeusync/tabletop/internal/core/lock"
	"github.com/zeusync/tabletop/internal/core/models"
	"github.com/zeusync/tabletop/internal/core/observability/log"
	"github.com/zeusync/tabletop/internal/core/storage/memory"
)

func seedState(sessionID string) *models.GameState {
	pos := hex.New(0, 0)
	gob := hex.New(1, 0)
	return &models.GameState{
		SessionID: sessionID,
		Location:  models.NewLocation("cave", "Cave", "", hex.NewSet(hex.New(0, 0), hex.New(1, 0)), nil, nil),
		Party: []*models.Entity{{
			ID: "hero", Kind: models.KindPlayer, Name: "Aria", HPCurrent: 10, HPMax: 10, Speed: 30,
			Position:  &pos,
			Abilities: models.Abilities{Dex: 16},
			Equipment: models.Equipment{Armor: "leather_armor", Shield: "shield"},
		}},
		Enemies: []*models.Entity{{
			ID: "goblin", Kind: models.KindEnemy, Name: "Goblin", HPCurrent: 7, HPMax: 7, NaturalArmor: 12,
			Position: &gob,
		}},
	}
}

func newTestStore() (*Store, *memory.Store) {
	mem := memory.New()
	return NewStore(mem, mem, models.DefaultCatalog(), log.Nop()), mem
}

func TestCreateAndLoad(t *testing.T) {
	ctx := context.Background()
	st, mem := newTestStore()

	require.NoError(t, st.Create(ctx, seedState("s1")))
	require.ErrorIs(t, st.Create(ctx, seedState("s1")), ErrSessionExists)

	gs, err := st.Load(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, models.PhaseExploration, gs.Phase)
	require.Len(t, gs.Party, 1)
	require.Len(t, gs.Enemies, 1)

	t.Run("Armor Is Recomputed", func(t *testing.T) {
		require.Equal(t, 11+3+2, gs.Entity("hero").ArmorClass)
		require.Equal(t, 12, gs.Entity("goblin").ArmorClass)
	})

	t.Run("Missing Session", func(t *testing.T) {
		_, err := st.Load(ctx, "nope")
		require.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("Missing Entities Are Dropped", func(t *testing.T) {
		snap, err := mem.FetchLatestSnapshot(ctx, "s1")
		require.NoError(t, err)
		snap.Enemies = append(snap.Enemies, "ghost")
		require.NoError(t, mem.AppendSnapshot(ctx, "s1", snap))

		gs, err := st.Load(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, gs.Enemies, 1)
		require.Nil(t, gs.Entity("ghost"))
	})
}

func TestSave(t *testing.T) {
	ctx := context.Background()
	st, mem := newTestStore()
	require.NoError(t, st.Create(ctx, seedState("s1")))

	gs, err := st.Load(ctx, "s1")
	require.NoError(t, err)
	gs.Entity("goblin").ApplyDamage(3)
	gs.Phase = models.PhaseCombat
	require.NoError(t, st.Save(ctx, "s1", gs))
	require.Equal(t, 2, mem.History("s1"))

	reloaded, err := st.Load(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, 4, reloaded.Entity("goblin").HPCurrent)
	require.Equal(t, models.PhaseCombat, reloaded.Phase)

	t.Run("Rejects Invariant Violations", func(t *testing.T) {
		reloaded.Entity("goblin").HPCurrent = -2
		err := st.Save(ctx, "s1", reloaded)
		require.ErrorIs(t, err, ErrInvariantViolation)
		require.Equal(t, 2, mem.History("s1"), "nothing is written")

		again, err := st.Load(ctx, "s1")
		require.NoError(t, err)
		require.Equal(t, 4, again.Entity("goblin").HPCurrent, "hp is not clamped")
	})

	t.Run("Rejects Bad Turn Index", func(t *testing.T) {
		gs, err := st.Load(ctx, "s1")
		require.NoError(t, err)
		gs.TurnOrder = []string{"hero"}
		gs.TurnIndex = 3
		require.ErrorIs(t, st.Save(ctx, "s1", gs), ErrInvariantViolation)
	})
}

func TestLookup(t *testing.T) {
	gs := seedState("s1")
	e, err := Lookup(gs, "hero")
	require.NoError(t, err)
	require.Equal(t, "Aria", e.Name)

	_, err = Lookup(gs, "nobody")
	require.ErrorIs(t, err, ErrEntityNotFound)
}

// Two tasks mutate one session under the lock; the second must see the
// first one's write because every acquisition reloads.
func TestLockedReadModifyWrite(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore()
	require.NoError(t, st.Create(ctx, seedState("s1")))
	locks := lock.NewManager(lock.NewMemoryBackend(0), lock.Config{Timeout: 5 * time.Second}, log.Nop())

	errs := make(chan error, 6)
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locks.WithLock(ctx, "s1", func(ctx context.Context) error {
				gs, err := st.Load(ctx, "s1")
				if err != nil {
					return err
				}
				gs.Entity("goblin").ApplyDamage(1)
				return st.Save(ctx, "s1", gs)
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	gs, err := st.Load(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, 1, gs.Entity("goblin").HPCurrent)
}
