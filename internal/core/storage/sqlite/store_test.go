package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zeusync/tabletop/internal/core/hex"
	"github.com/zeusync/tabletop/internal/core/models"
	"github.com/zeusync/tabletop/internal/core/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "game.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), "  ")
	require.Error(t, err)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.db")
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestEntities(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	pos := hex.New(2, -1)
	hero := &models.Entity{ID: "hero", Kind: models.KindPlayer, Name: "Aria", HPCurrent: 9, HPMax: 12, Position: &pos}
	rogue := &models.Entity{ID: "rogue", Kind: models.KindPlayer, Name: "Vex", HPCurrent: 8, HPMax: 8}

	t.Run("Insert", func(t *testing.T) {
		require.NoError(t, s.Upsert(ctx, models.KindPlayer, []*models.Entity{hero, rogue}))

		got, err := s.FetchByIDs(ctx, models.KindPlayer, []string{"hero", "rogue", "ghost"})
		require.NoError(t, err)
		require.Len(t, got, 2)
	})

	t.Run("Update", func(t *testing.T) {
		hero.HPCurrent = 3
		require.NoError(t, s.Upsert(ctx, models.KindPlayer, []*models.Entity{hero}))

		got, err := s.FetchByIDs(ctx, models.KindPlayer, []string{"hero"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.Equal(t, 3, got[0].HPCurrent)
		require.Equal(t, pos, *got[0].Position)
	})

	t.Run("Kinds Are Separate", func(t *testing.T) {
		got, err := s.FetchByIDs(ctx, models.KindEnemy, []string{"hero"})
		require.NoError(t, err)
		require.Empty(t, got)
	})

	t.Run("Large Batch", func(t *testing.T) {
		batch := make([]*models.Entity, 0, 450)
		ids := make([]string, 0, 450)
		for i := 0; i < 450; i++ {
			id := fmt.Sprintf("rat-%03d", i)
			batch = append(batch, &models.Entity{ID: id, Kind: models.KindEnemy, HPCurrent: 1, HPMax: 1})
			ids = append(ids, id)
		}
		require.NoError(t, s.Upsert(ctx, models.KindEnemy, batch))
		got, err := s.FetchByIDs(ctx, models.KindEnemy, ids)
		require.NoError(t, err)
		require.Len(t, got, 450)
	})

	t.Run("Rejects Empty ID", func(t *testing.T) {
		err := s.Upsert(ctx, models.KindNPC, []*models.Entity{{Name: "nobody"}})
		require.ErrorIs(t, err, storage.ErrInvalidRequest)
	})
}

func TestSnapshots(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.FetchLatestSnapshot(ctx, "s1")
	require.ErrorIs(t, err, storage.ErrNotFound)

	loc := models.NewLocation("hall", "Hall", "", hex.NewSet(hex.New(0, 0)), nil, nil)
	require.NoError(t, s.AppendSnapshot(ctx, "s1", models.Snapshot{Phase: models.PhaseExploration, Party: []string{"hero"}, Location: loc}))
	require.NoError(t, s.AppendSnapshot(ctx, "s1", models.Snapshot{Phase: models.PhaseCombat, Party: []string{"hero"}, TurnOrder: []string{"hero"}, Location: loc}))

	latest, err := s.FetchLatestSnapshot(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, 2, latest.Version)
	require.Equal(t, models.PhaseCombat, latest.Phase)
	require.True(t, latest.Location.Walkable.Has(hex.New(0, 0)))

	n, err := s.SnapshotCount(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestLocations(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.FetchLocation(ctx, "cellar")
	require.ErrorIs(t, err, storage.ErrNotFound)

	loc := models.NewLocation("cellar", "Cellar", "Damp.", hex.NewSet(hex.New(0, 0)), nil, []hex.Coord{hex.New(1, 0)})
	require.NoError(t, s.SaveLocation(ctx, loc))

	got, err := s.FetchLocation(ctx, "cellar")
	require.NoError(t, err)
	require.Equal(t, "Cellar", got.Name)
	require.True(t, got.Walkable.Has(hex.New(1, 0)))
}

func TestLease(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	ok, err := s.TryLease(ctx, "s1", "a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.TryLease(ctx, "s1", "b", time.Minute)
	require.NoError(t, err)
	require.False(t, ok, "lease is held by a")

	require.NoError(t, s.ReleaseLease(ctx, "s1", "b"))
	ok, err = s.TryLease(ctx, "s1", "b", time.Minute)
	require.NoError(t, err)
	require.False(t, ok, "only the owner can release")

	require.NoError(t, s.ReleaseLease(ctx, "s1", "a"))
	ok, err = s.TryLease(ctx, "s1", "b", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	t.Run("Expired", func(t *testing.T) {
		ok, err := s.TryLease(ctx, "s2", "a", -time.Second)
		require.NoError(t, err)
		require.True(t, ok)
		ok, err = s.TryLease(ctx, "s2", "b", time.Minute)
		require.NoError(t, err)
		require.True(t, ok, "expired leases can be taken over")
	})
}
