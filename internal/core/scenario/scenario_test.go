package scenario

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zeusync/tabletop/internal/core/hex"
	"github.com/zeusync/tabletop/internal/core/models"
	"github.com/zeusync/tabletop/internal/core/observability/log"
	"github.com/zeusync/tabletop/internal/core/state"
	"github.com/zeusync/tabletop/internal/core/storage/memory"
)

func TestBuiltin(t *testing.T) {
	s, err := Builtin("goblin_cave")
	require.NoError(t, err)
	require.Equal(t, "Goblin Cave", s.Name)
	require.Len(t, s.Start.Walkable, 91, "radius 5 disk")
	require.Equal(t, hex.New(2, 2), s.Start.Object("chest").Position)
	require.Len(t, s.Party, 2)

	gob := s.Enemies[0]
	require.Equal(t, models.KindEnemy, gob.Kind)
	require.Equal(t, 7, gob.HPCurrent, "current hp defaults to max")
	require.Equal(t, hex.New(4, -1), *gob.Position)
	require.Equal(t, "Small Shape", gob.DisplayName())
	require.NotEmpty(t, gob.BarkLines(models.BarkAttack))
	require.Equal(t, models.DispositionFriendly, s.NPCs[0].Disposition())

	_, err = Builtin("dragon_lair")
	require.ErrorIs(t, err, ErrInvalidScenario)
}

func TestLoadJSON(t *testing.T) {
	const doc = `{
		"name": "Duel",
		"start": {"id": "ring", "name": "Ring", "walkable": [{"q":0,"r":0},{"q":1,"r":0}]},
		"party": [{"id": "hero", "name": "Hero", "hp_max": 10, "position": {"q":0,"r":0}}],
		"enemies": [{"id": "rival", "name": "Rival", "hp_max": 8, "hp_current": 3, "position": {"q":1,"r":0}}]
	}`
	s, err := LoadJSON(strings.NewReader(doc))
	require.NoError(t, err)
	require.True(t, s.Start.Walkable.Has(hex.New(1, 0)))
	require.Equal(t, 3, s.Enemies[0].HPCurrent)
	require.Equal(t, hex.New(1, 0), *s.Enemies[0].Position)
}

func TestValidation(t *testing.T) {
	const doc = `
name: Broken
start:
  name: Nowhere
  walkable: [{q: 0, r: 0}]
party:
  - {id: hero, hp_max: 5, position: {q: 3, r: 0}}
enemies:
  - {id: hero, hp_max: 5}
`
	_, err := LoadYAML(strings.NewReader(doc))
	require.ErrorIs(t, err, ErrInvalidScenario)
	require.ErrorContains(t, err, "needs an id")
	require.ErrorContains(t, err, "not walkable")
	require.ErrorContains(t, err, "duplicate")
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	data, err := fixtures.ReadFile("fixtures/goblin_cave.yaml")
	require.NoError(t, err)

	path := filepath.Join(dir, "cave.yml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	s, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "cave_mouth", s.Start.ID)

	bad := filepath.Join(dir, "cave.toml")
	require.NoError(t, os.WriteFile(bad, data, 0o600))
	_, err = LoadFile(bad)
	require.ErrorIs(t, err, ErrInvalidScenario)
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	store := state.NewStore(mem, mem, models.DefaultCatalog(), log.Nop())

	s, err := Builtin("goblin_cave")
	require.NoError(t, err)
	require.NoError(t, s.Seed(ctx, store, mem, "s1"))

	gs, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, models.PhaseExploration, gs.Phase)
	require.Equal(t, "cave_mouth", gs.Location.ID)
	require.Len(t, gs.Enemies, 2)
	require.Equal(t, 14+1+2, gs.Entity("aria").ArmorClass, "scale mail, dex +1 and a shield")

	den, err := mem.FetchLocation(ctx, "den")
	require.NoError(t, err)
	require.Len(t, den.Walkable, 37)

	t.Run("Seeding Twice Fails", func(t *testing.T) {
		err := s.Seed(ctx, store, mem, "s1")
		require.ErrorIs(t, err, state.ErrSessionExists)
	})

	t.Run("States Are Independent", func(t *testing.T) {
		a, b := s.State("a"), s.State("b")
		a.Party[0].HPCurrent = 1
		require.Equal(t, 12, b.Party[0].HPCurrent)
		require.Equal(t, 12, s.Party[0].HPCurrent)
	})
}
