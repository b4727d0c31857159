package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zeusync/tabletop/internal/core/dice"
	"github.com/zeusync/tabletop/internal/core/hex"
)

func TestModifier(t *testing.T) {
	require.Equal(t, 0, Modifier(10))
	require.Equal(t, 0, Modifier(11))
	require.Equal(t, 3, Modifier(16))
	require.Equal(t, -1, Modifier(9))
	require.Equal(t, -1, Modifier(8))
	require.Equal(t, -5, Modifier(1))
}

func TestArmorClass(t *testing.T) {
	cat := DefaultCatalog()
	nimble := Abilities{Dex: 18} // +4

	tests := []struct {
		name string
		e    Entity
		want int
	}{
		{name: "Unarmored", e: Entity{Abilities: nimble}, want: 14},
		{name: "Natural", e: Entity{Abilities: nimble, NaturalArmor: 13}, want: 13},
		{name: "Light", e: Entity{Abilities: nimble, Equipment: Equipment{Armor: "leather_armor"}}, want: 15},
		{name: "Medium Caps Dex", e: Entity{Abilities: nimble, Equipment: Equipment{Armor: "scale_mail"}}, want: 16},
		{name: "Heavy Ignores Dex", e: Entity{Abilities: nimble, Equipment: Equipment{Armor: "chain_mail"}}, want: 16},
		{name: "Shield", e: Entity{Abilities: nimble, Equipment: Equipment{Armor: "chain_mail", Shield: "shield"}}, want: 18},
		{name: "Unknown Armor", e: Entity{Equipment: Equipment{Armor: "nope"}}, want: 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, cat.ArmorClassFor(&tt.e))
		})
	}
}

func TestEntity(t *testing.T) {
	t.Run("Damage Floors At Zero", func(t *testing.T) {
		e := &Entity{HPCurrent: 4, HPMax: 10}
		require.Equal(t, 4, e.ApplyDamage(9))
		require.Zero(t, e.HPCurrent)
		require.False(t, e.IsAlive())
	})

	t.Run("Display Name", func(t *testing.T) {
		e := &Entity{Name: "Grell the Shaman", UnidentifiedName: "Robed Figure"}
		require.Equal(t, "Robed Figure", e.DisplayName())
		e.Identified = true
		require.Equal(t, "Grell the Shaman", e.DisplayName())
	})

	t.Run("Sides", func(t *testing.T) {
		hero := &Entity{Kind: KindPlayer}
		orc := &Entity{Kind: KindEnemy, Ext: Extensions{Disposition: DispositionFriendly}}
		guard := &Entity{Kind: KindNPC, Ext: Extensions{Disposition: DispositionAlly}}
		bandit := &Entity{Kind: KindNPC, Ext: Extensions{Disposition: DispositionHostile}}
		farmer := &Entity{Kind: KindNPC}

		require.True(t, orc.IsHostile(), "enemies ignore the disposition field")
		require.True(t, hero.Opposes(orc))
		require.True(t, guard.Opposes(bandit))
		require.False(t, hero.Opposes(guard))
		require.False(t, farmer.Opposes(orc))
		require.Equal(t, DispositionNeutral, farmer.Disposition())
	})

	t.Run("Controller Defaults", func(t *testing.T) {
		require.True(t, (&Entity{Kind: KindPlayer}).IsHuman())
		require.False(t, (&Entity{Kind: KindPlayer, Controller: ControllerAI}).IsHuman())
		require.False(t, (&Entity{Kind: KindEnemy}).IsHuman())
	})

	t.Run("Clone Is Deep", func(t *testing.T) {
		pos := hex.New(1, 1)
		e := &Entity{ID: "a", Position: &pos, Inventory: []string{"gem"}, Ext: Extensions{Barks: map[string][]string{"attack": {"Hah!"}}}}
		c := e.Clone()
		c.Position.Q = 9
		c.Inventory[0] = "dagger"
		c.Ext.Barks["attack"][0] = "Hm."
		require.Equal(t, 1, e.Position.Q)
		require.Equal(t, "gem", e.Inventory[0])
		require.Equal(t, "Hah!", e.Ext.Barks["attack"][0])
	})
}

func TestNewLocationAddsSpawns(t *testing.T) {
	loc := NewLocation("crypt", "Crypt", "", hex.NewSet(hex.New(0, 0)), nil, []hex.Coord{hex.New(5, 5)})
	require.True(t, loc.Walkable.Has(hex.New(5, 5)))
	require.True(t, loc.Walkable.Has(hex.New(0, 0)))
}

func TestRemoveFromTurnOrder(t *testing.T) {
	t.Run("Before Current", func(t *testing.T) {
		gs := &GameState{TurnOrder: []string{"a", "b", "c"}, TurnIndex: 2}
		gs.RemoveFromTurnOrder("a")
		require.Equal(t, []string{"b", "c"}, gs.TurnOrder)
		require.Equal(t, "c", gs.TurnOrder[gs.TurnIndex])
	})

	t.Run("Current At Head", func(t *testing.T) {
		gs := &GameState{TurnOrder: []string{"a", "b", "c"}, TurnIndex: 0}
		gs.RemoveFromTurnOrder("a")
		require.Equal(t, 1, gs.TurnIndex)
		require.Equal(t, "b", gs.TurnOrder[(gs.TurnIndex+1)%len(gs.TurnOrder)])
	})

	t.Run("After Current", func(t *testing.T) {
		gs := &GameState{TurnOrder: []string{"a", "b", "c"}, TurnIndex: 0}
		gs.RemoveFromTurnOrder("c")
		require.Equal(t, 0, gs.TurnIndex)
	})

	t.Run("Missing", func(t *testing.T) {
		gs := &GameState{TurnOrder: []string{"a"}}
		gs.RemoveFromTurnOrder("zzz")
		require.Equal(t, []string{"a"}, gs.TurnOrder)
	})
}

func TestSkeletonHydrate(t *testing.T) {
	gs := &GameState{
		Phase:   PhaseCombat,
		Party:   []*Entity{{ID: "p1", Kind: KindPlayer}},
		Enemies: []*Entity{{ID: "e1", Kind: KindEnemy}, {ID: "e2", Kind: KindEnemy}},
		Vessels: []Vessel{{ID: "v1", Items: []string{"gem"}}},
	}
	snap := gs.Skeleton()
	require.Equal(t, []string{"e1", "e2"}, snap.Enemies)

	bodies := map[string]*Entity{"p1": gs.Party[0], "e2": gs.Enemies[1]}
	back := snap.Hydrate("s1", bodies)
	require.Equal(t, "s1", back.SessionID)
	require.Len(t, back.Enemies, 1, "missing records are dropped")
	require.Equal(t, "e2", back.Enemies[0].ID)
	require.Equal(t, []string{"gem"}, back.Vessels[0].Items)
}

func TestLootTableRoll(t *testing.T) {
	table := &LootTable{
		Entries: []LootEntry{{ItemID: "gem", Chance: 50}, {ItemID: "dagger", Chance: 10}},
		Gold:    "2d6",
	}
	items, wallet := table.Roll(dice.NewScripted(30, 90, 3, 4))
	require.Equal(t, []string{"gem"}, items)
	require.Equal(t, 7, wallet.Gold)

	var none *LootTable
	items, wallet = none.Roll(dice.NewScripted())
	require.Empty(t, items)
	require.True(t, wallet.IsZero())
}

func TestLoadCatalogYAML(t *testing.T) {
	src := `
items:
  club:
    name: Club
    kind: weapon
    damage: 1d4
spells:
  zap:
    kind: attack
    damage: 1d6
    range_feet: 30
`
	cat, err := LoadCatalogYAML(strings.NewReader(src))
	require.NoError(t, err)
	club, ok := cat.Item("club")
	require.True(t, ok)
	require.Equal(t, "club", club.ID)
	zap, ok := cat.Spell("zap")
	require.True(t, ok)
	require.Equal(t, "zap", zap.Name)

	_, err = LoadCatalogYAML(strings.NewReader("items:\n  bad:\n    kind: weapon\n    damage: lots\n"))
	require.Error(t, err)

	require.NoError(t, DefaultCatalog().Validate())
}
