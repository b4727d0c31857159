// Package resolver holds the dice and targeting rules. It reads entities and
// applies damage to the target it is given; it never touches the collections
// of a GameState.
package resolver

import (
	"fmt"

	"github.com/zeusync/tabletop/internal/core/dice"
	"github.com/zeusync/tabletop/internal/core/hex"
	"github.com/zeusync/tabletop/internal/core/models"
)

const (
	// DefaultInterruptRadius is how far, in hexes, a hostile notices an
	// interaction.
	DefaultInterruptRadius = 10
	unarmedDamage          = "1d4"
	feetPerHex             = 5
)

type Options struct {
	InterruptRadius int
}

type Resolver struct {
	roller          dice.Roller
	catalog         *models.Catalog
	interruptRadius int
}

func New(roller dice.Roller, catalog *models.Catalog, opts Options) *Resolver {
	if catalog == nil {
		catalog = models.DefaultCatalog()
	}
	if opts.InterruptRadius <= 0 {
		opts.InterruptRadius = DefaultInterruptRadius
	}
	return &Resolver{roller: roller, catalog: catalog, interruptRadius: opts.InterruptRadius}
}

func (r *Resolver) Catalog() *models.Catalog {
	return r.catalog
}

// ReachHexes converts a range in feet to hexes, never below one.
func ReachHexes(feet int) int {
	return max(1, feet/feetPerHex)
}

type weapon struct {
	id      string
	damage  dice.Expr
	finesse bool
	ranged  bool
	reach   int
}

func (r *Resolver) weaponFor(attacker *models.Entity, id string) (weapon, error) {
	if id == "" {
		id = attacker.Equipment.MainHand
	}
	item, ok := r.catalog.Item(id)
	if !ok || item.Kind != models.ItemWeapon {
		return weapon{id: "unarmed", damage: dice.MustParse(unarmedDamage), reach: 1}, nil
	}
	expr, err := dice.Parse(item.Damage)
	if err != nil {
		return weapon{}, fmt.Errorf("weapon %s: %w", item.ID, err)
	}
	w := weapon{id: item.ID, damage: expr, finesse: item.Finesse, ranged: item.Ranged, reach: 1}
	if item.Ranged {
		w.reach = ReachHexes(item.RangeFeet)
	}
	return w, nil
}

// WeaponReach is how many hexes the attacker's main hand reaches.
func (r *Resolver) WeaponReach(attacker *models.Entity) int {
	w, err := r.weaponFor(attacker, "")
	if err != nil {
		return 1
	}
	return w.reach
}

// checkReach validates distance and, beyond adjacency, line of sight over
// grid. A nil grid skips the sight check.
func checkReach(from, to *models.Entity, reach int, grid hex.Set) (int, error) {
	if from.Position == nil || to.Position == nil {
		return 0, ErrNotPlaced
	}
	dist := hex.Distance(*from.Position, *to.Position)
	if dist > reach {
		return dist, fmt.Errorf("%w: distance %d, reach %d", ErrOutOfRange, dist, reach)
	}
	if dist > 1 && grid != nil && !hex.LineOfSight(*from.Position, *to.Position, grid) {
		return dist, ErrNoLineOfSight
	}
	return dist, nil
}

func attackModifier(attacker *models.Entity, w weapon) int {
	str, dex := attacker.Mod(models.Strength), attacker.Mod(models.Dexterity)
	switch {
	case w.ranged:
		return dex
	case w.finesse:
		return max(str, dex)
	default:
		return str
	}
}

// SpellModifier is the best of the three mental modifiers.
func SpellModifier(caster *models.Entity) int {
	return max(caster.Mod(models.Intelligence), caster.Mod(models.Wisdom), caster.Mod(models.Charisma))
}

// RollInitiative rolls 1d20 plus the dexterity modifier.
func (r *Resolver) RollInitiative(e *models.Entity) int {
	return dice.D20(r.roller) + e.Mod(models.Dexterity)
}

// RollLoot generates the contents of a loot table.
func (r *Resolver) RollLoot(table *models.LootTable) ([]string, models.Wallet) {
	return table.Roll(r.roller)
}
