package resolver

import (
	"fmt"

	"github.com/zeusync/tabletop/internal/core/dice"
	"github.com/zeusync/tabletop/internal/core/hex"
	"github.com/zeusync/tabletop/internal/core/models"
)

type CastParams struct {
	Spell string
	Grid  hex.Set
}

// SaveRoll is the raw data of a saving-throw spell. It carries no verdict:
// the caller compares SaveTotal against its own DC and decides how much of
// Damage lands.
type SaveRoll struct {
	Ability        models.Ability `json:"ability"`
	Natural        int            `json:"natural"`
	Modifier       int            `json:"modifier"`
	SaveTotal      int            `json:"save_total"`
	DamageRolls    []int          `json:"damage_rolls"`
	Damage         int            `json:"damage"`
	CasterModifier int            `json:"caster_modifier"`
}

type CastResult struct {
	CasterID string           `json:"caster_id"`
	TargetID string           `json:"target_id"`
	Spell    string           `json:"spell"`
	Kind     models.SpellKind `json:"kind"`
	Distance int              `json:"distance"`

	Attack *AttackResult `json:"attack,omitempty"`
	Save   *SaveRoll     `json:"save,omitempty"`
}

// Cast resolves a known spell. Attack spells roll and apply like weapons
// using SpellModifier; save spells only roll.
func (r *Resolver) Cast(caster, target *models.Entity, params CastParams) (CastResult, error) {
	if !caster.Knows(params.Spell) {
		return CastResult{}, fmt.Errorf("%w: %s", ErrUnknownSpell, params.Spell)
	}
	spell, ok := r.catalog.Spell(params.Spell)
	if !ok {
		return CastResult{}, fmt.Errorf("%w: %s is not in the catalog", ErrUnknownSpell, params.Spell)
	}
	if !target.IsAlive() {
		return CastResult{}, ErrTargetDefeated
	}
	damage, err := dice.Parse(spell.Damage)
	if err != nil {
		return CastResult{}, fmt.Errorf("spell %s: %w", spell.Name, err)
	}
	dist, err := checkReach(caster, target, ReachHexes(spell.RangeFeet), params.Grid)
	if err != nil {
		return CastResult{}, err
	}

	res := CastResult{
		CasterID: caster.ID,
		TargetID: target.ID,
		Spell:    spell.Name,
		Kind:     spell.Kind,
		Distance: dist,
	}
	mod := SpellModifier(caster)

	if spell.Kind == models.SpellAttack {
		atk := r.strike(caster, target, damage, mod)
		atk.Source = spell.Name
		atk.Distance = dist
		res.Attack = &atk
		return res, nil
	}

	save := SaveRoll{
		Ability:        spell.SaveAbility,
		Natural:        dice.D20(r.roller),
		Modifier:       target.Mod(spell.SaveAbility),
		CasterModifier: mod,
	}
	save.SaveTotal = save.Natural + save.Modifier
	rolls, total := damage.Roll(r.roller)
	save.DamageRolls = rolls
	save.Damage = max(total, 0)
	res.Save = &save
	return res, nil
}
