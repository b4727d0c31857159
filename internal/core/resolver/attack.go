package resolver

import (
	"github.com/zeusync/tabletop/internal/core/dice"
	"github.com/zeusync/tabletop/internal/core/hex"
	"github.com/zeusync/tabletop/internal/core/models"
)

type AttackParams struct {
	// WeaponID overrides the attacker's main hand.
	WeaponID string
	// Grid is the walkable set used for line of sight. Nil skips the check.
	Grid hex.Set
}

type AttackResult struct {
	AttackerID string `json:"attacker_id"`
	TargetID   string `json:"target_id"`
	Source     string `json:"source"`
	Distance   int    `json:"distance"`

	Natural    int  `json:"natural"`
	Modifier   int  `json:"modifier"`
	Total      int  `json:"total"`
	ArmorClass int  `json:"armor_class"`
	Hit        bool `json:"hit"`
	Critical   bool `json:"critical"`
	Fumble     bool `json:"fumble"`

	DamageRolls    []int `json:"damage_rolls,omitempty"`
	Damage         int   `json:"damage"`
	TargetHP       int   `json:"target_hp"`
	TargetDefeated bool  `json:"target_defeated"`
}

// Attack resolves a weapon attack and applies the damage to target. Range and
// sight are checked before any roll.
func (r *Resolver) Attack(attacker, target *models.Entity, params AttackParams) (AttackResult, error) {
	if !target.IsAlive() {
		return AttackResult{}, ErrTargetDefeated
	}
	w, err := r.weaponFor(attacker, params.WeaponID)
	if err != nil {
		return AttackResult{}, err
	}
	dist, err := checkReach(attacker, target, w.reach, params.Grid)
	if err != nil {
		return AttackResult{}, err
	}

	res := r.strike(attacker, target, w.damage, attackModifier(attacker, w))
	res.Source = w.id
	res.Distance = dist
	return res, nil
}

// strike rolls to hit and, on a hit, damage. A natural 20 always hits and
// doubles the damage dice; a natural 1 always misses.
func (r *Resolver) strike(attacker, target *models.Entity, damage dice.Expr, mod int) AttackResult {
	res := AttackResult{
		AttackerID: attacker.ID,
		TargetID:   target.ID,
		Modifier:   mod,
		ArmorClass: target.ArmorClass,
	}
	res.Natural = dice.D20(r.roller)
	res.Total = res.Natural + mod
	res.Critical = res.Natural == 20
	res.Fumble = res.Natural == 1
	res.Hit = res.Critical || (!res.Fumble && res.Total >= target.ArmorClass)

	if res.Hit {
		count := damage.Count
		if res.Critical {
			count *= 2
		}
		rolls, total := damage.RollN(r.roller, count)
		res.DamageRolls = rolls
		res.Damage = max(total+mod, 0)
		target.ApplyDamage(res.Damage)
	}
	res.TargetHP = target.HPCurrent
	res.TargetDefeated = !target.IsAlive()
	return res
}
