package turn

import (
	"github.com/zeusync/tabletop/internal/core/models"
	"github.com/zeusync/tabletop/internal/core/resolver"
	"github.com/zeusync/tabletop/internal/core/state"
)

type AttackOutcome struct {
	// CombatStarted is set when the attack opened combat. The strike itself
	// only resolves if the attacker won initiative.
	CombatStarted bool                  `json:"combat_started"`
	Resolved      bool                  `json:"resolved"`
	Result        resolver.AttackResult `json:"result"`
	Death         *DeathReport          `json:"death,omitempty"`
}

// Attack resolves actorID attacking targetID with weaponID (or the main
// hand). Outside combat it starts combat first.
func (s *Sequencer) Attack(gs *models.GameState, actorID, targetID, weaponID string) (AttackOutcome, error) {
	var out AttackOutcome
	target, err := state.Lookup(gs, targetID)
	if err != nil {
		return out, err
	}
	started, proceed, err := s.openCombat(gs, actorID)
	out.CombatStarted = started
	if err != nil || !proceed {
		return out, err
	}

	actor, err := s.actor(gs, actorID)
	if err != nil {
		return out, err
	}
	if err := s.spendAction(gs); err != nil {
		return out, err
	}
	res, err := s.res.Attack(actor, target, resolver.AttackParams{WeaponID: weaponID, Grid: gs.Location.Walkable})
	if err != nil {
		return out, err
	}
	gs.HasActedThisTurn = true
	out.Resolved = true
	out.Result = res

	if res.TargetDefeated {
		death, err := s.HandleDeath(gs, targetID)
		if err != nil {
			return out, err
		}
		out.Death = &death
	}
	return out, nil
}

type CastOutcome struct {
	CombatStarted bool                `json:"combat_started"`
	Resolved      bool                `json:"resolved"`
	Result        resolver.CastResult `json:"result"`

	// Saved and Dealt apply to save spells: the target's save against the
	// configured DC and the damage that landed (half on a success).
	Saved bool         `json:"saved,omitempty"`
	Dealt int          `json:"dealt"`
	DC    int          `json:"dc,omitempty"`
	Death *DeathReport `json:"death,omitempty"`
}

// openCombat starts combat when a hostile action is taken outside it. It
// reports whether combat was started and whether actorID holds the turn.
func (s *Sequencer) openCombat(gs *models.GameState, actorID string) (started, proceed bool, err error) {
	if gs.Phase == models.PhaseCombat {
		return false, true, nil
	}
	if _, err := state.Lookup(gs, actorID); err != nil {
		return false, false, err
	}
	if err := s.StartCombat(gs); err != nil {
		return false, false, err
	}
	return true, gs.ActiveEntityID == actorID, nil
}

// Cast resolves a spell. Saving throws are checked against Config.SaveDC and
// a successful save halves the damage. Outside combat it starts combat first,
// like Attack.
func (s *Sequencer) Cast(gs *models.GameState, actorID, targetID, spell string) (CastOutcome, error) {
	var out CastOutcome
	target, err := state.Lookup(gs, targetID)
	if err != nil {
		return out, err
	}
	started, proceed, err := s.openCombat(gs, actorID)
	out.CombatStarted = started
	if err != nil || !proceed {
		return out, err
	}
	actor, err := s.actor(gs, actorID)
	if err != nil {
		return out, err
	}
	if err := s.spendAction(gs); err != nil {
		return out, err
	}
	res, err := s.res.Cast(actor, target, resolver.CastParams{Spell: spell, Grid: gs.Location.Walkable})
	if err != nil {
		return out, err
	}
	gs.HasActedThisTurn = true
	out.Resolved = true
	out.Result = res

	switch {
	case res.Attack != nil:
		out.Dealt = res.Attack.Damage
	case res.Save != nil:
		out.DC = s.cfg.SaveDC
		out.Saved = res.Save.SaveTotal >= s.cfg.SaveDC
		out.Dealt = res.Save.Damage
		if out.Saved {
			out.Dealt /= 2
		}
		target.ApplyDamage(out.Dealt)
	}

	if !target.IsAlive() {
		death, err := s.HandleDeath(gs, targetID)
		if err != nil {
			return out, err
		}
		out.Death = &death
	}
	return out, nil
}
