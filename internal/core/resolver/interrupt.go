package resolver

import (
	"slices"
	"strings"

	"github.com/zeusync/tabletop/internal/core/dice"
	"github.com/zeusync/tabletop/internal/core/hex"
	"github.com/zeusync/tabletop/internal/core/models"
)

// OpportunityInterrupt finds a living opponent of actorID within the
// interrupt radius that has a clear line to the actor. When several qualify
// the one with the lowest id is returned.
func (r *Resolver) OpportunityInterrupt(gs *models.GameState, actorID string) (*models.Entity, bool) {
	actor := gs.Entity(actorID)
	if actor == nil || actor.Position == nil {
		return nil, false
	}
	candidates := Watchers(gs, actor, r.interruptRadius)
	if len(candidates) == 0 {
		return nil, false
	}
	return candidates[0], true
}

// Watchers lists living opponents of actor within radius hexes and in sight,
// ordered by id.
func Watchers(gs *models.GameState, actor *models.Entity, radius int) []*models.Entity {
	var out []*models.Entity
	for _, e := range gs.Living() {
		if e.Position == nil || !actor.Opposes(e) {
			continue
		}
		if hex.Distance(*e.Position, *actor.Position) > radius {
			continue
		}
		if !hex.LineOfSight(*e.Position, *actor.Position, gs.Location.Walkable) {
			continue
		}
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b *models.Entity) int { return strings.Compare(a.ID, b.ID) })
	return out
}

type IdentifyResult struct {
	ActorID  string `json:"actor_id"`
	TargetID string `json:"target_id"`
	Natural  int    `json:"natural"`
	Modifier int    `json:"modifier"`
	Total    int    `json:"total"`
	DC       int    `json:"dc"`
	Success  bool   `json:"success"`
	// Name is what the actor now calls the target.
	Name string `json:"name"`
}

// Identify rolls 1d20 plus intelligence against the target's identify DC and
// reveals the target on success. Already identified targets need no roll.
func (r *Resolver) Identify(actor, target *models.Entity) IdentifyResult {
	res := IdentifyResult{ActorID: actor.ID, TargetID: target.ID, DC: target.IdentifyDC()}
	if target.Identified || target.UnidentifiedName == "" {
		res.Success = true
		res.Name = target.Name
		return res
	}
	res.Natural = dice.D20(r.roller)
	res.Modifier = actor.Mod(models.Intelligence)
	res.Total = res.Natural + res.Modifier
	res.Success = res.Total >= res.DC
	if res.Success {
		target.Identified = true
	}
	res.Name = target.DisplayName()
	return res
}
