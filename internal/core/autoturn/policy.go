package autoturn

import (
	"github.com/zeusync/tabletop/internal/core/models"
)

// Policy picks who an AI-controlled entity goes after on its turn.
type Policy interface {
	Target(gs *models.GameState, actor *models.Entity) (*models.Entity, bool)
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(gs *models.GameState, actor *models.Entity) (*models.Entity, bool)

func (f PolicyFunc) Target(gs *models.GameState, actor *models.Entity) (*models.Entity, bool) {
	return f(gs, actor)
}

// WeakestFoe targets the living, placed opponent with the fewest hit points.
// Ties go to the entity met first in encounter order.
var WeakestFoe = PolicyFunc(func(gs *models.GameState, actor *models.Entity) (*models.Entity, bool) {
	var best *models.Entity
	for _, e := range gs.All() {
		if e.ID == actor.ID || !e.IsAlive() || e.Position == nil || !actor.Opposes(e) {
			continue
		}
		if best == nil || e.HPCurrent < best.HPCurrent {
			best = e
		}
	}
	return best, best != nil
})
