package turn

import (
	"slices"

	"github.com/zeusync/tabletop/internal/core/models"
	"github.com/zeusync/tabletop/internal/core/observability/log"
	"github.com/zeusync/tabletop/internal/core/state"
)

type DeathReport struct {
	EntityID string         `json:"entity_id"`
	Vessel   *models.Vessel `json:"vessel,omitempty"`
	Ended    bool           `json:"combat_ended"`
	Outcome  models.Outcome `json:"outcome,omitempty"`
}

// HandleDeath cleans up after an entity dropped to 0 hp. Enemies and NPCs
// leave a vessel with their inventory, generated loot and coin, and are
// removed from their collection. Party members stay so they can be revived.
// The entity leaves the turn order either way, then combat end is checked.
func (s *Sequencer) HandleDeath(gs *models.GameState, id string) (DeathReport, error) {
	e, err := state.Lookup(gs, id)
	if err != nil {
		return DeathReport{}, err
	}
	report := DeathReport{EntityID: id}
	if e.IsAlive() {
		return report, nil
	}

	if e.Kind != models.KindPlayer {
		if e.Position != nil {
			items, wallet := s.res.RollLoot(e.LootTable())
			v := models.Vessel{
				ID:       s.newID(),
				Name:     "Remains of " + e.DisplayName(),
				SourceID: e.ID,
				Position: *e.Position,
				Items:    append(slices.Clone(e.Inventory), items...),
				Wallet:   e.Wallet.Add(wallet),
			}
			e.Inventory, e.Wallet = nil, models.Wallet{}
			gs.Vessels = append(gs.Vessels, v)
			report.Vessel = &v
		}
		gs.RemoveEntity(id)
	}
	gs.RemoveFromTurnOrder(id)

	s.logger.Debug("entity defeated", log.Session(gs.SessionID), log.Entity(id))
	report.Outcome, report.Ended = s.CheckCombatEnd(gs)
	return report, nil
}
