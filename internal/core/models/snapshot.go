package models

import (
	"slices"
	"time"
)

// Snapshot is the persisted skeleton of a GameState. Entity collections are
// id references; full bodies live in per-kind records.
type Snapshot struct {
	Version          int       `json:"version"`
	Phase            Phase     `json:"phase"`
	TurnOrder        []string  `json:"turn_order"`
	TurnIndex        int       `json:"turn_index"`
	ActiveEntityID   string    `json:"active_entity_id"`
	Party            []string  `json:"party"`
	Enemies          []string  `json:"enemies"`
	NPCs             []string  `json:"npcs"`
	Vessels          []Vessel  `json:"vessels"`
	Location         Location  `json:"location"`
	Discovered       []string  `json:"discovered,omitempty"`
	HasMovedThisTurn bool      `json:"has_moved_this_turn"`
	HasActedThisTurn bool      `json:"has_acted_this_turn"`
	Outcome          Outcome   `json:"outcome,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func ids(in []*Entity) []string {
	out := make([]string, len(in))
	for i, e := range in {
		out[i] = e.ID
	}
	return out
}

// Skeleton strips gs down to its persisted form.
func (gs *GameState) Skeleton() Snapshot {
	c := gs.Clone()
	return Snapshot{
		Phase:            c.Phase,
		TurnOrder:        c.TurnOrder,
		TurnIndex:        c.TurnIndex,
		ActiveEntityID:   c.ActiveEntityID,
		Party:            ids(c.Party),
		Enemies:          ids(c.Enemies),
		NPCs:             ids(c.NPCs),
		Vessels:          c.Vessels,
		Location:         c.Location,
		Discovered:       c.Discovered,
		HasMovedThisTurn: c.HasMovedThisTurn,
		HasActedThisTurn: c.HasActedThisTurn,
		Outcome:          c.Outcome,
	}
}

// Hydrate rebuilds a GameState from a skeleton and the fetched entity bodies.
// Collections keep the skeleton's id order; ids with no body are dropped.
func (s Snapshot) Hydrate(sessionID string, bodies map[string]*Entity) *GameState {
	pick := func(refs []string) []*Entity {
		out := make([]*Entity, 0, len(refs))
		for _, id := range refs {
			if e, ok := bodies[id]; ok {
				out = append(out, e)
			}
		}
		return out
	}
	loc := s.Location.Clone()
	loc.Normalize()
	vessels := make([]Vessel, len(s.Vessels))
	for i, v := range s.Vessels {
		v.Items = slices.Clone(v.Items)
		vessels[i] = v
	}
	return &GameState{
		SessionID:        sessionID,
		Phase:            s.Phase,
		ActiveEntityID:   s.ActiveEntityID,
		TurnOrder:        slices.Clone(s.TurnOrder),
		TurnIndex:        s.TurnIndex,
		Location:         loc,
		Discovered:       slices.Clone(s.Discovered),
		Party:            pick(s.Party),
		Enemies:          pick(s.Enemies),
		NPCs:             pick(s.NPCs),
		Vessels:          vessels,
		HasMovedThisTurn: s.HasMovedThisTurn,
		HasActedThisTurn: s.HasActedThisTurn,
		Outcome:          s.Outcome,
	}
}
