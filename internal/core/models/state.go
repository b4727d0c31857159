package models

import (
	"slices"

	"github.com/zeusync/tabletop/internal/core/hex"
)

type Phase string

const (
	PhaseExploration Phase = "exploration"
	PhaseCombat      Phase = "combat"
	PhaseSocial      Phase = "social"
)

// Outcome records how the most recent combat ended.
type Outcome string

const (
	OutcomeNone    Outcome = ""
	OutcomeVictory Outcome = "victory"
	OutcomeDefeat  Outcome = "defeat"
)

// GameState is the live aggregate for one session. It is owned by whoever
// holds the session lock and must not be kept after the lock is released.
type GameState struct {
	SessionID      string
	Phase          Phase
	ActiveEntityID string
	TurnOrder      []string
	TurnIndex      int

	Location   Location
	Discovered []string

	Party   []*Entity
	Enemies []*Entity
	NPCs    []*Entity
	Vessels []Vessel

	HasMovedThisTurn bool
	HasActedThisTurn bool
	Outcome          Outcome
}

// All returns every entity in encounter order: party, enemies, then NPCs.
func (gs *GameState) All() []*Entity {
	out := make([]*Entity, 0, len(gs.Party)+len(gs.Enemies)+len(gs.NPCs))
	out = append(out, gs.Party...)
	out = append(out, gs.Enemies...)
	out = append(out, gs.NPCs...)
	return out
}

func (gs *GameState) Entity(id string) *Entity {
	for _, e := range gs.All() {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (gs *GameState) Living() []*Entity {
	var out []*Entity
	for _, e := range gs.All() {
		if e.IsAlive() {
			out = append(out, e)
		}
	}
	return out
}

func (gs *GameState) ActiveEntity() *Entity {
	if gs.ActiveEntityID == "" {
		return nil
	}
	return gs.Entity(gs.ActiveEntityID)
}

// AnyAlive reports whether some entity on side is still standing.
func (gs *GameState) AnyAlive(side Side) bool {
	for _, e := range gs.All() {
		if e.IsAlive() && e.Side() == side {
			return true
		}
	}
	return false
}

// Occupied returns the positions of living entities other than except.
func (gs *GameState) Occupied(except string) hex.Set {
	out := hex.NewSet()
	for _, e := range gs.All() {
		if e.ID == except || !e.IsAlive() || e.Position == nil {
			continue
		}
		out.Add(*e.Position)
	}
	return out
}

// RemoveEntity drops id from the enemy and NPC collections. Party members
// are never removed. It reports whether anything was removed.
func (gs *GameState) RemoveEntity(id string) bool {
	match := func(e *Entity) bool { return e.ID == id }
	before := len(gs.Enemies) + len(gs.NPCs)
	gs.Enemies = slices.DeleteFunc(gs.Enemies, match)
	gs.NPCs = slices.DeleteFunc(gs.NPCs, match)
	return len(gs.Enemies)+len(gs.NPCs) != before
}

// RemoveFromTurnOrder deletes id from the order and keeps TurnIndex pointing
// at the same entity. When the current entity is removed the index steps
// back so the next advance lands on whoever slid into its slot.
func (gs *GameState) RemoveFromTurnOrder(id string) {
	idx := slices.Index(gs.TurnOrder, id)
	if idx < 0 {
		return
	}
	gs.TurnOrder = slices.Delete(gs.TurnOrder, idx, idx+1)
	if idx <= gs.TurnIndex {
		gs.TurnIndex--
	}
	if len(gs.TurnOrder) == 0 {
		gs.TurnIndex = 0
		return
	}
	if gs.TurnIndex < 0 {
		gs.TurnIndex = len(gs.TurnOrder) - 1
	}
}

func (gs *GameState) Vessel(id string) *Vessel {
	for i := range gs.Vessels {
		if gs.Vessels[i].ID == id {
			return &gs.Vessels[i]
		}
	}
	return nil
}

func (gs *GameState) ResetTurnFlags() {
	gs.HasMovedThisTurn = false
	gs.HasActedThisTurn = false
}

// Clone deep-copies the state.
func (gs *GameState) Clone() *GameState {
	c := *gs
	c.TurnOrder = slices.Clone(gs.TurnOrder)
	c.Discovered = slices.Clone(gs.Discovered)
	c.Location = gs.Location.Clone()
	cloneAll := func(in []*Entity) []*Entity {
		out := make([]*Entity, len(in))
		for i, e := range in {
			out[i] = e.Clone()
		}
		return out
	}
	c.Party = cloneAll(gs.Party)
	c.Enemies = cloneAll(gs.Enemies)
	c.NPCs = cloneAll(gs.NPCs)
	c.Vessels = make([]Vessel, len(gs.Vessels))
	for i, v := range gs.Vessels {
		v.Items = slices.Clone(v.Items)
		c.Vessels[i] = v
	}
	return &c
}
