package turn

import (
	"fmt"

	"github.com/zeusync/tabletop/internal/core/hex"
	"github.com/zeusync/tabletop/internal/core/models"
	"github.com/zeusync/tabletop/internal/core/state"
)

type MoveResult struct {
	EntityID string      `json:"entity_id"`
	From     hex.Coord   `json:"from"`
	To       hex.Coord   `json:"to"`
	Path     []hex.Coord `json:"path"`
}

// Moved reports whether the entity changed hex.
func (m MoveResult) Moved() bool {
	return len(m.Path) > 0
}

func (s *Sequencer) steps(gs *models.GameState, e *models.Entity) int {
	if gs.Phase == models.PhaseCombat {
		return e.MovementSteps()
	}
	return s.cfg.ExplorationSteps
}

// ReachableFrom runs the movement search for e: walkable hexes not held by
// another living entity, within e's budget for the current phase.
func (s *Sequencer) ReachableFrom(gs *models.GameState, e *models.Entity) hex.Paths {
	occupied := gs.Occupied(e.ID)
	passable := func(c hex.Coord) bool {
		return gs.Location.Walkable.Has(c) && !occupied.Has(c)
	}
	return hex.Reachable(*e.Position, s.steps(gs, e), passable)
}

func (s *Sequencer) checkMove(gs *models.GameState, actorID string) (*models.Entity, error) {
	e, err := s.actor(gs, actorID)
	if err != nil {
		return nil, err
	}
	if gs.Phase == models.PhaseCombat && gs.HasMovedThisTurn {
		return nil, ErrAlreadyMoved
	}
	return e, nil
}

func (s *Sequencer) commitMove(gs *models.GameState, e *models.Entity, path []hex.Coord) MoveResult {
	res := MoveResult{EntityID: e.ID, From: *e.Position, To: *e.Position, Path: path}
	if len(path) > 0 {
		dest := path[len(path)-1]
		e.Position = &dest
		res.To = dest
	}
	if gs.Phase == models.PhaseCombat {
		gs.HasMovedThisTurn = true
	}
	return res
}

// Move walks actorID to dest along the shortest path. In combat the budget is
// the entity's speed and only one move is allowed per turn.
func (s *Sequencer) Move(gs *models.GameState, actorID string, dest hex.Coord) (MoveResult, error) {
	e, err := s.checkMove(gs, actorID)
	if err != nil {
		return MoveResult{}, err
	}
	if dest == *e.Position {
		return MoveResult{EntityID: e.ID, From: dest, To: dest}, nil
	}
	path, ok := s.ReachableFrom(gs, e)[dest]
	if !ok {
		return MoveResult{}, fmt.Errorf("%w: %s", ErrUnreachable, dest)
	}
	return s.commitMove(gs, e, path), nil
}

// Approach moves actorID toward targetID until it stands within reach hexes
// with a clear line. Among hexes that qualify the one with the shortest path
// wins, ties broken by coordinate order. When no reachable hex qualifies the
// entity closes as much distance as it can. An entity already in position
// does not move.
func (s *Sequencer) Approach(gs *models.GameState, actorID, targetID string, reach int) (MoveResult, error) {
	e, err := s.checkMove(gs, actorID)
	if err != nil {
		return MoveResult{}, err
	}
	target, err := state.Lookup(gs, targetID)
	if err != nil {
		return MoveResult{}, err
	}
	if target.Position == nil {
		return MoveResult{}, fmt.Errorf("%w: %s", ErrUnreachable, targetID)
	}
	goal := *target.Position
	inPosition := func(c hex.Coord) bool {
		d := hex.Distance(c, goal)
		return d <= reach && (d <= 1 || hex.LineOfSight(c, goal, gs.Location.Walkable))
	}
	if inPosition(*e.Position) {
		return MoveResult{EntityID: e.ID, From: *e.Position, To: *e.Position}, nil
	}

	paths := s.ReachableFrom(gs, e)
	var candidates []hex.Coord
	for c := range paths {
		if inPosition(c) {
			candidates = append(candidates, c)
		}
	}
	if _, path, ok := paths.Shortest(candidates); ok {
		return s.commitMove(gs, e, path), nil
	}

	// nothing in reach this turn: take the hex that ends closest to the goal
	best, bestDist, found := hex.Coord{}, 0, false
	for c, path := range paths {
		d := hex.Distance(c, goal)
		switch {
		case !found, d < bestDist:
		case d == bestDist && (len(path) < len(paths[best]) || (len(path) == len(paths[best]) && c.Less(best))):
		default:
			continue
		}
		best, bestDist, found = c, d, true
	}
	if !found || best == *e.Position {
		return MoveResult{}, fmt.Errorf("%w: no path toward %s", ErrUnreachable, targetID)
	}
	return s.commitMove(gs, e, paths[best]), nil
}
