package turn

import (
	"fmt"
	"slices"

	"github.com/zeusync/tabletop/internal/core/hex"
	"github.com/zeusync/tabletop/internal/core/models"
	"github.com/zeusync/tabletop/internal/core/observability/log"
	"github.com/zeusync/tabletop/internal/core/resolver"
	"github.com/zeusync/tabletop/internal/core/state"
)

// interactReach is how close an actor must stand to use an object or vessel.
const interactReach = 1

type OpenOutcome struct {
	ActorID  string `json:"actor_id"`
	TargetID string `json:"target_id"`

	// InterruptedBy names the hostile that noticed the actor.
	InterruptedBy string `json:"interrupted_by,omitempty"`

	Kind   models.ObjectKind `json:"kind,omitempty"`
	Open   bool              `json:"open"`
	Vessel *models.Vessel    `json:"vessel,omitempty"`
	Items  []string          `json:"items,omitempty"`
	Wallet models.Wallet     `json:"wallet"`
}

func near(e *models.Entity, c hex.Coord) bool {
	return hex.Distance(*e.Position, c) <= interactReach
}

// Open interacts with an object or vessel next to the actor. Outside combat a
// watching hostile interrupts first: combat starts and ErrInterrupted is
// returned. Opening a vessel takes everything in it; a chest becomes a vessel
// the first time it is opened; doors and levers toggle.
func (s *Sequencer) Open(gs *models.GameState, actorID, targetID string) (OpenOutcome, error) {
	out := OpenOutcome{ActorID: actorID, TargetID: targetID}
	actor, err := s.actor(gs, actorID)
	if err != nil {
		return out, err
	}
	if err := s.spendAction(gs); err != nil {
		return out, err
	}

	if gs.Phase != models.PhaseCombat {
		if hostile, ok := s.res.OpportunityInterrupt(gs, actorID); ok {
			if err := s.StartCombat(gs); err != nil {
				return out, err
			}
			out.InterruptedBy = hostile.ID
			s.logger.Info("interaction interrupted", log.Session(gs.SessionID),
				log.Entity(actorID), log.String("hostile", hostile.ID))
			return out, fmt.Errorf("%w: %s spotted %s", ErrInterrupted, hostile.DisplayName(), actor.DisplayName())
		}
	}

	if v := gs.Vessel(targetID); v != nil {
		if !near(actor, v.Position) {
			return out, ErrTooFar
		}
		out.Items, out.Wallet = s.take(gs, actor, targetID)
		out.Open = true
		s.acted(gs)
		return out, nil
	}

	obj := gs.Location.Object(targetID)
	if obj == nil {
		return out, fmt.Errorf("%w: %s", ErrNoSuchObject, targetID)
	}
	if !near(actor, obj.Position) {
		return out, ErrTooFar
	}
	out.Kind = obj.Kind

	switch obj.Kind {
	case models.ObjectChest:
		obj.Open = true
		if obj.VesselID == "" {
			items, wallet := s.res.RollLoot(obj.Loot)
			v := models.Vessel{
				ID:       s.newID(),
				Name:     obj.Name,
				SourceID: obj.ID,
				Position: obj.Position,
				Items:    append(slices.Clone(obj.Items), items...),
				Wallet:   wallet,
			}
			obj.VesselID = v.ID
			obj.Items = nil
			gs.Vessels = append(gs.Vessels, v)
		}
		if v := gs.Vessel(obj.VesselID); v != nil {
			c := *v
			c.Items = slices.Clone(v.Items)
			out.Vessel = &c
		}
	default:
		obj.Open = !obj.Open
	}
	out.Open = obj.Open
	s.acted(gs)
	return out, nil
}

// take moves a vessel's contents to actor and drops the emptied vessel.
func (s *Sequencer) take(gs *models.GameState, actor *models.Entity, vesselID string) ([]string, models.Wallet) {
	v := gs.Vessel(vesselID)
	items, wallet := v.Drain()
	actor.Inventory = append(actor.Inventory, items...)
	actor.Wallet = actor.Wallet.Add(wallet)
	gs.Vessels = slices.DeleteFunc(gs.Vessels, func(v models.Vessel) bool { return v.ID == vesselID })
	return items, wallet
}

func (s *Sequencer) acted(gs *models.GameState) {
	if gs.Phase == models.PhaseCombat {
		gs.HasActedThisTurn = true
	}
}

// Identify spends the actor's action on recognising target.
func (s *Sequencer) Identify(gs *models.GameState, actorID, targetID string) (resolver.IdentifyResult, error) {
	actor, err := s.actor(gs, actorID)
	if err != nil {
		return resolver.IdentifyResult{}, err
	}
	target, err := state.Lookup(gs, targetID)
	if err != nil {
		return resolver.IdentifyResult{}, err
	}
	if err := s.spendAction(gs); err != nil {
		return resolver.IdentifyResult{}, err
	}
	res := s.res.Identify(actor, target)
	s.acted(gs)
	return res, nil
}

// TravelTarget validates that actorID can pass through doorID and returns the
// location behind it.
func (s *Sequencer) TravelTarget(gs *models.GameState, actorID, doorID string) (string, error) {
	if gs.Phase == models.PhaseCombat {
		return "", fmt.Errorf("%w: cannot leave during combat", ErrInvalidTransition)
	}
	actor, err := s.actor(gs, actorID)
	if err != nil {
		return "", err
	}
	door := gs.Location.Object(doorID)
	switch {
	case door == nil:
		return "", fmt.Errorf("%w: %s", ErrNoSuchObject, doorID)
	case door.Kind != models.ObjectDoor || door.TargetLocation == "":
		return "", ErrNotADoor
	case !door.Open:
		return "", ErrDoorClosed
	case !near(actor, door.Position):
		return "", ErrTooFar
	}
	return door.TargetLocation, nil
}

// Travel swaps the session to dest. The current location joins the
// discovered history, the party is placed on dest's spawn points and the
// enemies, NPCs and vessels of the old location are left behind.
func (s *Sequencer) Travel(gs *models.GameState, actorID, doorID string, dest models.Location) error {
	if _, err := s.TravelTarget(gs, actorID, doorID); err != nil {
		return err
	}
	if !slices.Contains(gs.Discovered, gs.Location.ID) {
		gs.Discovered = append(gs.Discovered, gs.Location.ID)
	}
	dest.Normalize()
	gs.Location = dest
	gs.Enemies, gs.NPCs, gs.Vessels = nil, nil, nil
	gs.Phase = models.PhaseExploration
	gs.ActiveEntityID = ""
	gs.ResetTurnFlags()

	placed := hex.NewSet()
	for _, p := range gs.Party {
		c, ok := spawnFor(dest, placed)
		if !ok {
			p.Position = nil
			continue
		}
		placed.Add(c)
		p.Position = &c
	}
	s.logger.Info("party travelled", log.Session(gs.SessionID), log.String("location", dest.ID))
	return nil
}

// spawnFor picks the first free spawn point, then the nearest free walkable
// hex around the spawn points.
func spawnFor(loc models.Location, taken hex.Set) (hex.Coord, bool) {
	for _, sp := range loc.SpawnPoints {
		if !taken.Has(sp) {
			return sp, true
		}
	}
	origins := loc.SpawnPoints
	if len(origins) == 0 {
		origins = loc.Walkable.Sorted()
	}
	for _, o := range origins {
		paths := hex.Reachable(o, len(loc.Walkable), loc.Walkable.Has)
		keys := paths.Keys()
		slices.SortFunc(keys, func(a, b hex.Coord) int {
			if d := len(paths[a]) - len(paths[b]); d != 0 {
				return d
			}
			if a.Less(b) {
				return -1
			}
			if b.Less(a) {
				return 1
			}
			return 0
		})
		for _, c := range keys {
			if !taken.Has(c) {
				return c, true
			}
		}
	}
	return hex.Coord{}, false
}

// EnterSocial starts a conversation between actorID and a non-hostile NPC.
func (s *Sequencer) EnterSocial(gs *models.GameState, actorID, npcID string) error {
	if gs.Phase != models.PhaseExploration {
		return fmt.Errorf("%w: cannot talk during %s", ErrInvalidTransition, gs.Phase)
	}
	actor, err := s.actor(gs, actorID)
	if err != nil {
		return err
	}
	npc, err := state.Lookup(gs, npcID)
	if err != nil {
		return err
	}
	if npc.Kind != models.KindNPC || npc.IsHostile() || !npc.IsAlive() {
		return ErrCannotTalk
	}
	if npc.Position == nil || hex.Distance(*actor.Position, *npc.Position) > s.cfg.TalkRange {
		return ErrTooFar
	}
	gs.Phase = models.PhaseSocial
	return nil
}

func (s *Sequencer) LeaveSocial(gs *models.GameState) error {
	if gs.Phase != models.PhaseSocial {
		return fmt.Errorf("%w: not in a conversation", ErrInvalidTransition)
	}
	gs.Phase = models.PhaseExploration
	return nil
}
