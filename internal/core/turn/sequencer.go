// Package turn is the phase state machine of a session: exploration, social
// and combat, initiative, turn advancement, death and the actions that spend
// a turn. Every method mutates the GameState it is given and expects the
// caller to hold the session lock.
package turn

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/zeusync/tabletop/internal/core/models"
	"github.com/zeusync/tabletop/internal/core/observability/log"
	"github.com/zeusync/tabletop/internal/core/resolver"
	"github.com/zeusync/tabletop/internal/core/state"
)

type Config struct {
	// SaveDC is the fixed difficulty saving-throw spells are checked against.
	SaveDC int `yaml:"save_dc" env:"SAVE_DC"`
	// TalkRange is how close, in hexes, an actor must be to start a conversation.
	TalkRange int `yaml:"talk_range" env:"TALK_RANGE"`
	// ExplorationSteps bounds a single move outside combat.
	ExplorationSteps int `yaml:"exploration_steps" env:"EXPLORATION_STEPS"`
}

func DefaultConfig() Config {
	return Config{SaveDC: 13, TalkRange: 3, ExplorationSteps: 30}
}

type Sequencer struct {
	res    *resolver.Resolver
	cfg    Config
	newID  func() string
	logger log.Log
}

func New(res *resolver.Resolver, cfg Config, logger log.Log) *Sequencer {
	def := DefaultConfig()
	if cfg.SaveDC <= 0 {
		cfg.SaveDC = def.SaveDC
	}
	if cfg.TalkRange <= 0 {
		cfg.TalkRange = def.TalkRange
	}
	if cfg.ExplorationSteps <= 0 {
		cfg.ExplorationSteps = def.ExplorationSteps
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Sequencer{
		res:    res,
		cfg:    cfg,
		newID:  func() string { return "vessel-" + uuid.NewString() },
		logger: logger.With(log.Component("turn")),
	}
}

func (s *Sequencer) Resolver() *resolver.Resolver {
	return s.res
}

func (s *Sequencer) Config() Config {
	return s.cfg
}

// StartCombat rolls initiative for every living entity and hands the first
// turn to the highest roll. Equal rolls keep encounter order. Combat needs at
// least one living hostile.
func (s *Sequencer) StartCombat(gs *models.GameState) error {
	if gs.Phase == models.PhaseCombat {
		return fmt.Errorf("%w: combat already in progress", ErrInvalidTransition)
	}
	living := gs.Living()
	if len(living) == 0 {
		return ErrNoLivingEntities
	}
	// nothing could ever end a fight without an opponent
	if !gs.AnyAlive(models.SideHostile) {
		return fmt.Errorf("%w: no hostiles to fight", ErrInvalidTransition)
	}
	for _, e := range living {
		e.Initiative = s.res.RollInitiative(e)
	}
	slices.SortStableFunc(living, func(a, b *models.Entity) int {
		return cmp.Compare(b.Initiative, a.Initiative)
	})

	order := make([]string, len(living))
	for i, e := range living {
		order[i] = e.ID
	}
	gs.Phase = models.PhaseCombat
	gs.TurnOrder = order
	gs.TurnIndex = 0
	gs.ActiveEntityID = order[0]
	gs.Outcome = models.OutcomeNone
	gs.ResetTurnFlags()

	s.logger.Info("combat started", log.Session(gs.SessionID),
		log.Strings("order", order), log.Entity(gs.ActiveEntityID))
	return nil
}

// Advance hands the turn to the next living entity in order, wrapping around.
// When nobody in the order is alive the state is left as it was.
func (s *Sequencer) Advance(gs *models.GameState) (*models.Entity, error) {
	n := len(gs.TurnOrder)
	if n == 0 {
		return nil, ErrNoLivingEntities
	}
	for step := 1; step <= n; step++ {
		idx := (gs.TurnIndex + step) % n
		e := gs.Entity(gs.TurnOrder[idx])
		if !e.IsAlive() {
			continue
		}
		gs.TurnIndex = idx
		gs.ActiveEntityID = e.ID
		gs.ResetTurnFlags()
		return e, nil
	}
	return nil, ErrNoLivingEntities
}

// EndTurn passes the active entity's turn.
func (s *Sequencer) EndTurn(gs *models.GameState, actorID string) (*models.Entity, error) {
	if gs.Phase != models.PhaseCombat {
		return nil, fmt.Errorf("%w: not in combat", ErrInvalidTransition)
	}
	if gs.ActiveEntityID != actorID {
		return nil, ErrNotYourTurn
	}
	return s.Advance(gs)
}

// CheckCombatEnd closes combat once one side is wiped out. On a victory every
// fallen party member gets back up with 1 hp.
func (s *Sequencer) CheckCombatEnd(gs *models.GameState) (models.Outcome, bool) {
	if gs.Phase != models.PhaseCombat {
		return models.OutcomeNone, false
	}

	var outcome models.Outcome
	switch {
	case !gs.AnyAlive(models.SideHostile):
		outcome = models.OutcomeVictory
		for _, p := range gs.Party {
			if p.HPCurrent == 0 && p.HPMax > 0 {
				p.HPCurrent = 1
			}
		}
	case !slices.ContainsFunc(gs.Party, (*models.Entity).IsAlive):
		outcome = models.OutcomeDefeat
	default:
		return models.OutcomeNone, false
	}

	gs.Phase = models.PhaseExploration
	gs.TurnOrder = nil
	gs.TurnIndex = 0
	gs.ActiveEntityID = ""
	gs.Outcome = outcome
	gs.ResetTurnFlags()
	s.logger.Info("combat ended", log.Session(gs.SessionID), log.String("outcome", string(outcome)))
	return outcome, true
}

// actor resolves a living, placed entity that may act now. In combat only the
// active entity may act.
func (s *Sequencer) actor(gs *models.GameState, id string) (*models.Entity, error) {
	e, err := state.Lookup(gs, id)
	if err != nil {
		return nil, err
	}
	if !e.IsAlive() {
		return nil, ErrActorDefeated
	}
	if e.Position == nil {
		return nil, ErrNotPlaced
	}
	if gs.Phase == models.PhaseCombat && gs.ActiveEntityID != id {
		return nil, ErrNotYourTurn
	}
	return e, nil
}

func (s *Sequencer) spendAction(gs *models.GameState) error {
	if gs.Phase != models.PhaseCombat {
		return nil
	}
	if gs.HasActedThisTurn {
		return ErrAlreadyActed
	}
	return nil
}
