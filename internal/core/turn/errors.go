package turn

import (
	"errors"

	"github.com/zeusync/tabletop/internal/core/resolver"
	"github.com/zeusync/tabletop/internal/core/state"
)

var (
	// ErrInvalidTransition rejects a phase change that does not apply, such as
	// starting combat twice. State is left untouched.
	ErrInvalidTransition = errors.New("invalid phase transition")

	// ErrNoLivingEntities means advancement found nobody to hand the turn to.
	ErrNoLivingEntities = errors.New("no living entities in turn order")

	ErrNotYourTurn   = errors.New("not your turn")
	ErrAlreadyActed  = errors.New("already acted this turn")
	ErrAlreadyMoved  = errors.New("already moved this turn")
	ErrUnreachable   = errors.New("destination unreachable")
	ErrTooFar        = errors.New("too far away")
	ErrNoSuchObject  = errors.New("no such object")
	ErrDoorClosed    = errors.New("door is closed")
	ErrNotADoor      = errors.New("object is not a door")
	ErrCannotTalk    = errors.New("cannot talk to that")
	ErrActorDefeated = errors.New("actor is defeated")
	ErrNotPlaced     = errors.New("actor is not on the map")

	// ErrInterrupted rejects a non-combat action because a hostile noticed it.
	// Combat has started and the action must be issued again on the actor's turn.
	ErrInterrupted = errors.New("action interrupted by hostile")
)

var ruleErrors = []error{
	ErrInvalidTransition, ErrNoLivingEntities, ErrNotYourTurn, ErrAlreadyActed,
	ErrAlreadyMoved, ErrUnreachable, ErrTooFar, ErrNoSuchObject, ErrDoorClosed,
	ErrNotADoor, ErrCannotTalk, ErrActorDefeated, ErrNotPlaced, ErrInterrupted,
	resolver.ErrOutOfRange, resolver.ErrNoLineOfSight, resolver.ErrUnknownSpell,
	resolver.ErrNotPlaced, resolver.ErrTargetDefeated,
	state.ErrEntityNotFound,
}

// IsRuleError reports whether err is a rejection by the game rules, as
// opposed to a persistence or invariant failure.
func IsRuleError(err error) bool {
	for _, target := range ruleErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
