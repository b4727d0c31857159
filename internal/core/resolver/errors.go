package resolver

import "errors"

// Rule rejections. None of them is raised after a die has been rolled.
var (
	ErrOutOfRange     = errors.New("target out of range")
	ErrNoLineOfSight  = errors.New("no line of sight to target")
	ErrUnknownSpell   = errors.New("spell not known")
	ErrNotPlaced      = errors.New("entity is not on the map")
	ErrTargetDefeated = errors.New("target is already defeated")
)
