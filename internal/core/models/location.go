package models

import (
	"slices"

	"github.com/zeusync/tabletop/internal/core/hex"
)

type ObjectKind string

const (
	ObjectDoor  ObjectKind = "door"
	ObjectChest ObjectKind = "chest"
	ObjectLever ObjectKind = "lever"
)

// Object is something on the map a participant can interact with. Doors may
// lead to another location; chests turn into a Vessel the first time they
// are opened.
type Object struct {
	ID             string     `json:"id" yaml:"id"`
	Name           string     `json:"name" yaml:"name"`
	Kind           ObjectKind `json:"kind" yaml:"kind"`
	Open           bool       `json:"open" yaml:"open"`
	Position       hex.Coord  `json:"position" yaml:"position"`
	TargetLocation string     `json:"target_location,omitempty" yaml:"target_location,omitempty"`
	Loot           *LootTable `json:"loot,omitempty" yaml:"loot,omitempty"`
	Items          []string   `json:"items,omitempty" yaml:"items,omitempty"`
	VesselID       string     `json:"vessel_id,omitempty" yaml:"vessel_id,omitempty"`
}

type Location struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description" yaml:"description"`
	Walkable    hex.Set     `json:"walkable" yaml:"walkable"`
	Objects     []Object    `json:"objects,omitempty" yaml:"objects,omitempty"`
	SpawnPoints []hex.Coord `json:"spawn_points,omitempty" yaml:"spawn_points,omitempty"`
}

// NewLocation builds a location whose walkable set contains every spawn
// point.
func NewLocation(id, name, description string, walkable hex.Set, objects []Object, spawns []hex.Coord) Location {
	l := Location{
		ID:          id,
		Name:        name,
		Description: description,
		Walkable:    walkable,
		Objects:     objects,
		SpawnPoints: spawns,
	}
	l.Normalize()
	return l
}

// Normalize restores the spawn-point invariant after decoding.
func (l *Location) Normalize() {
	if l.Walkable == nil {
		l.Walkable = hex.NewSet()
	}
	for _, sp := range l.SpawnPoints {
		l.Walkable.Add(sp)
	}
}

func (l *Location) Object(id string) *Object {
	for i := range l.Objects {
		if l.Objects[i].ID == id {
			return &l.Objects[i]
		}
	}
	return nil
}

func (l Location) Clone() Location {
	c := l
	c.Walkable = l.Walkable.Clone()
	c.Objects = make([]Object, len(l.Objects))
	for i, o := range l.Objects {
		o.Items = slices.Clone(o.Items)
		c.Objects[i] = o
	}
	c.SpawnPoints = slices.Clone(l.SpawnPoints)
	return c
}
