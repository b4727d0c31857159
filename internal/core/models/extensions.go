package models

import (
	"maps"
	"slices"
)

type Disposition string

const (
	DispositionHostile  Disposition = "hostile"
	DispositionAlly     Disposition = "ally"
	DispositionFriendly Disposition = "friendly"
	DispositionNeutral  Disposition = "neutral"
)

// Side groups entities that fight together. SideNone never takes part in
// targeting.
type Side int

const (
	SideNone Side = iota
	SideParty
	SideHostile
)

// Bark triggers.
const (
	BarkAttack = "attack"
	BarkHurt   = "hurt"
	BarkDeath  = "death"
	BarkSpot   = "spot"
)

// Extensions is the side-table of optional, kind-specific fields.
//
//	Field        Kinds          Accessor
//	Barks        enemy, npc     Entity.BarkLines
//	Loot         enemy, npc     Entity.LootTable
//	Disposition  npc            Entity.Disposition (enemy and player are fixed)
//	IdentifyDC   any            Entity.IdentifyDC
//	Description  any            Entity.DisplayDescription
//
// Fields that do not apply to an entity's kind are ignored by the accessors.
type Extensions struct {
	Barks       map[string][]string `json:"barks,omitempty" yaml:"barks,omitempty"`
	Loot        *LootTable          `json:"loot,omitempty" yaml:"loot,omitempty"`
	Disposition Disposition         `json:"disposition,omitempty" yaml:"disposition,omitempty"`
	IdentifyDC  int                 `json:"identify_dc,omitempty" yaml:"identify_dc,omitempty"`
	Description string              `json:"description,omitempty" yaml:"description,omitempty"`
}

func (x Extensions) clone() Extensions {
	c := x
	if x.Barks != nil {
		c.Barks = make(map[string][]string, len(x.Barks))
		for k, v := range x.Barks {
			c.Barks[k] = slices.Clone(v)
		}
	}
	if x.Loot != nil {
		l := *x.Loot
		l.Entries = slices.Clone(x.Loot.Entries)
		c.Loot = &l
	}
	return c
}

const defaultIdentifyDC = 12

// Disposition resolves the entity's attitude. Enemies are always hostile and
// players always allies; NPCs read the side-table and default to neutral.
func (e *Entity) Disposition() Disposition {
	switch e.Kind {
	case KindEnemy:
		return DispositionHostile
	case KindPlayer:
		return DispositionAlly
	}
	if e.Ext.Disposition == "" {
		return DispositionNeutral
	}
	return e.Ext.Disposition
}

func (e *Entity) IsHostile() bool {
	return e.Disposition() == DispositionHostile
}

func (e *Entity) Side() Side {
	switch e.Disposition() {
	case DispositionHostile:
		return SideHostile
	case DispositionAlly:
		return SideParty
	default:
		return SideNone
	}
}

// Opposes reports whether e and o fight on opposite sides.
func (e *Entity) Opposes(o *Entity) bool {
	a, b := e.Side(), o.Side()
	return a != SideNone && b != SideNone && a != b
}

// LootTable returns the drop table for enemies and NPCs, nil otherwise.
func (e *Entity) LootTable() *LootTable {
	if e.Kind == KindPlayer {
		return nil
	}
	return e.Ext.Loot
}

// BarkLines returns the lines registered for trigger.
func (e *Entity) BarkLines(trigger string) []string {
	if e.Kind == KindPlayer || e.Ext.Barks == nil {
		return nil
	}
	return e.Ext.Barks[trigger]
}

// BarkTriggers lists the triggers with at least one line, sorted.
func (e *Entity) BarkTriggers() []string {
	return slices.Sorted(maps.Keys(e.Ext.Barks))
}

func (e *Entity) IdentifyDC() int {
	if e.Ext.IdentifyDC > 0 {
		return e.Ext.IdentifyDC
	}
	return defaultIdentifyDC
}
