package models

import (
	"math"
	"slices"

	"github.com/zeusync/tabletop/internal/core/hex"
)

// Kind names the collection an entity lives in.
type Kind string

const (
	KindPlayer Kind = "player"
	KindEnemy  Kind = "enemy"
	KindNPC    Kind = "npc"
)

// Controller tells the turn loop whether to wait for a human.
type Controller string

const (
	ControllerHuman Controller = "human"
	ControllerAI    Controller = "ai"
)

type Ability string

const (
	Strength     Ability = "str"
	Dexterity    Ability = "dex"
	Constitution Ability = "con"
	Intelligence Ability = "int"
	Wisdom       Ability = "wis"
	Charisma     Ability = "cha"
)

type Abilities struct {
	Str int `json:"str" yaml:"str"`
	Dex int `json:"dex" yaml:"dex"`
	Con int `json:"con" yaml:"con"`
	Int int `json:"int" yaml:"int"`
	Wis int `json:"wis" yaml:"wis"`
	Cha int `json:"cha" yaml:"cha"`
}

// Score returns the raw score. Unset scores read as 10.
func (a Abilities) Score(ab Ability) int {
	var v int
	switch ab {
	case Strength:
		v = a.Str
	case Dexterity:
		v = a.Dex
	case Constitution:
		v = a.Con
	case Intelligence:
		v = a.Int
	case Wisdom:
		v = a.Wis
	case Charisma:
		v = a.Cha
	}
	if v == 0 {
		return 10
	}
	return v
}

// Modifier converts an ability score into its roll modifier, rounding down.
func Modifier(score int) int {
	return int(math.Floor(float64(score-10) / 2))
}

type Wallet struct {
	Gold   int `json:"gold,omitempty" yaml:"gold,omitempty"`
	Silver int `json:"silver,omitempty" yaml:"silver,omitempty"`
	Copper int `json:"copper,omitempty" yaml:"copper,omitempty"`
}

func (w Wallet) Add(o Wallet) Wallet {
	return Wallet{Gold: w.Gold + o.Gold, Silver: w.Silver + o.Silver, Copper: w.Copper + o.Copper}
}

func (w Wallet) IsZero() bool {
	return w == Wallet{}
}

type Equipment struct {
	MainHand string `json:"main_hand,omitempty" yaml:"main_hand,omitempty"`
	Armor    string `json:"armor,omitempty" yaml:"armor,omitempty"`
	Shield   string `json:"shield,omitempty" yaml:"shield,omitempty"`
}

// Entity is the shared shape of players, enemies and NPCs.
//
// HPCurrent stays within [0, HPMax]; an entity at 0 is defeated and must not
// be picked for a turn or as a target. ArmorClass is derived during hydration
// and is not authoritative in storage.
type Entity struct {
	ID         string     `json:"id" yaml:"id"`
	Kind       Kind       `json:"kind" yaml:"kind"`
	Controller Controller `json:"controller,omitempty" yaml:"controller,omitempty"`
	Name       string     `json:"name" yaml:"name"`

	UnidentifiedName        string `json:"unidentified_name,omitempty" yaml:"unidentified_name,omitempty"`
	UnidentifiedDescription string `json:"unidentified_description,omitempty" yaml:"unidentified_description,omitempty"`
	Identified              bool   `json:"identified,omitempty" yaml:"identified,omitempty"`

	HPCurrent    int        `json:"hp_current" yaml:"hp_current"`
	HPMax        int        `json:"hp_max" yaml:"hp_max"`
	ArmorClass   int        `json:"armor_class" yaml:"armor_class"`
	NaturalArmor int        `json:"natural_armor,omitempty" yaml:"natural_armor,omitempty"`
	Initiative   int        `json:"initiative" yaml:"initiative"`
	Speed        int        `json:"speed" yaml:"speed"`
	Position     *hex.Coord `json:"position,omitempty" yaml:"position,omitempty"`

	Abilities     Abilities `json:"abilities" yaml:"abilities"`
	Equipment     Equipment `json:"equipment" yaml:"equipment"`
	Inventory     []string  `json:"inventory,omitempty" yaml:"inventory,omitempty"`
	Spells        []string  `json:"spells,omitempty" yaml:"spells,omitempty"`
	StatusEffects []string  `json:"status_effects,omitempty" yaml:"status_effects,omitempty"`
	Wallet        Wallet    `json:"wallet" yaml:"wallet"`

	Ext Extensions `json:"ext" yaml:"ext"`
}

func (e *Entity) IsAlive() bool {
	return e != nil && e.HPCurrent > 0
}

func (e *Entity) Mod(ab Ability) int {
	return Modifier(e.Abilities.Score(ab))
}

// IsHuman reports whether a person drives this entity. Players default to
// human control; everything else defaults to AI.
func (e *Entity) IsHuman() bool {
	if e.Controller != "" {
		return e.Controller == ControllerHuman
	}
	return e.Kind == KindPlayer
}

// MovementSteps is the BFS budget for one move: speed in feet over five.
func (e *Entity) MovementSteps() int {
	return e.Speed / 5
}

// ApplyDamage subtracts damage and floors HP at zero. It returns the HP
// actually removed.
func (e *Entity) ApplyDamage(amount int) int {
	if amount <= 0 {
		return 0
	}
	before := e.HPCurrent
	e.HPCurrent = max(e.HPCurrent-amount, 0)
	return before - e.HPCurrent
}

func (e *Entity) Knows(spell string) bool {
	return slices.Contains(e.Spells, spell)
}

// DisplayName is what players see: the unidentified name until an identify
// check succeeds.
func (e *Entity) DisplayName() string {
	if !e.Identified && e.UnidentifiedName != "" {
		return e.UnidentifiedName
	}
	return e.Name
}

func (e *Entity) DisplayDescription() string {
	if !e.Identified && e.UnidentifiedDescription != "" {
		return e.UnidentifiedDescription
	}
	return e.Ext.Description
}

// Clone returns a deep copy.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	c := *e
	if e.Position != nil {
		p := *e.Position
		c.Position = &p
	}
	c.Inventory = slices.Clone(e.Inventory)
	c.Spells = slices.Clone(e.Spells)
	c.StatusEffects = slices.Clone(e.StatusEffects)
	c.Ext = e.Ext.clone()
	return &c
}
