package models

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/tabletop/internal/core/dice"
)

type ItemKind string

const (
	ItemWeapon ItemKind = "weapon"
	ItemArmor  ItemKind = "armor"
	ItemShield ItemKind = "shield"
	ItemMisc   ItemKind = "misc"
)

type ArmorType string

const (
	ArmorLight  ArmorType = "light"
	ArmorMedium ArmorType = "medium"
	ArmorHeavy  ArmorType = "heavy"
)

type Item struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Kind      ItemKind  `json:"kind" yaml:"kind"`
	Damage    string    `json:"damage,omitempty" yaml:"damage,omitempty"`
	Finesse   bool      `json:"finesse,omitempty" yaml:"finesse,omitempty"`
	Ranged    bool      `json:"ranged,omitempty" yaml:"ranged,omitempty"`
	RangeFeet int       `json:"range_feet,omitempty" yaml:"range_feet,omitempty"`
	ArmorBase int       `json:"armor_base,omitempty" yaml:"armor_base,omitempty"`
	ArmorType ArmorType `json:"armor_type,omitempty" yaml:"armor_type,omitempty"`
}

type SpellKind string

const (
	SpellAttack SpellKind = "attack"
	SpellSave   SpellKind = "save"
)

type Spell struct {
	Name        string    `json:"name" yaml:"name"`
	Kind        SpellKind `json:"kind" yaml:"kind"`
	Damage      string    `json:"damage" yaml:"damage"`
	RangeFeet   int       `json:"range_feet" yaml:"range_feet"`
	SaveAbility Ability   `json:"save_ability,omitempty" yaml:"save_ability,omitempty"`
}

// Catalog resolves item and spell references held by entities.
type Catalog struct {
	Items  map[string]Item  `json:"items" yaml:"items"`
	Spells map[string]Spell `json:"spells" yaml:"spells"`
}

func (c *Catalog) Item(id string) (Item, bool) {
	if c == nil || id == "" {
		return Item{}, false
	}
	it, ok := c.Items[id]
	return it, ok
}

func (c *Catalog) Spell(name string) (Spell, bool) {
	if c == nil {
		return Spell{}, false
	}
	sp, ok := c.Spells[name]
	return sp, ok
}

// Validate checks that every damage expression parses.
func (c *Catalog) Validate() error {
	for id, it := range c.Items {
		if it.Kind == ItemWeapon {
			if _, err := dice.Parse(it.Damage); err != nil {
				return fmt.Errorf("item %s: %w", id, err)
			}
		}
	}
	for name, sp := range c.Spells {
		if _, err := dice.Parse(sp.Damage); err != nil {
			return fmt.Errorf("spell %s: %w", name, err)
		}
		if sp.Kind != SpellAttack && sp.Kind != SpellSave {
			return fmt.Errorf("spell %s: unknown kind %q", name, sp.Kind)
		}
	}
	return nil
}

// LoadCatalogYAML decodes and validates a catalog. Map keys fill missing ids
// and names.
func LoadCatalogYAML(r io.Reader) (*Catalog, error) {
	var c Catalog
	if err := yaml.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	for id, it := range c.Items {
		if it.ID == "" {
			it.ID = id
			c.Items[id] = it
		}
	}
	for name, sp := range c.Spells {
		if sp.Name == "" {
			sp.Name = name
			c.Spells[name] = sp
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// DefaultCatalog is the built-in rule subset.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Items: map[string]Item{
			"dagger":        {ID: "dagger", Name: "Dagger", Kind: ItemWeapon, Damage: "1d4", Finesse: true},
			"shortsword":    {ID: "shortsword", Name: "Shortsword", Kind: ItemWeapon, Damage: "1d6", Finesse: true},
			"longsword":     {ID: "longsword", Name: "Longsword", Kind: ItemWeapon, Damage: "1d8"},
			"greataxe":      {ID: "greataxe", Name: "Greataxe", Kind: ItemWeapon, Damage: "1d12"},
			"mace":          {ID: "mace", Name: "Mace", Kind: ItemWeapon, Damage: "1d6"},
			"shortbow":      {ID: "shortbow", Name: "Shortbow", Kind: ItemWeapon, Damage: "1d6", Ranged: true, RangeFeet: 80},
			"longbow":       {ID: "longbow", Name: "Longbow", Kind: ItemWeapon, Damage: "1d8", Ranged: true, RangeFeet: 150},
			"leather_armor": {ID: "leather_armor", Name: "Leather Armor", Kind: ItemArmor, ArmorBase: 11, ArmorType: ArmorLight},
			"scale_mail":    {ID: "scale_mail", Name: "Scale Mail", Kind: ItemArmor, ArmorBase: 14, ArmorType: ArmorMedium},
			"chain_mail":    {ID: "chain_mail", Name: "Chain Mail", Kind: ItemArmor, ArmorBase: 16, ArmorType: ArmorHeavy},
			"shield":        {ID: "shield", Name: "Shield", Kind: ItemShield, ArmorBase: 2},
			"healing_herb":  {ID: "healing_herb", Name: "Healing Herb", Kind: ItemMisc},
			"gem":           {ID: "gem", Name: "Gem", Kind: ItemMisc},
		},
		Spells: map[string]Spell{
			"fire_bolt":     {Name: "fire_bolt", Kind: SpellAttack, Damage: "1d10", RangeFeet: 120},
			"ray_of_frost":  {Name: "ray_of_frost", Kind: SpellAttack, Damage: "1d8", RangeFeet: 60},
			"sacred_flame":  {Name: "sacred_flame", Kind: SpellSave, Damage: "1d8", RangeFeet: 60, SaveAbility: Dexterity},
			"poison_spray":  {Name: "poison_spray", Kind: SpellSave, Damage: "1d12", RangeFeet: 10, SaveAbility: Constitution},
			"thunderwave":   {Name: "thunderwave", Kind: SpellSave, Damage: "2d8", RangeFeet: 15, SaveAbility: Constitution},
			"chill_touch":   {Name: "chill_touch", Kind: SpellAttack, Damage: "1d8", RangeFeet: 120},
			"vicious_mock":  {Name: "vicious_mock", Kind: SpellSave, Damage: "1d4", RangeFeet: 60, SaveAbility: Wisdom},
			"shocking_grip": {Name: "shocking_grip", Kind: SpellAttack, Damage: "1d8", RangeFeet: 5},
		},
	}
}

// ArmorClassFor derives armor from equipped items. Light armor adds the full
// dexterity modifier, medium caps it at +2, heavy ignores it; a shield adds
// its bonus. Without body armor the entity's natural armor applies when set,
// otherwise 10 plus dexterity.
func (c *Catalog) ArmorClassFor(e *Entity) int {
	dex := e.Mod(Dexterity)

	ac := 10 + dex
	if armor, ok := c.Item(e.Equipment.Armor); ok && armor.Kind == ItemArmor {
		switch armor.ArmorType {
		case ArmorHeavy:
			ac = armor.ArmorBase
		case ArmorMedium:
			ac = armor.ArmorBase + min(dex, 2)
		default:
			ac = armor.ArmorBase + dex
		}
	} else if e.NaturalArmor > 0 {
		ac = e.NaturalArmor
	}

	if shield, ok := c.Item(e.Equipment.Shield); ok && shield.Kind == ItemShield {
		bonus := shield.ArmorBase
		if bonus == 0 {
			bonus = 2
		}
		ac += bonus
	}
	return ac
}
