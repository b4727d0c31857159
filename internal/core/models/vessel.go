package models

import (
	"github.com/zeusync/tabletop/internal/core/dice"
	"github.com/zeusync/tabletop/internal/core/hex"
)

// Vessel is a lootable container: a corpse or an opened chest.
type Vessel struct {
	ID       string    `json:"id" yaml:"id"`
	Name     string    `json:"name" yaml:"name"`
	SourceID string    `json:"source_id,omitempty" yaml:"source_id,omitempty"`
	Position hex.Coord `json:"position" yaml:"position"`
	Items    []string  `json:"items,omitempty" yaml:"items,omitempty"`
	Wallet   Wallet    `json:"wallet" yaml:"wallet"`
}

func (v *Vessel) IsEmpty() bool {
	return len(v.Items) == 0 && v.Wallet.IsZero()
}

// Drain empties the vessel and returns what it held.
func (v *Vessel) Drain() ([]string, Wallet) {
	items, wallet := v.Items, v.Wallet
	v.Items, v.Wallet = nil, Wallet{}
	return items, wallet
}

// LootEntry drops ItemID when a d100 roll is at or below Chance.
type LootEntry struct {
	ItemID string `json:"item_id" yaml:"item_id"`
	Chance int    `json:"chance" yaml:"chance"`
}

// LootTable describes generated loot. Currency fields are dice expressions.
type LootTable struct {
	Entries []LootEntry `json:"entries,omitempty" yaml:"entries,omitempty"`
	Gold    string      `json:"gold,omitempty" yaml:"gold,omitempty"`
	Silver  string      `json:"silver,omitempty" yaml:"silver,omitempty"`
	Copper  string      `json:"copper,omitempty" yaml:"copper,omitempty"`
}

// Roll generates items and currency. Malformed currency expressions yield
// nothing for that coin.
func (t *LootTable) Roll(r dice.Roller) ([]string, Wallet) {
	if t == nil {
		return nil, Wallet{}
	}
	var items []string
	for _, e := range t.Entries {
		if r.Roll(100) <= e.Chance {
			items = append(items, e.ItemID)
		}
	}
	coin := func(expr string) int {
		if expr == "" {
			return 0
		}
		ex, err := dice.Parse(expr)
		if err != nil {
			return 0
		}
		_, total := ex.Roll(r)
		return max(total, 0)
	}
	return items, Wallet{Gold: coin(t.Gold), Silver: coin(t.Silver), Copper: coin(t.Copper)}
}
