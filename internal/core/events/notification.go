// Package events turns game-state changes into notifications and fans them
// out to whoever watches a session.
package events

import (
	"time"

	"github.com/zeusync/tabletop/internal/core/events/bus"
	"github.com/zeusync/tabletop/internal/core/hex"
	"github.com/zeusync/tabletop/internal/core/models"
)

type Kind string

const (
	KindState     Kind = "state"
	KindPath      Kind = "path"
	KindTurnStart Kind = "turn_start"
	KindNarration Kind = "narration"
	KindCombatEnd Kind = "combat_end"
)

// Notification is one message for the clients of a session. It satisfies
// bus.Event so it can travel over the in-process bus unchanged.
type Notification struct {
	Kind      Kind      `json:"kind"`
	SessionID string    `json:"session_id"`
	Origin    string    `json:"origin,omitempty"`
	At        time.Time `json:"at"`
	Payload   any       `json:"payload"`
}

var _ bus.Event = Notification{}

func (n Notification) Type() string         { return string(n.Kind) }
func (n Notification) Source() string       { return n.Origin }
func (n Notification) Timestamp() time.Time { return n.At }
func (n Notification) Data() any            { return n.Payload }

func newNotification(kind Kind, sessionID, origin string, payload any) Notification {
	return Notification{Kind: kind, SessionID: sessionID, Origin: origin, At: time.Now().UTC(), Payload: payload}
}

// EntityView is the client-facing projection of an entity: unidentified
// entities show their cover name and description.
type EntityView struct {
	ID            string             `json:"id"`
	Kind          models.Kind        `json:"kind"`
	Name          string             `json:"name"`
	Description   string             `json:"description,omitempty"`
	HPCurrent     int                `json:"hp_current"`
	HPMax         int                `json:"hp_max"`
	ArmorClass    int                `json:"armor_class"`
	Position      *hex.Coord         `json:"position,omitempty"`
	Human         bool               `json:"human"`
	Disposition   models.Disposition `json:"disposition"`
	StatusEffects []string           `json:"status_effects,omitempty"`
}

type StateView struct {
	Phase          models.Phase    `json:"phase"`
	ActiveEntityID string          `json:"active_entity_id,omitempty"`
	TurnOrder      []string        `json:"turn_order,omitempty"`
	Location       models.Location `json:"location"`
	Discovered     []string        `json:"discovered,omitempty"`
	Party          []EntityView    `json:"party"`
	Enemies        []EntityView    `json:"enemies"`
	NPCs           []EntityView    `json:"npcs"`
	Vessels        []models.Vessel `json:"vessels,omitempty"`
	Outcome        models.Outcome  `json:"outcome,omitempty"`
}

func viewOf(e *models.Entity) EntityView {
	v := EntityView{
		ID:            e.ID,
		Kind:          e.Kind,
		Name:          e.DisplayName(),
		Description:   e.DisplayDescription(),
		HPCurrent:     e.HPCurrent,
		HPMax:         e.HPMax,
		ArmorClass:    e.ArmorClass,
		Human:         e.IsHuman(),
		Disposition:   e.Disposition(),
		StatusEffects: e.StatusEffects,
	}
	if e.Position != nil {
		p := *e.Position
		v.Position = &p
	}
	return v
}

// NewStateView projects gs. The view shares nothing with gs.
func NewStateView(gs *models.GameState) StateView {
	c := gs.Clone()
	views := func(in []*models.Entity) []EntityView {
		out := make([]EntityView, len(in))
		for i, e := range in {
			out[i] = viewOf(e)
		}
		return out
	}
	return StateView{
		Phase:          c.Phase,
		ActiveEntityID: c.ActiveEntityID,
		TurnOrder:      c.TurnOrder,
		Location:       c.Location,
		Discovered:     c.Discovered,
		Party:          views(c.Party),
		Enemies:        views(c.Enemies),
		NPCs:           views(c.NPCs),
		Vessels:        c.Vessels,
		Outcome:        c.Outcome,
	}
}

func State(gs *models.GameState) Notification {
	return newNotification(KindState, gs.SessionID, "", NewStateView(gs))
}

type PathHint struct {
	EntityID string      `json:"entity_id"`
	Path     []hex.Coord `json:"path"`
}

// Path hints the client to animate entityID along path.
func Path(sessionID, entityID string, path []hex.Coord) Notification {
	return newNotification(KindPath, sessionID, entityID, PathHint{EntityID: entityID, Path: path})
}

type TurnStart struct {
	EntityID string `json:"entity_id"`
	Name     string `json:"name"`
	Human    bool   `json:"human"`
}

func TurnStarted(sessionID string, e *models.Entity) Notification {
	return newNotification(KindTurnStart, sessionID, e.ID, TurnStart{EntityID: e.ID, Name: e.DisplayName(), Human: e.IsHuman()})
}

type NarrationText struct {
	Trigger string `json:"trigger"`
	Text    string `json:"text"`
}

func Narration(sessionID, trigger, text string) Notification {
	return newNotification(KindNarration, sessionID, "", NarrationText{Trigger: trigger, Text: text})
}

type CombatEnd struct {
	Outcome models.Outcome `json:"outcome"`
}

func CombatEnded(sessionID string, outcome models.Outcome) Notification {
	return newNotification(KindCombatEnd, sessionID, "", CombatEnd{Outcome: outcome})
}
