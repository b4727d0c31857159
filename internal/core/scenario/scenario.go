// Package scenario loads authored encounters from YAML or JSON and seeds
// sessions with them.
package scenario

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/tabletop/internal/core/hex"
	"github.com/zeusync/tabletop/internal/core/models"
	"github.com/zeusync/tabletop/internal/core/state"
	"github.com/zeusync/tabletop/internal/core/storage"
)

//go:embed fixtures/*.yaml
var fixtures embed.FS

var ErrInvalidScenario = errors.New("invalid scenario")

// Area is a location as authored. A positive Radius with no walkable hexes
// makes the whole disk around the origin walkable.
type Area struct {
	models.Location `yaml:",inline"`
	Radius          int `json:"radius,omitempty" yaml:"radius,omitempty"`
}

type Scenario struct {
	Name string `json:"name" yaml:"name"`
	// Start is where the party begins.
	Start Area `json:"start" yaml:"start"`
	// Locations are the places doors lead to.
	Locations []Area `json:"locations,omitempty" yaml:"locations,omitempty"`

	Party   []*models.Entity `json:"party" yaml:"party"`
	Enemies []*models.Entity `json:"enemies,omitempty" yaml:"enemies,omitempty"`
	NPCs    []*models.Entity `json:"npcs,omitempty" yaml:"npcs,omitempty"`
}

// LoadJSON loads a scenario from a JSON reader.
func LoadJSON(r io.Reader) (*Scenario, error) {
	var s Scenario
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	return &s, s.normalize()
}

// LoadYAML loads a scenario from a YAML reader.
func LoadYAML(r io.Reader) (*Scenario, error) {
	var s Scenario
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	return &s, s.normalize()
}

// LoadFile picks the decoder from the file extension.
func LoadFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadJSON(f)
	case ".yaml", ".yml":
		return LoadYAML(f)
	default:
		return nil, fmt.Errorf("%w: unsupported file %s", ErrInvalidScenario, path)
	}
}

// Builtin loads one of the bundled scenarios by name.
func Builtin(name string) (*Scenario, error) {
	f, err := fixtures.Open("fixtures/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: no builtin scenario %q", ErrInvalidScenario, name)
	}
	defer f.Close()
	return LoadYAML(f)
}

// axial rebuilds c from Q and R; fixtures usually leave S out.
func axial(c hex.Coord) hex.Coord {
	return hex.New(c.Q, c.R)
}

func (a *Area) normalize() {
	if a.Walkable == nil {
		a.Walkable = hex.NewSet()
	}
	walkable := hex.NewSet()
	for c := range a.Walkable {
		walkable.Add(axial(c))
	}
	if len(walkable) == 0 && a.Radius > 0 {
		walkable = hex.Disk(hex.New(0, 0), a.Radius)
	}
	a.Walkable = walkable
	for i := range a.SpawnPoints {
		a.SpawnPoints[i] = axial(a.SpawnPoints[i])
	}
	for i := range a.Objects {
		a.Objects[i].Position = axial(a.Objects[i].Position)
	}
	a.Location.Normalize()
}

func (s *Scenario) normalize() error {
	s.Start.normalize()
	for i := range s.Locations {
		s.Locations[i].normalize()
	}

	var errs []error
	if strings.TrimSpace(s.Start.ID) == "" {
		errs = append(errs, fmt.Errorf("%w: start location needs an id", ErrInvalidScenario))
	}
	if len(s.Party) == 0 {
		errs = append(errs, fmt.Errorf("%w: empty party", ErrInvalidScenario))
	}
	seen := make(map[string]struct{})
	for _, grp := range []struct {
		kind models.Kind
		list []*models.Entity
	}{
		{models.KindPlayer, s.Party},
		{models.KindEnemy, s.Enemies},
		{models.KindNPC, s.NPCs},
	} {
		for _, e := range grp.list {
			e.Kind = grp.kind
			if e.HPCurrent == 0 {
				e.HPCurrent = e.HPMax
			}
			if e.Position != nil {
				p := axial(*e.Position)
				e.Position = &p
				if !s.Start.Walkable.Has(p) {
					errs = append(errs, fmt.Errorf("%w: %s stands on %s which is not walkable", ErrInvalidScenario, e.ID, p))
				}
			}
			if _, dup := seen[e.ID]; dup || e.ID == "" {
				errs = append(errs, fmt.Errorf("%w: missing or duplicate entity id %q", ErrInvalidScenario, e.ID))
			}
			seen[e.ID] = struct{}{}
		}
	}
	return errors.Join(errs...)
}

// State builds the initial game state of a session.
func (s *Scenario) State(sessionID string) *models.GameState {
	clone := func(in []*models.Entity) []*models.Entity {
		out := make([]*models.Entity, len(in))
		for i, e := range in {
			out[i] = e.Clone()
		}
		return out
	}
	return &models.GameState{
		SessionID: sessionID,
		Phase:     models.PhaseExploration,
		Location:  s.Start.Location.Clone(),
		Party:     clone(s.Party),
		Enemies:   clone(s.Enemies),
		NPCs:      clone(s.NPCs),
	}
}

// Seed stores the scenario's locations and creates sessionID from it.
func (s *Scenario) Seed(ctx context.Context, store *state.Store, locations storage.LocationRepository, sessionID string) error {
	for _, a := range append([]Area{s.Start}, s.Locations...) {
		if err := locations.SaveLocation(ctx, a.Location); err != nil {
			return fmt.Errorf("seed location %s: %w", a.ID, err)
		}
	}
	if err := store.Create(ctx, s.State(sessionID)); err != nil {
		return fmt.Errorf("seed session %s: %w", sessionID, err)
	}
	return nil
}
