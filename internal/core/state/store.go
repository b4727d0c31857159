// Package state loads and saves whole GameState aggregates: a versioned
// skeleton plus one record per entity.
package state

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/tabletop/internal/core/models"
	"github.com/zeusync/tabletop/internal/core/observability/log"
	"github.com/zeusync/tabletop/internal/core/storage"
)

type Store struct {
	entities storage.EntityRepository
	sessions storage.SessionRepository
	catalog  *models.Catalog
	logger   log.Log
}

func NewStore(entities storage.EntityRepository, sessions storage.SessionRepository, catalog *models.Catalog, logger log.Log) *Store {
	if catalog == nil {
		catalog = models.DefaultCatalog()
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Store{
		entities: entities,
		sessions: sessions,
		catalog:  catalog,
		logger:   logger.With(log.Component("state")),
	}
}

func (s *Store) Catalog() *models.Catalog {
	return s.catalog
}

// Load hydrates the latest skeleton of a session. The three entity
// collections are fetched concurrently; ids whose record is gone are dropped.
func (s *Store) Load(ctx context.Context, sessionID string) (*models.GameState, error) {
	snap, err := s.sessions.FetchLatestSnapshot(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	groups := []struct {
		kind models.Kind
		ids  []string
	}{
		{models.KindPlayer, snap.Party},
		{models.KindEnemy, snap.Enemies},
		{models.KindNPC, snap.NPCs},
	}
	fetched := make([][]*models.Entity, len(groups))

	g, gctx := errgroup.WithContext(ctx)
	for i, grp := range groups {
		if len(grp.ids) == 0 {
			continue
		}
		g.Go(func() error {
			list, err := s.entities.FetchByIDs(gctx, grp.kind, grp.ids)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", grp.kind, err)
			}
			fetched[i] = list
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("hydrate session %s: %w", sessionID, err)
	}

	bodies := make(map[string]*models.Entity)
	for _, list := range fetched {
		for _, e := range list {
			e.ArmorClass = s.catalog.ArmorClassFor(e)
			bodies[e.ID] = e
		}
	}

	gs := snap.Hydrate(sessionID, bodies)
	if dropped := len(snap.Party) + len(snap.Enemies) + len(snap.NPCs) - len(gs.All()); dropped > 0 {
		s.logger.Debug("dropped missing entities on load",
			log.Session(sessionID), log.Int("dropped", dropped), log.Int("version", snap.Version))
	}
	return gs, nil
}

// Save validates gs, writes each entity collection with one batched upsert
// and appends a new skeleton version.
func (s *Store) Save(ctx context.Context, sessionID string, gs *models.GameState) error {
	if err := Validate(gs); err != nil {
		return err
	}

	for _, batch := range []struct {
		kind models.Kind
		list []*models.Entity
	}{
		{models.KindPlayer, gs.Party},
		{models.KindEnemy, gs.Enemies},
		{models.KindNPC, gs.NPCs},
	} {
		if len(batch.list) == 0 {
			continue
		}
		if err := s.entities.Upsert(ctx, batch.kind, batch.list); err != nil {
			return fmt.Errorf("save %s of session %s: %w", batch.kind, sessionID, err)
		}
	}

	if err := s.sessions.AppendSnapshot(ctx, sessionID, gs.Skeleton()); err != nil {
		return fmt.Errorf("append snapshot of session %s: %w", sessionID, err)
	}
	return nil
}

// Create seeds a new session. It fails with ErrSessionExists when the
// session already has history.
func (s *Store) Create(ctx context.Context, gs *models.GameState) error {
	if strings.TrimSpace(gs.SessionID) == "" {
		return fmt.Errorf("%w: session id is required", storage.ErrInvalidRequest)
	}
	_, err := s.sessions.FetchLatestSnapshot(ctx, gs.SessionID)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", ErrSessionExists, gs.SessionID)
	case !errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("check session %s: %w", gs.SessionID, err)
	}
	if gs.Phase == "" {
		gs.Phase = models.PhaseExploration
	}
	gs.Location.Normalize()
	for _, e := range gs.All() {
		e.ArmorClass = s.catalog.ArmorClassFor(e)
	}
	if err := s.Save(ctx, gs.SessionID, gs); err != nil {
		return err
	}
	s.logger.Info("session created", log.Session(gs.SessionID),
		log.Int("party", len(gs.Party)), log.Int("enemies", len(gs.Enemies)), log.Int("npcs", len(gs.NPCs)))
	return nil
}

// Validate checks the invariants that must hold before state reaches storage.
func Validate(gs *models.GameState) error {
	var errs []error
	seen := make(map[string]struct{})
	for _, e := range gs.All() {
		if strings.TrimSpace(e.ID) == "" {
			errs = append(errs, fmt.Errorf("%w: entity without id", ErrInvariantViolation))
			continue
		}
		if _, dup := seen[e.ID]; dup {
			errs = append(errs, fmt.Errorf("%w: duplicate entity %s", ErrInvariantViolation, e.ID))
		}
		seen[e.ID] = struct{}{}
		if e.HPCurrent < 0 || e.HPCurrent > e.HPMax {
			errs = append(errs, fmt.Errorf("%w: entity %s hp %d outside [0, %d]",
				ErrInvariantViolation, e.ID, e.HPCurrent, e.HPMax))
		}
		if e.Position != nil && !e.Position.Valid() {
			errs = append(errs, fmt.Errorf("%w: entity %s position %s", ErrInvariantViolation, e.ID, e.Position))
		}
	}
	if n := len(gs.TurnOrder); n > 0 && (gs.TurnIndex < 0 || gs.TurnIndex >= n) {
		errs = append(errs, fmt.Errorf("%w: turn index %d outside order of %d", ErrInvariantViolation, gs.TurnIndex, n))
	}
	return errors.Join(errs...)
}

// Lookup returns the entity with id or ErrEntityNotFound.
func Lookup(gs *models.GameState, id string) (*models.Entity, error) {
	if e := gs.Entity(id); e != nil {
		return e, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
}
