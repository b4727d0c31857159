// Package memory is an in-process storage.Store. Records are stored as JSON
// so callers never share pointers with the store, the same way a real
// database would behave.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeusync/tabletop/internal/core/models"
	"github.com/zeusync/tabletop/internal/core/storage"
)

var _ storage.Store = (*Store)(nil)

type entityKey struct {
	kind models.Kind
	id   string
}

type Store struct {
	mu        sync.RWMutex
	entities  map[entityKey][]byte
	snapshots map[string][][]byte
	locations map[string][]byte

	upserts atomic.Int64
	appends atomic.Int64
}

func New() *Store {
	return &Store{
		entities:  make(map[entityKey][]byte),
		snapshots: make(map[string][][]byte),
		locations: make(map[string][]byte),
	}
}

func (s *Store) FetchByIDs(ctx context.Context, kind models.Kind, ids []string) ([]*models.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Entity, 0, len(ids))
	for _, id := range ids {
		raw, ok := s.entities[entityKey{kind: kind, id: id}]
		if !ok {
			continue
		}
		var e models.Entity
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("decode entity %s: %w", id, err)
		}
		out = append(out, &e)
	}
	return out, nil
}

func (s *Store) Upsert(ctx context.Context, kind models.Kind, entities []*models.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	encoded := make(map[entityKey][]byte, len(entities))
	for _, e := range entities {
		if strings.TrimSpace(e.ID) == "" {
			return fmt.Errorf("%w: entity id is required", storage.ErrInvalidRequest)
		}
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode entity %s: %w", e.ID, err)
		}
		encoded[entityKey{kind: kind, id: e.ID}] = raw
	}

	s.mu.Lock()
	for k, v := range encoded {
		s.entities[k] = v
	}
	s.mu.Unlock()
	s.upserts.Add(1)
	return nil
}

func (s *Store) AppendSnapshot(ctx context.Context, sessionID string, snap models.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("%w: session id is required", storage.ErrInvalidRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	snap.Version = len(s.snapshots[sessionID]) + 1
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	s.snapshots[sessionID] = append(s.snapshots[sessionID], raw)
	s.appends.Add(1)
	return nil
}

func (s *Store) FetchLatestSnapshot(ctx context.Context, sessionID string) (models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return models.Snapshot{}, err
	}
	s.mu.RLock()
	history := s.snapshots[sessionID]
	s.mu.RUnlock()
	if len(history) == 0 {
		return models.Snapshot{}, storage.ErrNotFound
	}
	var snap models.Snapshot
	if err := json.Unmarshal(history[len(history)-1], &snap); err != nil {
		return models.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// History returns how many snapshots a session has accumulated.
func (s *Store) History(sessionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots[sessionID])
}

// Writes reports the number of Upsert and AppendSnapshot calls served.
func (s *Store) Writes() (upserts, appends int64) {
	return s.upserts.Load(), s.appends.Load()
}

func (s *Store) FetchLocation(ctx context.Context, id string) (models.Location, error) {
	if err := ctx.Err(); err != nil {
		return models.Location{}, err
	}
	s.mu.RLock()
	raw, ok := s.locations[id]
	s.mu.RUnlock()
	if !ok {
		return models.Location{}, storage.ErrNotFound
	}
	var loc models.Location
	if err := json.Unmarshal(raw, &loc); err != nil {
		return models.Location{}, fmt.Errorf("decode location %s: %w", id, err)
	}
	loc.Normalize()
	return loc, nil
}

func (s *Store) SaveLocation(ctx context.Context, loc models.Location) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(loc.ID) == "" {
		return fmt.Errorf("%w: location id is required", storage.ErrInvalidRequest)
	}
	raw, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("encode location: %w", err)
	}
	s.mu.Lock()
	s.locations[loc.ID] = raw
	s.mu.Unlock()
	return nil
}
