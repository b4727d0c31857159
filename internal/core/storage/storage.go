// Package storage declares the persistence contracts the engine depends on.
// Implementations are transactional within a single call; nothing here
// spans calls.
package storage

import (
	"context"
	"errors"

	"github.com/zeusync/tabletop/internal/core/models"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrNotConfigured  = errors.New("storage is not configured")
	ErrInvalidRequest = errors.New("invalid storage request")
)

// EntityRepository stores one record per entity, keyed by kind and id.
type EntityRepository interface {
	// FetchByIDs returns the records that exist, in no particular order.
	// Unknown ids are skipped, not reported.
	FetchByIDs(ctx context.Context, kind models.Kind, ids []string) ([]*models.Entity, error)
	// Upsert writes all records in one batch, inserting or updating each.
	Upsert(ctx context.Context, kind models.Kind, entities []*models.Entity) error
}

// SessionRepository stores the append-only skeleton history of sessions.
type SessionRepository interface {
	AppendSnapshot(ctx context.Context, sessionID string, snap models.Snapshot) error
	// FetchLatestSnapshot returns ErrNotFound for unknown sessions.
	FetchLatestSnapshot(ctx context.Context, sessionID string) (models.Snapshot, error)
}

// LocationRepository stores authored locations that doors lead to.
type LocationRepository interface {
	FetchLocation(ctx context.Context, id string) (models.Location, error)
	SaveLocation(ctx context.Context, loc models.Location) error
}

// Store bundles the three repositories.
type Store interface {
	EntityRepository
	SessionRepository
	LocationRepository
}
