// Package sqlite provides a SQLite-backed storage.Store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zeusync/tabletop/internal/core/models"
	"github.com/zeusync/tabletop/internal/core/storage"
	"github.com/zeusync/tabletop/internal/core/storage/sqlite/migrations"
)

var _ storage.Store = (*Store)(nil)

// rows per INSERT statement; keeps bound parameters far below SQLite limits
const upsertChunk = 200

// Store persists entities, session skeletons and locations in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// DB exposes the handle for components sharing the file, such as the lease
// lock backend.
func (s *Store) DB() *sql.DB {
	return s.sqlDB
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ErrNotConfigured
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func (s *Store) FetchByIDs(ctx context.Context, kind models.Kind, ids []string) ([]*models.Entity, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, string(kind))
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, body FROM entities WHERE kind = ? AND id IN (`+placeholders(len(ids))+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch %s entities: %w", kind, err)
	}
	defer rows.Close()

	out := make([]*models.Entity, 0, len(ids))
	for rows.Next() {
		var (
			id   string
			body string
		)
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		var e models.Entity
		if err := json.Unmarshal([]byte(body), &e); err != nil {
			return nil, fmt.Errorf("decode entity %s: %w", id, err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}
	return out, nil
}

// Upsert writes the batch with multi-row INSERT ... ON CONFLICT statements
// inside one transaction.
func (s *Store) Upsert(ctx context.Context, kind models.Kind, entities []*models.Entity) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if len(entities) == 0 {
		return nil
	}

	now := toMillis(time.Now())
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for start := 0; start < len(entities); start += upsertChunk {
		end := min(start+upsertChunk, len(entities))
		batch := entities[start:end]

		values := make([]string, 0, len(batch))
		args := make([]any, 0, len(batch)*4)
		for _, e := range batch {
			if strings.TrimSpace(e.ID) == "" {
				return fmt.Errorf("%w: entity id is required", storage.ErrInvalidRequest)
			}
			body, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("encode entity %s: %w", e.ID, err)
			}
			values = append(values, "(?, ?, ?, ?)")
			args = append(args, string(kind), e.ID, string(body), now)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entities (kind, id, body, updated_at) VALUES `+strings.Join(values, ", ")+`
			 ON CONFLICT(kind, id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
			args...,
		); err != nil {
			return fmt.Errorf("upsert %s entities: %w", kind, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

func (s *Store) AppendSnapshot(ctx context.Context, sessionID string, snap models.Snapshot) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("%w: session id is required", storage.ErrInvalidRequest)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var version int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM session_snapshots WHERE session_id = ?`, sessionID,
	).Scan(&version); err != nil {
		return fmt.Errorf("next snapshot version: %w", err)
	}

	snap.Version = version
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO session_snapshots (session_id, version, body, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, version, string(body), toMillis(snap.CreatedAt),
	); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

func (s *Store) FetchLatestSnapshot(ctx context.Context, sessionID string) (models.Snapshot, error) {
	if err := s.ready(ctx); err != nil {
		return models.Snapshot{}, err
	}
	var (
		body      string
		createdAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT body, created_at FROM session_snapshots WHERE session_id = ? ORDER BY version DESC LIMIT 1`,
		sessionID,
	).Scan(&body, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Snapshot{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("fetch latest snapshot: %w", err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal([]byte(body), &snap); err != nil {
		return models.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	snap.CreatedAt = fromMillis(createdAt)
	return snap, nil
}

// SnapshotCount returns the length of a session's history.
func (s *Store) SnapshotCount(ctx context.Context, sessionID string) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	var n int
	if err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM session_snapshots WHERE session_id = ?`, sessionID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}

func (s *Store) FetchLocation(ctx context.Context, id string) (models.Location, error) {
	if err := s.ready(ctx); err != nil {
		return models.Location{}, err
	}
	var body string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT body FROM locations WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Location{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Location{}, fmt.Errorf("fetch location %s: %w", id, err)
	}
	var loc models.Location
	if err := json.Unmarshal([]byte(body), &loc); err != nil {
		return models.Location{}, fmt.Errorf("decode location %s: %w", id, err)
	}
	loc.Normalize()
	return loc, nil
}

func (s *Store) SaveLocation(ctx context.Context, loc models.Location) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(loc.ID) == "" {
		return fmt.Errorf("%w: location id is required", storage.ErrInvalidRequest)
	}
	body, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("encode location: %w", err)
	}
	if _, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO locations (id, body, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		loc.ID, string(body), toMillis(time.Now()),
	); err != nil {
		return fmt.Errorf("save location %s: %w", loc.ID, err)
	}
	return nil
}
