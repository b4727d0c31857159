package lock

import (
	"context"
	"sync"
	"time"

	"github.com/zeusync/tabletop/internal/core/observability/log"
	"github.com/zeusync/tabletop/internal/core/storage/sqlite"
)

// Leaser claims expiring per-session lease rows.
type Leaser interface {
	TryLease(ctx context.Context, sessionID, owner string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, sessionID, owner string) error
}

var (
	_ Leaser       = (*sqlite.Store)(nil)
	_ LeaseBackend = (*SQLiteBackend)(nil)
)

// SQLiteBackend serializes sessions across processes sharing one database
// file. A held lease is renewed in the background until released.
type SQLiteBackend struct {
	leaser Leaser
	ttl    time.Duration
	poll   time.Duration
	logger log.Log

	mx       sync.Mutex
	renewals map[string]*renewal
}

type renewal struct {
	stop context.CancelFunc
	lost chan struct{}
}

func NewSQLiteBackend(leaser Leaser, cfg Config, logger log.Log) *SQLiteBackend {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = log.Nop()
	}
	return &SQLiteBackend{
		leaser:   leaser,
		ttl:      cfg.LeaseTTL,
		poll:     cfg.PollInterval,
		logger:   logger.With(log.Component("lock.sqlite")),
		renewals: make(map[string]*renewal),
	}
}

func renewalKey(sessionID, owner string) string {
	return sessionID + "/" + owner
}

func (b *SQLiteBackend) Acquire(ctx context.Context, sessionID, owner string) error {
	ticker := time.NewTicker(b.poll)
	defer ticker.Stop()
	for {
		ok, err := b.leaser.TryLease(ctx, sessionID, owner, b.ttl)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
		if ok {
			b.startRenewal(sessionID, owner)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (b *SQLiteBackend) Release(ctx context.Context, sessionID, owner string) error {
	b.mx.Lock()
	key := renewalKey(sessionID, owner)
	r, ok := b.renewals[key]
	delete(b.renewals, key)
	b.mx.Unlock()
	if !ok {
		return ErrNotHeld
	}
	r.stop()
	return b.leaser.ReleaseLease(ctx, sessionID, owner)
}

// Lost is closed once owner's lease on sessionID can no longer be trusted:
// another owner took the row, or renewals kept failing for a whole TTL.
func (b *SQLiteBackend) Lost(sessionID, owner string) <-chan struct{} {
	b.mx.Lock()
	defer b.mx.Unlock()
	if r, ok := b.renewals[renewalKey(sessionID, owner)]; ok {
		return r.lost
	}
	return nil
}

func (b *SQLiteBackend) startRenewal(sessionID, owner string) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &renewal{stop: cancel, lost: make(chan struct{})}
	b.mx.Lock()
	b.renewals[renewalKey(sessionID, owner)] = r
	b.mx.Unlock()

	go func() {
		ticker := time.NewTicker(b.ttl / 2)
		defer ticker.Stop()
		renewed := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			ok, err := b.leaser.TryLease(ctx, sessionID, owner, b.ttl)
			if ctx.Err() != nil {
				return
			}
			switch {
			case err == nil && ok:
				renewed = time.Now()
				continue
			case err != nil && time.Since(renewed) < b.ttl:
				b.logger.Warn("lease renewal failed", log.Session(sessionID), log.Error(err))
				continue
			}
			b.logger.Error("lease lost",
				log.Session(sessionID), log.String("owner", owner), log.Any("error", err))
			close(r.lost)
			return
		}
	}()
}
