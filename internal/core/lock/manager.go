// Package lock serializes work on a game session. Every read-modify-write of
// session state runs while the session's lock is held.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/tabletop/internal/core/observability/log"
)

// Backend is the exclusive resource behind a session lock. Acquire blocks
// until owner holds sessionID or ctx is done.
type Backend interface {
	Acquire(ctx context.Context, sessionID, owner string) error
	Release(ctx context.Context, sessionID, owner string) error
}

// LeaseBackend is a Backend whose hold can lapse before it is released.
type LeaseBackend interface {
	Backend
	// Lost is closed when owner no longer holds sessionID. It is nil when
	// owner holds nothing.
	Lost(sessionID, owner string) <-chan struct{}
}

const releaseTimeout = 5 * time.Second

type heldKey struct {
	sessionID string
}

// Manager hands out session locks on top of a Backend.
type Manager struct {
	backend Backend
	cfg     Config
	logger  log.Log
}

func NewManager(backend Backend, cfg Config, logger log.Log) *Manager {
	if logger == nil {
		logger = log.Nop()
	}
	return &Manager{
		backend: backend,
		cfg:     cfg.withDefaults(),
		logger:  logger.With(log.Component("lock")),
	}
}

// Handle is a held session lock. A handle acquired again through a context
// derived from the one Acquire returned is re-entered: each Acquire must be
// paired with a Release and the backend is released by the last one.
type Handle struct {
	m         *Manager
	sessionID string
	owner     string
	acquired  time.Time
	// unwatch stops lease monitoring; nil for backends without leases.
	unwatch func()

	mx    sync.Mutex
	depth int
}

func (h *Handle) SessionID() string {
	return h.sessionID
}

func (h *Handle) Owner() string {
	return h.owner
}

// Depth reports how many unreleased Acquire calls share this handle.
func (h *Handle) Depth() int {
	h.mx.Lock()
	defer h.mx.Unlock()
	return h.depth
}

func (h *Handle) enter() bool {
	h.mx.Lock()
	defer h.mx.Unlock()
	if h.depth == 0 {
		return false
	}
	h.depth++
	return true
}

// Release undoes one Acquire. The backend resource is freed when the outermost
// acquisition releases.
func (h *Handle) Release() error {
	if h == nil {
		return nil
	}
	h.mx.Lock()
	if h.depth == 0 {
		h.mx.Unlock()
		return ErrReleased
	}
	h.depth--
	last := h.depth == 0
	h.mx.Unlock()
	if !last {
		return nil
	}
	if h.unwatch != nil {
		h.unwatch()
	}

	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := h.m.backend.Release(ctx, h.sessionID, h.owner); err != nil {
		h.m.logger.Error("release session lock",
			log.Session(h.sessionID), log.String("owner", h.owner), log.Error(err))
		return fmt.Errorf("release session %s: %w", h.sessionID, err)
	}
	h.m.logger.Debug("session lock released",
		log.Session(h.sessionID), log.Duration("held", time.Since(h.acquired)))
	return nil
}

// Held reports whether ctx already carries a live lock on sessionID.
func Held(ctx context.Context, sessionID string) bool {
	h, ok := ctx.Value(heldKey{sessionID: sessionID}).(*Handle)
	return ok && h.Depth() > 0
}

// Acquire obtains the session lock, waiting at most Config.Timeout. The
// returned context carries the handle so nested calls re-enter instead of
// deadlocking. Cancellation of ctx is reported as ctx.Err().
//
// On a LeaseBackend the returned context is cancelled with cause ErrLeaseLost
// if the lease lapses while held, and ends with the last Release.
func (m *Manager) Acquire(ctx context.Context, sessionID string) (context.Context, *Handle, error) {
	if h, ok := ctx.Value(heldKey{sessionID: sessionID}).(*Handle); ok && h.m == m && h.enter() {
		return ctx, h, nil
	}

	owner := uuid.NewString()
	waitCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	start := time.Now()
	if err := m.backend.Acquire(waitCtx, sessionID, owner); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctx, nil, ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			m.logger.Warn("session lock wait exceeded",
				log.Session(sessionID), log.Duration("timeout", m.cfg.Timeout))
			return ctx, nil, fmt.Errorf("%w: session %s after %s", ErrLockTimeout, sessionID, m.cfg.Timeout)
		}
		return ctx, nil, fmt.Errorf("acquire session %s: %w", sessionID, err)
	}

	h := &Handle{
		m:         m,
		sessionID: sessionID,
		owner:     owner,
		acquired:  time.Now(),
		depth:     1,
	}
	m.logger.Debug("session lock acquired",
		log.Session(sessionID), log.Duration("waited", h.acquired.Sub(start)))
	if lb, ok := m.backend.(LeaseBackend); ok {
		ctx = m.watch(ctx, h, lb.Lost(sessionID, owner))
	}
	return context.WithValue(ctx, heldKey{sessionID: sessionID}, h), h, nil
}

func (m *Manager) watch(ctx context.Context, h *Handle, lost <-chan struct{}) context.Context {
	if lost == nil {
		return ctx
	}
	ctx, cancel := context.WithCancelCause(ctx)
	done := make(chan struct{})
	go func() {
		select {
		case <-lost:
			m.logger.Warn("session lock lost while held", log.Session(h.sessionID), log.String("owner", h.owner))
			cancel(ErrLeaseLost)
		case <-done:
			cancel(ErrReleased)
		}
	}()
	h.unwatch = func() { close(done) }
	return ctx
}

// WithLock runs fn while holding the session lock and releases it on every
// exit path, panics included.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(ctx context.Context) error) (err error) {
	lockedCtx, h, err := m.Acquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := h.Release(); relErr != nil {
			err = errors.Join(err, relErr)
		}
	}()
	return fn(lockedCtx)
}
