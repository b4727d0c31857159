package lock

import (
	"context"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const defaultShardCount = 32

var _ Backend = (*MemoryBackend)(nil)

// MemoryBackend keeps one single-slot semaphore per session, spread over
// hash shards so unrelated sessions do not contend on one map mutex. It only
// serializes callers inside one process.
type MemoryBackend struct {
	shards []memShard
}

type memShard struct {
	mx    sync.Mutex
	slots map[string]*slot
}

// slot is dropped from its shard once nobody holds or waits for it.
type slot struct {
	ch    chan struct{}
	owner string
	refs  int
}

func NewMemoryBackend(shardCount int) *MemoryBackend {
	if shardCount <= 0 {
		shardCount = defaultShardCount
	}
	b := &MemoryBackend{shards: make([]memShard, shardCount)}
	for i := range b.shards {
		b.shards[i].slots = make(map[string]*slot)
	}
	return b
}

func (b *MemoryBackend) shard(sessionID string) *memShard {
	return &b.shards[xxhash.Sum64String(sessionID)%uint64(len(b.shards))]
}

func (b *MemoryBackend) slot(sessionID string) (*memShard, *slot) {
	sh := b.shard(sessionID)
	sh.mx.Lock()
	defer sh.mx.Unlock()
	s, ok := sh.slots[sessionID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		sh.slots[sessionID] = s
	}
	s.refs++
	return sh, s
}

// unref must be called with sh.mx held.
func (sh *memShard) unref(sessionID string, s *slot) {
	s.refs--
	if s.refs == 0 && sh.slots[sessionID] == s {
		delete(sh.slots, sessionID)
	}
}

func (b *MemoryBackend) Acquire(ctx context.Context, sessionID, owner string) error {
	sh, s := b.slot(sessionID)
	select {
	case s.ch <- struct{}{}:
		sh.mx.Lock()
		s.owner = owner
		sh.mx.Unlock()
		return nil
	case <-ctx.Done():
		sh.mx.Lock()
		sh.unref(sessionID, s)
		sh.mx.Unlock()
		return ctx.Err()
	}
}

func (b *MemoryBackend) Release(_ context.Context, sessionID, owner string) error {
	sh := b.shard(sessionID)
	sh.mx.Lock()
	s, ok := sh.slots[sessionID]
	if !ok || s.owner != owner {
		sh.mx.Unlock()
		return ErrNotHeld
	}
	s.owner = ""
	sh.unref(sessionID, s)
	sh.mx.Unlock()
	<-s.ch
	return nil
}

// Owner reports the current holder of sessionID, if any.
func (b *MemoryBackend) Owner(sessionID string) (string, bool) {
	sh := b.shard(sessionID)
	sh.mx.Lock()
	defer sh.mx.Unlock()
	s, ok := sh.slots[sessionID]
	if !ok || s.owner == "" {
		return "", false
	}
	return s.owner, true
}
