package dice

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"
)

// Roller produces one die result in [1, sides].
type Roller interface {
	Roll(sides int) int
}

// RandRoller is a seeded, goroutine-safe Roller.
type RandRoller struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRoller(seed int64) *RandRoller {
	return &RandRoller{rng: rand.New(rand.NewSource(seed))}
}

func (r *RandRoller) Roll(sides int) int {
	if sides <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(sides) + 1
}

// Intn exposes the underlying generator for non-dice choices.
func (r *RandRoller) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}

// NewSeed generates a seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// Scripted returns queued values in order regardless of die size. Once the
// queue is drained it falls back to a generator seeded with 1.
type Scripted struct {
	mu       sync.Mutex
	values   []int
	fallback *RandRoller
}

func NewScripted(values ...int) *Scripted {
	return &Scripted{values: values, fallback: NewRoller(1)}
}

// Push appends more values to the queue.
func (s *Scripted) Push(values ...int) {
	s.mu.Lock()
	s.values = append(s.values, values...)
	s.mu.Unlock()
}

// Remaining reports how many queued values are left.
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

func (s *Scripted) Roll(sides int) int {
	s.mu.Lock()
	if len(s.values) > 0 {
		v := s.values[0]
		s.values = s.values[1:]
		s.mu.Unlock()
		return v
	}
	s.mu.Unlock()
	return s.fallback.Roll(sides)
}
