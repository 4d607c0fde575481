package credential

import (
	"context"
	"sync"
)

// DefaultKey is the slot key used when a backend is built without one.
const DefaultKey = "goportal:credentials"

// Store is a single durable slot for one credential [Pair].
//
// Read never fails: a missing, unreadable or malformed slot reports false.
// Write replaces the slot in one step and rejects partial pairs. Clear is
// idempotent.
type Store interface {
	Read(ctx context.Context) (Pair, bool)
	Write(ctx context.Context, p Pair) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the pair in process memory. It is the default store and
// the natural fake for tests.
type MemoryStore struct {
	mu   sync.RWMutex
	pair Pair
	set  bool
}

// NewMemoryStore returns an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Read returns the stored pair.
func (s *MemoryStore) Read(context.Context) (Pair, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.set {
		return Pair{}, false
	}
	return s.pair, true
}

// Write replaces the stored pair.
func (s *MemoryStore) Write(_ context.Context, p Pair) error {
	if !p.Valid() {
		return ErrPartialPair
	}
	s.mu.Lock()
	s.pair = p
	s.set = true
	s.mu.Unlock()
	return nil
}

// Clear empties the slot.
func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	s.pair = Pair{}
	s.set = false
	s.mu.Unlock()
	return nil
}
