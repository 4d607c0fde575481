package permission

import (
	"errors"
	"sort"
	"sync"
)

// MaxTokens is the number of distinct tokens a [Registry] can hold.
const MaxTokens = 64

var (
	// ErrRegistryFrozen is returned when registering into a frozen registry.
	ErrRegistryFrozen = errors.New("permission registry frozen")
	// ErrEmptyToken is returned for an empty token name.
	ErrEmptyToken = errors.New("permission token cannot be empty")
	// ErrTokenLimit is returned once [MaxTokens] tokens are registered.
	ErrTokenLimit = errors.New("permission token limit exceeded")
)

// Registry maps permission tokens to bit positions within a [Mask64].
type Registry struct {
	mu        sync.RWMutex
	nameToBit map[string]int
	bitToName map[int]string
	frozen    bool
}

// NewRegistry creates an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{
		nameToBit: make(map[string]int),
		bitToName: make(map[int]string),
	}
}

// Register assigns the next available bit to the named token and returns it.
// Registering a known token returns its existing bit. Must be called before
// [Registry.Freeze].
func (r *Registry) Register(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return -1, ErrEmptyToken
	}

	if bit, exists := r.nameToBit[name]; exists {
		return bit, nil
	}

	if r.frozen {
		return -1, ErrRegistryFrozen
	}

	nextBit := len(r.nameToBit)
	if nextBit >= MaxTokens {
		return -1, ErrTokenLimit
	}

	r.nameToBit[name] = nextBit
	r.bitToName[nextBit] = name

	return nextBit, nil
}

// Bit returns the bit index for the named token, or false if not registered.
func (r *Registry) Bit(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[name]
	return bit, ok
}

// Name returns the token for the given bit index, or false if unassigned.
func (r *Registry) Name(bit int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.bitToName[bit]
	return name, ok
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered tokens.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nameToBit)
}

// Names returns every registered token in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.nameToBit))
	for name := range r.nameToBit {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
