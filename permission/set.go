package permission

import "sort"

// Kind distinguishes the two [Set] variants.
type Kind int

const (
	// KindStandard holds exactly the listed tokens.
	KindStandard Kind = iota
	// KindUnrestricted holds every token.
	KindUnrestricted
)

// String returns the lowercase variant name.
func (k Kind) String() string {
	switch k {
	case KindUnrestricted:
		return "unrestricted"
	default:
		return "standard"
	}
}

// Set is a derived, immutable permission set. Implementations are [Standard]
// and [Unrestricted]; no other implementations exist.
type Set interface {
	// Has reports whether token is held.
	Has(token string) bool
	// Tokens returns the literally listed tokens, sorted.
	Tokens() []string
	// Kind reports the variant.
	Kind() Kind

	sealed()
}

// Standard is a literal token membership set, backed by a registry bitmask
// or, for tables with more than [MaxTokens] tokens, by a token map.
type Standard struct {
	registry *Registry
	mask     Mask64
	literal  map[string]struct{}
}

// Has reports whether token is one of the listed tokens. Unknown tokens are
// never held.
func (s Standard) Has(token string) bool {
	if s.literal != nil {
		_, ok := s.literal[token]
		return ok
	}
	if s.registry == nil {
		return false
	}
	bit, ok := s.registry.Bit(token)
	if !ok {
		return false
	}
	return s.mask.Has(bit)
}

// Tokens returns the listed tokens in sorted order.
func (s Standard) Tokens() []string {
	if s.literal != nil {
		out := make([]string, 0, len(s.literal))
		for token := range s.literal {
			out = append(out, token)
		}
		sort.Strings(out)
		return out
	}
	if s.registry == nil {
		return nil
	}
	out := make([]string, 0, len(s.mask.Bits()))
	for _, bit := range s.mask.Bits() {
		if name, ok := s.registry.Name(bit); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (Standard) Kind() Kind { return KindStandard }

// Mask exposes the raw membership mask. It is zero for literal sets.
func (s Standard) Mask() Mask64 { return s.mask }

func (Standard) sealed() {}

// Unrestricted holds every token, listed or not.
type Unrestricted struct {
	listed []string
}

func (Unrestricted) Has(string) bool { return true }

// Tokens returns the tokens the role entry listed; membership is not limited
// to them.
func (u Unrestricted) Tokens() []string {
	out := make([]string, len(u.listed))
	copy(out, u.listed)
	return out
}

func (Unrestricted) Kind() Kind { return KindUnrestricted }

func (Unrestricted) sealed() {}

// Empty returns the empty standard set.
func Empty() Set {
	return Standard{}
}
