package permission

import (
	"fmt"
	"sort"
)

// Table is the static role id -> permission set table. It is immutable once
// built and safe for concurrent use.
type Table struct {
	registry *Registry
	sets     map[int64]Set
	tokens   []string
}

// NewTable builds a [Table] from role id -> token lists. The entry for
// [PrivilegedRole] resolves to [Unrestricted] when it lists [FullSystemAccess];
// every other entry resolves to [Standard], including a non-privileged role
// that lists [FullSystemAccess] (it holds that token and nothing more).
//
// Up to [MaxTokens] distinct tokens are packed into a bitmask; larger tables
// fall back to literal token sets with the same semantics.
func NewTable(entries map[int64][]string) (*Table, error) {
	ids := make([]int64, 0, len(entries))
	distinct := make(map[string]struct{})
	for id, tokens := range entries {
		ids = append(ids, id)
		for _, token := range tokens {
			if token == "" {
				return nil, fmt.Errorf("role %d: %w", id, ErrEmptyToken)
			}
			distinct[token] = struct{}{}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	reg := NewRegistry()
	standard := make(map[int64]Standard, len(entries))
	if len(distinct) <= MaxTokens {
		for _, id := range ids {
			var mask Mask64
			for _, token := range entries[id] {
				bit, err := reg.Register(token)
				if err != nil {
					return nil, fmt.Errorf("role %d token %q: %w", id, token, err)
				}
				mask.Set(bit)
			}
			standard[id] = Standard{registry: reg, mask: mask}
		}
	} else {
		for _, id := range ids {
			literal := make(map[string]struct{}, len(entries[id]))
			for _, token := range entries[id] {
				literal[token] = struct{}{}
			}
			standard[id] = Standard{literal: literal}
		}
	}
	reg.Freeze()

	t := &Table{
		registry: reg,
		sets:     make(map[int64]Set, len(entries)),
		tokens:   make([]string, 0, len(distinct)),
	}
	for token := range distinct {
		t.tokens = append(t.tokens, token)
	}
	sort.Strings(t.tokens)

	for _, id := range ids {
		std := standard[id]
		if id == PrivilegedRole && std.Has(FullSystemAccess) {
			t.sets[id] = Unrestricted{listed: std.Tokens()}
			continue
		}
		t.sets[id] = std
	}

	return t, nil
}

// DefaultTable returns the table built from [DefaultEntries].
func DefaultTable() *Table {
	t, err := NewTable(DefaultEntries())
	if err != nil {
		panic(err)
	}
	return t
}

// For returns the permission set of roleID. Unknown ids resolve to the empty
// standard set.
func (t *Table) For(roleID int64) Set {
	if t == nil {
		return Empty()
	}
	if s, ok := t.sets[roleID]; ok {
		return s
	}
	return Empty()
}

// Has reports whether roleID holds token.
func (t *Table) Has(roleID int64, token string) bool {
	return t.For(roleID).Has(token)
}

// RoleIDs returns every role id with an entry, ascending.
func (t *Table) RoleIDs() []int64 {
	if t == nil {
		return nil
	}
	out := make([]int64, 0, len(t.sets))
	for id := range t.sets {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Tokens returns every token known to the table, sorted.
func (t *Table) Tokens() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.tokens))
	copy(out, t.tokens)
	return out
}
