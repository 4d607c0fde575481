package rbac

import (
	"errors"
	"fmt"
	"sort"
)

// ErrDuplicateRole is returned when a catalog lists the same id twice.
var ErrDuplicateRole = errors.New("duplicate role id")

// Role is immutable reference data describing one authority level.
type Role struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

// Catalog is the immutable enumeration of valid roles.
type Catalog struct {
	roles  []Role
	byID   map[int64]int
	bySlug map[string]int
}

// NewCatalog builds a [Catalog]. Roles are kept in ascending id order.
func NewCatalog(roles []Role) (*Catalog, error) {
	c := &Catalog{
		roles:  make([]Role, len(roles)),
		byID:   make(map[int64]int, len(roles)),
		bySlug: make(map[string]int, len(roles)),
	}
	copy(c.roles, roles)
	sort.SliceStable(c.roles, func(i, j int) bool { return c.roles[i].ID < c.roles[j].ID })

	for i, r := range c.roles {
		if _, exists := c.byID[r.ID]; exists {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateRole, r.ID)
		}
		c.byID[r.ID] = i
		if r.Slug != "" {
			if _, exists := c.bySlug[r.Slug]; !exists {
				c.bySlug[r.Slug] = i
			}
		}
	}
	return c, nil
}

// ByID looks up a role by numeric id.
func (c *Catalog) ByID(id int64) (Role, bool) {
	if c == nil {
		return Role{}, false
	}
	i, ok := c.byID[id]
	if !ok {
		return Role{}, false
	}
	return c.roles[i], true
}

// BySlug looks up a role by slug.
func (c *Catalog) BySlug(slug string) (Role, bool) {
	if c == nil || slug == "" {
		return Role{}, false
	}
	i, ok := c.bySlug[slug]
	if !ok {
		return Role{}, false
	}
	return c.roles[i], true
}

// All returns a copy of every role in ascending id order.
func (c *Catalog) All() []Role {
	if c == nil {
		return nil
	}
	out := make([]Role, len(c.roles))
	copy(out, c.roles)
	return out
}

// Len returns the number of roles.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.roles)
}
