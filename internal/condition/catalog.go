// Package condition provides the registry and grouped catalog of trophy
// condition types, and the handlers that turn stored conditions into user
// filters.
package condition

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aimd54/forum-trophies/internal/models"
	"github.com/aimd54/forum-trophies/internal/query"
)

// DefinitionName is the registry key under which trophy condition types live.
const DefinitionName = "forum.condition.trophy"

var (
	// ErrUnknownConditionType is returned when a stored condition references
	// a type that has no registered handler.
	ErrUnknownConditionType = errors.New("unknown condition type")

	// ErrInvalidData is returned by handlers when a condition's data cannot
	// be turned into a predicate.
	ErrInvalidData = errors.New("invalid condition data")
)

// Handler contributes one user predicate for a stored condition.
type Handler interface {
	AddUserCondition(cond *models.TrophyCondition, b *query.Builder) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(cond *models.TrophyCondition, b *query.Builder) error

// AddUserCondition calls f.
func (f HandlerFunc) AddUserCondition(cond *models.TrophyCondition, b *query.Builder) error {
	return f(cond, b)
}

// ConditionType is a pluggable kind of trophy condition.
type ConditionType struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Group   string  `json:"group,omitempty"` // empty: not offered for grouping
	Handler Handler `json:"-"`
}

// Registry holds condition types per definition name.
type Registry struct {
	mu          sync.RWMutex
	definitions map[string][]ConditionType
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{definitions: make(map[string][]ConditionType)}
}

// Register adds a condition type under a definition. IDs must be unique
// within a definition and every type needs a handler.
func (r *Registry) Register(definition string, ct ConditionType) error {
	if ct.ID == "" {
		return fmt.Errorf("condition type for %q has no id", definition)
	}
	if ct.Handler == nil {
		return fmt.Errorf("condition type %q has no handler", ct.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.definitions[definition] {
		if existing.ID == ct.ID {
			return fmt.Errorf("condition type %q already registered for %q", ct.ID, definition)
		}
	}
	r.definitions[definition] = append(r.definitions[definition], ct)
	return nil
}

// ConditionTypes returns the types registered for a definition in
// registration order.
func (r *Registry) ConditionTypes(definition string) []ConditionType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := r.definitions[definition]
	out := make([]ConditionType, len(types))
	copy(out, types)
	return out
}

// Catalog is the read-only view of trophy condition types, built once from
// a registry snapshot.
type Catalog struct {
	grouped  map[string]map[string]ConditionType
	handlers map[string]Handler
}

// NewCatalog builds the grouped catalog. Types without a group are left
// out of the grouping but their handlers stay resolvable.
func NewCatalog(types []ConditionType) *Catalog {
	c := &Catalog{
		grouped:  make(map[string]map[string]ConditionType),
		handlers: make(map[string]Handler, len(types)),
	}

	for _, ct := range types {
		c.handlers[ct.ID] = ct.Handler

		if ct.Group == "" {
			continue
		}
		if c.grouped[ct.Group] == nil {
			c.grouped[ct.Group] = make(map[string]ConditionType)
		}
		c.grouped[ct.Group][ct.ID] = ct
	}

	return c
}

// NewTrophyCatalog builds the catalog from the trophy condition definition
// of a registry.
func NewTrophyCatalog(reg *Registry) *Catalog {
	return NewCatalog(reg.ConditionTypes(DefinitionName))
}

// GroupedTypes returns group label -> type ID -> type. The maps are copies.
func (c *Catalog) GroupedTypes() map[string]map[string]ConditionType {
	out := make(map[string]map[string]ConditionType, len(c.grouped))
	for group, types := range c.grouped {
		inner := make(map[string]ConditionType, len(types))
		for id, ct := range types {
			inner[id] = ct
		}
		out[group] = inner
	}
	return out
}

// Groups returns the group labels in sorted order.
func (c *Catalog) Groups() []string {
	groups := make([]string, 0, len(c.grouped))
	for group := range c.grouped {
		groups = append(groups, group)
	}
	sort.Strings(groups)
	return groups
}

// Handler resolves the handler for a condition type ID.
func (c *Catalog) Handler(typeID string) (Handler, error) {
	h, ok := c.handlers[typeID]
	if !ok || h == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownConditionType, typeID)
	}
	return h, nil
}

// Has reports whether a condition type ID is resolvable.
func (c *Catalog) Has(typeID string) bool {
	_, err := c.Handler(typeID)
	return err == nil
}
