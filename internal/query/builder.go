// Package query provides the condition accumulator that trophy condition
// handlers append user filters to.
package query

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Clause is a single SQL predicate with its bind arguments.
type Clause struct {
	SQL  string
	Args []interface{}
}

// Builder accumulates predicates that are combined with AND.
// The zero value is ready to use.
type Builder struct {
	clauses []Clause
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add appends a predicate. Placeholders use "?" like gorm's Where.
func (b *Builder) Add(sql string, args ...interface{}) {
	b.clauses = append(b.clauses, Clause{SQL: sql, Args: args})
}

// Clauses returns a copy of the accumulated predicates in insertion order.
func (b *Builder) Clauses() []Clause {
	out := make([]Clause, len(b.clauses))
	copy(out, b.clauses)
	return out
}

// Len returns the number of accumulated predicates.
func (b *Builder) Len() int {
	return len(b.clauses)
}

// Apply chains every predicate onto db as a Where clause.
func (b *Builder) Apply(db *gorm.DB) *gorm.DB {
	for _, c := range b.clauses {
		db = db.Where(c.SQL, c.Args...)
	}
	return db
}

// String renders the predicates for logging. Arguments are shown inline
// and are not escaped, so the result is not valid SQL.
func (b *Builder) String() string {
	if len(b.clauses) == 0 {
		return ""
	}
	parts := make([]string, 0, len(b.clauses))
	for _, c := range b.clauses {
		part := "(" + c.SQL + ")"
		if len(c.Args) > 0 {
			part += fmt.Sprintf(" %v", c.Args)
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " AND ")
}
