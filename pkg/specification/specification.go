// Package specification provides the declarative query model consumed by the
// repository layer: conjunctive criteria, prioritized ordering, eager-load
// include chains, paging bounds and the read-only marker. A specification is
// built once, typically inside a domain-specific constructor, and never
// mutated afterwards; it is safe to share across calls.
package specification

import (
	"errors"
	"fmt"
)

// ErrInvalidRange reports paging bounds rejected at construction time.
var ErrInvalidRange = errors.New("invalid paging range")

// IncludeKind distinguishes chain roots from chain continuations.
type IncludeKind int

const (
	// KindInclude starts a new include chain.
	KindInclude IncludeKind = iota
	// KindThenInclude extends the most recently started chain.
	KindThenInclude
)

// IncludeNode is one entry of the flat include list. ThenInclude nodes carry
// the selector of the immediately preceding node; chain roots carry none.
type IncludeNode struct {
	Selector Selector
	Prev     *Selector
	Kind     IncludeKind
}

// OrderClause pairs a sort key with its direction. The first clause is the
// primary sort; each subsequent clause breaks ties, in call order.
type OrderClause struct {
	Key        Selector
	Descending bool
}

// Specification accumulates query intent for entities of type T.
type Specification[T any] struct {
	criteria     []func(T) bool
	orders       []OrderClause
	includes     []IncludeNode
	includePaths []string
	skip         *int
	take         *int
	readOnly     bool
}

// New returns an empty specification.
func New[T any]() *Specification[T] {
	return &Specification[T]{}
}

// Where appends a filter predicate. All criteria combine conjunctively;
// their order does not affect the result.
func (s *Specification[T]) Where(pred func(T) bool) *Specification[T] {
	s.criteria = append(s.criteria, pred)
	return s
}

// OrderBy appends an ascending order clause.
func (s *Specification[T]) OrderBy(key Selector) *Specification[T] {
	s.orders = append(s.orders, OrderClause{Key: key})
	return s
}

// OrderByDescending appends a descending order clause.
func (s *Specification[T]) OrderByDescending(key Selector) *Specification[T] {
	s.orders = append(s.orders, OrderClause{Key: key, Descending: true})
	return s
}

// Include starts a new eager-load chain rooted at the selected navigation and
// returns a handle for extending it with ThenInclude.
func (s *Specification[T]) Include(sel Selector) *Chain[T] {
	s.includes = append(s.includes, IncludeNode{Selector: sel, Kind: KindInclude})
	return &Chain[T]{spec: s, last: sel}
}

// IncludePath appends a dot-separated navigation path, bypassing typed
// selectors. The path is handed to the backend verbatim.
func (s *Specification[T]) IncludePath(path string) *Specification[T] {
	s.includePaths = append(s.includePaths, path)
	return s
}

// ApplyPaging sets both paging bounds. Bounds are validated here, not at
// evaluation: skip must be non-negative and take positive.
func (s *Specification[T]) ApplyPaging(skip, take int) error {
	if skip < 0 {
		return fmt.Errorf("skip %d: %w", skip, ErrInvalidRange)
	}
	if take <= 0 {
		return fmt.Errorf("take %d: %w", take, ErrInvalidRange)
	}
	s.skip = &skip
	s.take = &take
	return nil
}

// AsReadOnly marks the specification for non-tracked evaluation. Entities
// returned from a read-only query are detached snapshots.
func (s *Specification[T]) AsReadOnly() *Specification[T] {
	s.readOnly = true
	return s
}

// Criteria returns the accumulated filter predicates.
func (s *Specification[T]) Criteria() []func(T) bool { return s.criteria }

// Orders returns the order clauses in priority order.
func (s *Specification[T]) Orders() []OrderClause { return s.orders }

// Includes returns the flat include node list in insertion order.
func (s *Specification[T]) Includes() []IncludeNode { return s.includes }

// IncludePaths returns the verbatim string include paths.
func (s *Specification[T]) IncludePaths() []string { return s.includePaths }

// Skip reports the skip bound, if set.
func (s *Specification[T]) Skip() (int, bool) {
	if s.skip == nil {
		return 0, false
	}
	return *s.skip, true
}

// Take reports the take bound, if set.
func (s *Specification[T]) Take() (int, bool) {
	if s.take == nil {
		return 0, false
	}
	return *s.take, true
}

// IsReadOnly reports whether evaluation should be non-tracked.
func (s *Specification[T]) IsReadOnly() bool { return s.readOnly }

// Chain extends the most recently started include chain. Each ThenInclude
// records the previous node's selector so the evaluator can rebuild the
// hierarchical path from the flat list.
type Chain[T any] struct {
	spec *Specification[T]
	last Selector
}

// ThenInclude appends a nested eager-load one level below the previous node
// and returns a handle for chaining deeper.
func (c *Chain[T]) ThenInclude(sel Selector) *Chain[T] {
	prev := c.last
	c.spec.includes = append(c.spec.includes, IncludeNode{Selector: sel, Prev: &prev, Kind: KindThenInclude})
	return &Chain[T]{spec: c.spec, last: sel}
}

// ThenIncludeCollection is ThenInclude for collection navigations. The
// distinction matters only to callers chaining off collection members; the
// recorded node is identical.
func (c *Chain[T]) ThenIncludeCollection(sel Selector) *Chain[T] {
	return c.ThenInclude(sel)
}
