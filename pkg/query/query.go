// Package query defines the backing-store abstraction the repository layer is
// built on: a tagged directive variant describing filter, sort, eager-load,
// paging and tracking intent, an untyped driver-side Source consuming
// directives, and a typed Query adapter over it. Drivers never see raw query
// text; in-process drivers evaluate the directive closures, external drivers
// may translate the member names carried by sort selectors.
package query

import (
	"context"

	"specstore/pkg/specification"
)

// DirectiveKind tags the variant of a Directive.
type DirectiveKind int

const (
	// DirectiveFilter restricts results to entities matching a predicate.
	DirectiveFilter DirectiveKind = iota
	// DirectiveSort orders results by a selector; directive order is sort
	// priority, later sorts break ties.
	DirectiveSort
	// DirectiveInclude requests eager-loading of a navigation path.
	DirectiveInclude
	// DirectiveSkip drops the first N results.
	DirectiveSkip
	// DirectiveTake caps the result count at N.
	DirectiveTake
	// DirectiveNoTracking makes returned entities detached snapshots.
	DirectiveNoTracking
)

// Directive is one refinement applied to a query source. Only the fields of
// the tagged variant are meaningful.
type Directive struct {
	Kind       DirectiveKind
	Predicate  func(any) bool         // DirectiveFilter
	Key        specification.Selector // DirectiveSort
	Descending bool                   // DirectiveSort
	Path       string                 // DirectiveInclude
	N          int                    // DirectiveSkip, DirectiveTake
}

// Source is a driver-side query over one entity set. Implementations must be
// value-semantic: With returns a refined source leaving the receiver usable.
// Entities are returned as *T behind the any; a tracked source returns
// identity-mapped pointers, an untracked one fresh detached clones.
type Source interface {
	With(d Directive) Source
	// Get performs an exact-match identity lookup. Absence is (nil, false, nil).
	Get(ctx context.Context, id any) (any, bool, error)
	List(ctx context.Context) ([]any, error)
	// Count reports the number of matching entities. Sort, skip and take
	// directives, if present, must not affect the count.
	Count(ctx context.Context) (int64, error)
	// Any reports whether at least one entity matches, under the same
	// directive rules as Count.
	Any(ctx context.Context) (bool, error)
}

// Query is the typed adapter over a Source for entities of type T.
type Query[T any] struct {
	src Source
}

// NewQuery wraps a driver source. The source must produce *T entities.
func NewQuery[T any](src Source) Query[T] {
	return Query[T]{src: src}
}

// Source returns the underlying driver source.
func (q Query[T]) Source() Source { return q.src }

// Where refines the query with a typed filter predicate.
func (q Query[T]) Where(pred func(T) bool) Query[T] {
	return Query[T]{src: q.src.With(Directive{Kind: DirectiveFilter, Predicate: func(v any) bool {
		if t, ok := v.(T); ok {
			return pred(t)
		}
		if p, ok := v.(*T); ok && p != nil {
			return pred(*p)
		}
		return false
	}})}
}

// Sort appends an order directive. The first sort is the primary key, each
// subsequent one a tie-break.
func (q Query[T]) Sort(key specification.Selector, descending bool) Query[T] {
	return Query[T]{src: q.src.With(Directive{Kind: DirectiveSort, Key: key, Descending: descending})}
}

// Include requests eager-loading of a dot-separated navigation path.
func (q Query[T]) Include(path string) Query[T] {
	return Query[T]{src: q.src.With(Directive{Kind: DirectiveInclude, Path: path})}
}

// Skip drops the first n results.
func (q Query[T]) Skip(n int) Query[T] {
	return Query[T]{src: q.src.With(Directive{Kind: DirectiveSkip, N: n})}
}

// Take caps the result count at n.
func (q Query[T]) Take(n int) Query[T] {
	return Query[T]{src: q.src.With(Directive{Kind: DirectiveTake, N: n})}
}

// AsNoTracking marks the query non-tracking; results become detached
// snapshots whose mutation has no persistence effect until re-attached.
func (q Query[T]) AsNoTracking() Query[T] {
	return Query[T]{src: q.src.With(Directive{Kind: DirectiveNoTracking})}
}

// Get performs an exact-match identity lookup. A missing entity is returned
// as nil with no error.
func (q Query[T]) Get(ctx context.Context, id any) (*T, error) {
	v, ok, err := q.src.Get(ctx, id)
	if err != nil || !ok {
		return nil, err
	}
	return v.(*T), nil
}

// List executes the query and returns all matching entities.
func (q Query[T]) List(ctx context.Context) ([]*T, error) {
	items, err := q.src.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(items))
	for _, it := range items {
		out = append(out, it.(*T))
	}
	return out, nil
}

// First returns the first matching entity, or nil when nothing matches.
func (q Query[T]) First(ctx context.Context) (*T, error) {
	items, err := q.src.List(ctx)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return items[0].(*T), nil
}

// Count reports the number of matching entities.
func (q Query[T]) Count(ctx context.Context) (int64, error) {
	return q.src.Count(ctx)
}

// Any reports whether at least one entity matches.
func (q Query[T]) Any(ctx context.Context) (bool, error) {
	return q.src.Any(ctx)
}

// Projected is a query terminated by a projection selector.
type Projected[T, R any] struct {
	q   Query[T]
	sel func(T) R
}

// Project narrows a typed query to the projected shape R.
func Project[T, R any](q Query[T], sel func(T) R) Projected[T, R] {
	return Projected[T, R]{q: q, sel: sel}
}

// List executes the query and applies the terminal projection.
func (p Projected[T, R]) List(ctx context.Context) ([]R, error) {
	items, err := p.q.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]R, 0, len(items))
	for _, it := range items {
		out = append(out, p.sel(*it))
	}
	return out, nil
}

// First returns the first projected result. The second return is false when
// nothing matches.
func (p Projected[T, R]) First(ctx context.Context) (R, bool, error) {
	var zero R
	items, err := p.q.List(ctx)
	if err != nil || len(items) == 0 {
		return zero, false, err
	}
	return p.sel(*items[0]), true, nil
}
