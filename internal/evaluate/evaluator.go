// Package evaluate maps a query source plus a specification into a refined
// query source. Evaluation is pure: the same source and specification always
// yield the same refinement, and no state is kept between calls.
package evaluate

import (
	"errors"
	"fmt"

	"specstore/pkg/query"
	"specstore/pkg/specification"
)

// ErrMissingSelector reports projected evaluation of a specification whose
// projection selector was never set.
var ErrMissingSelector = errors.New("projection selector not set")

// Apply refines src with the specification's directives in fixed order:
// tracking marker, criteria, string include paths, reconstructed include
// expression paths, then ordering and paging. Ordering, skip and take are
// applied only when pagingAndOrdering is true; count and existence callers
// must pass false, which is the calling repository's responsibility, not
// something inferred here.
func Apply[T any](src query.Query[T], s *specification.Specification[T], pagingAndOrdering bool) query.Query[T] {
	if s == nil {
		return src
	}
	if s.IsReadOnly() {
		src = src.AsNoTracking()
	}
	for _, pred := range s.Criteria() {
		src = src.Where(pred)
	}
	for _, path := range s.IncludePaths() {
		src = src.Include(path)
	}
	for _, path := range IncludePaths(s.Includes()) {
		src = src.Include(path)
	}
	if pagingAndOrdering {
		for _, o := range s.Orders() {
			src = src.Sort(o.Key, o.Descending)
		}
		if n, ok := s.Skip(); ok {
			src = src.Skip(n)
		}
		if n, ok := s.Take(); ok {
			src = src.Take(n)
		}
	}
	return src
}

// ApplyProjected refines src as Apply does, with paging and ordering, then
// terminates the query with the projection selector. A missing selector is
// an error naming the specification.
func ApplyProjected[T, R any](src query.Query[T], p *specification.Projection[T, R]) (query.Projected[T, R], error) {
	sel, ok := p.Selector()
	if !ok {
		return query.Projected[T, R]{}, fmt.Errorf("%T: %w", p, ErrMissingSelector)
	}
	return query.Project(Apply(src, &p.Specification, true), sel), nil
}
