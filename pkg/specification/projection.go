package specification

// Projection is a specification that additionally narrows results to a
// projected shape. The selector may be absent at construction; projected
// evaluation rejects a missing selector, since the embedded specification
// remains independently usable for non-projected queries.
type Projection[T, R any] struct {
	Specification[T]
	selector func(T) R
}

// NewProjection returns an empty projection specification.
func NewProjection[T, R any]() *Projection[T, R] {
	return &Projection[T, R]{}
}

// Select sets the terminal projection selector.
func (p *Projection[T, R]) Select(sel func(T) R) *Projection[T, R] {
	p.selector = sel
	return p
}

// Selector returns the projection selector, if one was set.
func (p *Projection[T, R]) Selector() (func(T) R, bool) {
	if p.selector == nil {
		return nil, false
	}
	return p.selector, true
}
