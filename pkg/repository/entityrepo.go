package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"specstore/internal/evaluate"
	"specstore/pkg/query"
	"specstore/pkg/specification"
)

// EntityRepository is the store-backed implementation of Repository. The
// tracked flag distinguishes the two surfaces: read-only repositories
// evaluate every read non-tracked, read-write ones tracked, so callers of
// the write surface can mutate and persist what they load.
type EntityRepository[T Entity[ID], ID comparable] struct {
	sess    query.Session
	set     string
	tracked bool
	metrics MetricsRecorder
}

func newEntityRepository[T Entity[ID], ID comparable](sess query.Session, set string, tracked bool, metrics MetricsRecorder) *EntityRepository[T, ID] {
	return &EntityRepository[T, ID]{sess: sess, set: set, tracked: tracked, metrics: metrics}
}

func (r *EntityRepository[T, ID]) source(tracked bool) query.Query[T] {
	return query.NewQuery[T](r.sess.Source(r.set, tracked, func() any { return new(T) }))
}

func (r *EntityRepository[T, ID]) observe(ctx context.Context, op string, start time.Time, err error) {
	if r.metrics != nil {
		r.metrics.Observe(ctx, op, err == nil, time.Since(start))
	}
}

// GetByID performs an exact-match identity lookup. On the read-only surface
// the result is detached; on the read-write surface it is tracked.
func (r *EntityRepository[T, ID]) GetByID(ctx context.Context, id ID) (entity *T, err error) {
	start := time.Now()
	defer func() { r.observe(ctx, "get_by_id", start, err) }()
	entity, err = r.source(r.tracked).Get(ctx, id)
	return entity, err
}

// List returns all entities matching the specification, ordered and paged.
func (r *EntityRepository[T, ID]) List(ctx context.Context, spec *specification.Specification[T]) (entities []*T, err error) {
	start := time.Now()
	defer func() { r.observe(ctx, "list", start, err) }()
	entities, err = evaluate.Apply(r.source(r.tracked), spec, true).List(ctx)
	return entities, err
}

// ListAll returns every entity of the set.
func (r *EntityRepository[T, ID]) ListAll(ctx context.Context) (entities []*T, err error) {
	start := time.Now()
	defer func() { r.observe(ctx, "list_all", start, err) }()
	entities, err = r.source(r.tracked).List(ctx)
	return entities, err
}

// FirstOrDefault returns the first match, or nil when nothing matches.
func (r *EntityRepository[T, ID]) FirstOrDefault(ctx context.Context, spec *specification.Specification[T]) (entity *T, err error) {
	start := time.Now()
	defer func() { r.observe(ctx, "first_or_default", start, err) }()
	entity, err = evaluate.Apply(r.source(r.tracked), spec, true).First(ctx)
	return entity, err
}

// Count reports the number of matches. Paging and ordering are never sent
// to the source for aggregates.
func (r *EntityRepository[T, ID]) Count(ctx context.Context, spec *specification.Specification[T]) (n int64, err error) {
	start := time.Now()
	defer func() { r.observe(ctx, "count", start, err) }()
	n, err = evaluate.Apply(r.source(false), spec, false).Count(ctx)
	return n, err
}

// Any reports whether at least one entity matches, under the same rules as
// Count.
func (r *EntityRepository[T, ID]) Any(ctx context.Context, spec *specification.Specification[T]) (ok bool, err error) {
	start := time.Now()
	defer func() { r.observe(ctx, "any", start, err) }()
	ok, err = evaluate.Apply(r.source(false), spec, false).Any(ctx)
	return ok, err
}

// Add stages an insert. A zero string key is populated with a generated UUID
// when the entity implements KeyAssigner, so identifiers are observable on
// the returned tracked entity before the save.
func (r *EntityRepository[T, ID]) Add(ctx context.Context, entity *T) (added *T, err error) {
	start := time.Now()
	defer func() { r.observe(ctx, "add", start, err) }()
	if entity == nil {
		return nil, ErrNilEntity
	}
	if err = ctx.Err(); err != nil {
		return nil, err
	}
	var zero ID
	if (*entity).Key() == zero {
		if ka, ok := any(entity).(KeyAssigner); ok {
			ka.AssignKey(uuid.NewString())
		}
	}
	r.sess.StageAdd(r.set, (*entity).Key(), entity)
	return entity, nil
}

// AddRange stages inserts for every entity.
func (r *EntityRepository[T, ID]) AddRange(ctx context.Context, entities []*T) error {
	for _, e := range entities {
		if _, err := r.Add(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// Update marks the entity modified. Nothing is written until SaveChanges.
func (r *EntityRepository[T, ID]) Update(ctx context.Context, entity *T) (err error) {
	start := time.Now()
	defer func() { r.observe(ctx, "update", start, err) }()
	if entity == nil {
		return ErrNilEntity
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	r.sess.StageUpdate(r.set, (*entity).Key(), entity)
	return nil
}

// UpdateRange marks every entity modified.
func (r *EntityRepository[T, ID]) UpdateRange(ctx context.Context, entities []*T) error {
	for _, e := range entities {
		if err := r.Update(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// Remove stages a delete.
func (r *EntityRepository[T, ID]) Remove(ctx context.Context, entity *T) (err error) {
	start := time.Now()
	defer func() { r.observe(ctx, "remove", start, err) }()
	if entity == nil {
		return ErrNilEntity
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	r.sess.StageRemove(r.set, (*entity).Key())
	return nil
}

// RemoveRange stages deletes for every entity.
func (r *EntityRepository[T, ID]) RemoveRange(ctx context.Context, entities []*T) error {
	for _, e := range entities {
		if err := r.Remove(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// ListProjected evaluates a projection specification against the repository's
// entity set and returns the projected shape. It is a package function
// because Go methods cannot introduce the result type parameter.
func ListProjected[T Entity[ID], ID comparable, R any](ctx context.Context, r *EntityRepository[T, ID], p *specification.Projection[T, R]) ([]R, error) {
	pq, err := evaluate.ApplyProjected(r.source(false), p)
	if err != nil {
		return nil, err
	}
	return pq.List(ctx)
}
