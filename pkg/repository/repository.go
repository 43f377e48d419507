// Package repository provides the per-entity-type repository surface over a
// query session, the unit-of-work Context that owns the session and caches
// one repository per entity type, and the explicit Transaction wrapper. A
// dependency-registration mechanism may bind these interfaces however it
// likes; nothing here depends on a discovery strategy.
package repository

import (
	"context"
	"errors"

	"specstore/pkg/specification"
)

// ErrNilEntity reports a write operation invoked with a nil entity.
var ErrNilEntity = errors.New("entity must not be nil")

// ErrTransactionDone reports commit or rollback on a transaction that has
// already reached a terminal state.
var ErrTransactionDone = errors.New("transaction already decided")

// Entity is the constraint every repository entity satisfies: an equatable,
// non-null identity.
type Entity[ID comparable] interface {
	Key() ID
}

// KeyAssigner is implemented by entities that accept a generated string key.
// Add assigns a UUID when the key is zero and the entity (as a pointer)
// implements this.
type KeyAssigner interface {
	AssignKey(id string)
}

// ReadRepository is the read-only surface for one entity type. Absence is a
// nil result, never an error.
type ReadRepository[T Entity[ID], ID comparable] interface {
	// GetByID performs an exact-match identity lookup. The result is always
	// detached on this surface.
	GetByID(ctx context.Context, id ID) (*T, error)
	// List returns all entities matching the specification.
	List(ctx context.Context, spec *specification.Specification[T]) ([]*T, error)
	// ListAll returns every entity of the set.
	ListAll(ctx context.Context) ([]*T, error)
	// FirstOrDefault returns the first match under the specification's
	// ordering, or nil when nothing matches.
	FirstOrDefault(ctx context.Context, spec *specification.Specification[T]) (*T, error)
	// Count reports the number of matches. Paging bounds on the
	// specification never affect the count.
	Count(ctx context.Context, spec *specification.Specification[T]) (int64, error)
	// Any reports whether at least one entity matches, under the same rules
	// as Count.
	Any(ctx context.Context, spec *specification.Specification[T]) (bool, error)
}

// Repository adds the write surface. Writes are staged on the owning
// session and become durable only at the Context's SaveChanges.
type Repository[T Entity[ID], ID comparable] interface {
	ReadRepository[T, ID]

	// Add stages an insert and returns the entity as tracked by the
	// session, so generated identifiers are observable on the result.
	Add(ctx context.Context, entity *T) (*T, error)
	AddRange(ctx context.Context, entities []*T) error
	// Update marks the entity modified. For an entity loaded detached this
	// is the explicit re-attach; without it, mutations have no persistence
	// effect.
	Update(ctx context.Context, entity *T) error
	UpdateRange(ctx context.Context, entities []*T) error
	Remove(ctx context.Context, entity *T) error
	RemoveRange(ctx context.Context, entities []*T) error
}
