package query

import (
	"context"
	"encoding/json"
)

// Session is one backing-store session. A session and every repository
// obtained from it belong to exactly one logical operation for their
// lifetime; concurrent use of the same session from multiple goroutines is
// unsupported. Writes staged on a session become durable only at SaveChanges.
type Session interface {
	// Source opens a query source over the named entity set. newEntity must
	// allocate a fresh *T for the driver to decode into. A tracked source
	// registers loaded entities in the session's identity map so that
	// mutations through the returned pointers are flushed at SaveChanges.
	Source(set string, tracked bool, newEntity func() any) Source

	// StageAdd records a pending insert under the given identity.
	StageAdd(set string, id any, entity any)
	// StageUpdate marks the entity modified, attaching it if it was detached.
	StageUpdate(set string, id any, entity any)
	// StageRemove records a pending delete.
	StageRemove(set string, id any)

	// SaveChanges atomically persists everything staged across all
	// repositories sharing this session and returns the number of affected
	// records. Outside an explicit transaction each call is atomic on its
	// own; inside one, durability is deferred to Commit.
	SaveChanges(ctx context.Context) (int64, error)

	// BeginTx opens an explicit transaction scope spanning multiple
	// SaveChanges calls.
	BeginTx(ctx context.Context) (Tx, error)

	Close() error
}

// Tx is an explicit driver-side transaction scope. Close without a prior
// decision rolls back; it never commits implicitly.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Close() error
}

// Snapshot is a point-in-time JSON clone of a store's committed state, one
// bucket per entity set keyed by canonical identity string. It is the unit of
// durable persistence for the snapshotting SQL drivers and of archive
// export.
type Snapshot map[string]map[string]json.RawMessage

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for set, rows := range s {
		cp := make(map[string]json.RawMessage, len(rows))
		for id, blob := range rows {
			cp[id] = append(json.RawMessage(nil), blob...)
		}
		out[set] = cp
	}
	return out
}
