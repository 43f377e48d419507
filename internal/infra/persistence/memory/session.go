package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"specstore/pkg/query"
)

// Compile-time contract assertions ensuring the driver satisfies the query
// session interfaces.
var (
	_ query.Session = (*Session)(nil)
	_ query.Tx      = (*Tx)(nil)
)

// ErrSessionClosed reports use of a session after Close.
var ErrSessionClosed = errors.New("session closed")

type changeKind int

const (
	changeAdd changeKind = iota
	changeUpdate
	changeRemove
)

type change struct {
	kind   changeKind
	set    string
	id     string
	entity any
}

// trackedEntry pins one loaded entity to its identity. original holds the
// JSON state at load time; a nil original means the entry was attached by
// staging rather than by a tracked read, so diff-based flushing skips it.
type trackedEntry struct {
	ptr      any
	original json.RawMessage
}

// Session is a single-owner unit of pending work over a Store. It is not
// safe for concurrent use; one logical operation owns it for its lifetime,
// which is why no internal locking guards the pending-change set.
type Session struct {
	store   *Store
	overlay query.Snapshot // non-nil while an explicit transaction is open
	tx      *Tx
	pending []change
	tracked map[string]map[string]*trackedEntry
	closed  bool
}

// Source opens a query source over one entity set. Tracked sources resolve
// repeated loads of the same identity to the same pointer.
func (s *Session) Source(set string, tracked bool, newEntity func() any) query.Source {
	return source{sess: s, set: set, tracked: tracked, newEntity: newEntity}
}

// StageAdd records a pending insert.
func (s *Session) StageAdd(set string, id any, entity any) {
	key := keyString(id)
	s.pending = append(s.pending, change{kind: changeAdd, set: set, id: key, entity: entity})
	s.attach(set, key, entity, nil)
}

// StageUpdate marks an entity modified, attaching it if it was detached.
// This is the explicit re-attach point for entities loaded non-tracked.
func (s *Session) StageUpdate(set string, id any, entity any) {
	key := keyString(id)
	s.pending = append(s.pending, change{kind: changeUpdate, set: set, id: key, entity: entity})
	s.attach(set, key, entity, nil)
}

// StageRemove records a pending delete and drops any tracked entry.
func (s *Session) StageRemove(set string, id any) {
	key := keyString(id)
	s.pending = append(s.pending, change{kind: changeRemove, set: set, id: key})
	if entries := s.tracked[set]; entries != nil {
		delete(entries, key)
	}
}

func (s *Session) attach(set, id string, entity any, original json.RawMessage) {
	if s.tracked == nil {
		s.tracked = map[string]map[string]*trackedEntry{}
	}
	if s.tracked[set] == nil {
		s.tracked[set] = map[string]*trackedEntry{}
	}
	s.tracked[set][id] = &trackedEntry{ptr: entity, original: original}
}

func (s *Session) trackedEntry(set, id string) *trackedEntry {
	if entries := s.tracked[set]; entries != nil {
		return entries[id]
	}
	return nil
}

// view returns the state reads should observe: the transaction overlay when
// one is open, otherwise a clone of committed state.
func (s *Session) view() query.Snapshot {
	if s.overlay != nil {
		return s.overlay
	}
	return s.store.snapshot()
}

type stagedOp struct {
	kind changeKind
	set  string
	id   string
	blob json.RawMessage
}

// SaveChanges persists every pending add, update and remove staged across all
// repositories sharing this session, plus implicit updates for tracked
// entities whose current state differs from their load-time snapshot. The
// whole batch applies atomically; a conflict aborts the entire call.
func (s *Session) SaveChanges(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s.closed {
		return 0, ErrSessionClosed
	}

	seen := map[string]map[string]bool{}
	mark := func(set, id string) {
		if seen[set] == nil {
			seen[set] = map[string]bool{}
		}
		seen[set][id] = true
	}

	var ops []stagedOp
	for _, ch := range s.pending {
		op := stagedOp{kind: ch.kind, set: ch.set, id: ch.id}
		if ch.entity != nil {
			blob, err := json.Marshal(ch.entity)
			if err != nil {
				return 0, fmt.Errorf("encode %s/%s: %w", ch.set, ch.id, err)
			}
			op.blob = blob
		}
		ops = append(ops, op)
		mark(ch.set, ch.id)
	}

	// Flush tracked entities mutated through their pointers but never
	// explicitly staged.
	for set, entries := range s.tracked {
		for id, e := range entries {
			if seen[set] != nil && seen[set][id] {
				continue
			}
			if e.original == nil {
				continue
			}
			cur, err := json.Marshal(e.ptr)
			if err != nil {
				return 0, fmt.Errorf("encode %s/%s: %w", set, id, err)
			}
			if !bytes.Equal(cur, e.original) {
				ops = append(ops, stagedOp{kind: changeUpdate, set: set, id: id, blob: cur})
			}
		}
	}

	if len(ops) == 0 {
		s.pending = nil
		return 0, nil
	}

	if s.overlay != nil {
		if err := applyOps(s.overlay, ops); err != nil {
			return 0, err
		}
	} else {
		state := s.store.snapshot()
		if err := applyOps(state, ops); err != nil {
			return 0, err
		}
		if err := s.store.publish(ctx, state); err != nil {
			return 0, err
		}
	}

	s.pending = nil
	for _, op := range ops {
		entries := s.tracked[op.set]
		if entries == nil {
			continue
		}
		if op.kind == changeRemove {
			delete(entries, op.id)
			continue
		}
		if e := entries[op.id]; e != nil {
			e.original = op.blob
		}
	}
	return int64(len(ops)), nil
}

func applyOps(state query.Snapshot, ops []stagedOp) error {
	for _, op := range ops {
		rows := state[op.set]
		if rows == nil {
			rows = map[string]json.RawMessage{}
			state[op.set] = rows
		}
		switch op.kind {
		case changeAdd:
			if _, exists := rows[op.id]; exists {
				return fmt.Errorf("%s %q already exists", op.set, op.id)
			}
			rows[op.id] = op.blob
		case changeUpdate:
			rows[op.id] = op.blob
		case changeRemove:
			if _, exists := rows[op.id]; !exists {
				return fmt.Errorf("%s %q not found", op.set, op.id)
			}
			delete(rows, op.id)
		}
	}
	return nil
}

// BeginTx opens an explicit transaction scope. Saves inside the scope apply
// to a private overlay; nothing becomes durable until Commit.
func (s *Session) BeginTx(ctx context.Context) (query.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.tx != nil {
		return nil, errors.New("transaction already open")
	}
	s.overlay = s.store.snapshot()
	t := &Tx{sess: s}
	s.tx = t
	return t, nil
}

// Close discards pending work. An open transaction is rolled back.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	if s.tx != nil {
		_ = s.tx.Close()
	}
	s.pending = nil
	s.tracked = nil
	s.closed = true
	return nil
}

// Tx is the driver transaction scope. Undecided disposal rolls back.
type Tx struct {
	sess *Session
	done bool
}

// Commit publishes the overlay as the new committed state.
func (t *Tx) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.done {
		return errors.New("transaction already decided")
	}
	t.done = true
	state := t.sess.overlay
	t.sess.overlay = nil
	t.sess.tx = nil
	return t.sess.store.publish(ctx, state)
}

// Rollback discards the overlay.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.done {
		return errors.New("transaction already decided")
	}
	t.done = true
	t.sess.overlay = nil
	t.sess.tx = nil
	return nil
}

// Close rolls back when no decision was made. Repeated Close is a no-op.
func (t *Tx) Close() error {
	if t.done {
		return nil
	}
	return t.Rollback(context.Background())
}
