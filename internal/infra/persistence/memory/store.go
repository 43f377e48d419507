// Package memory provides the in-memory session driver used for tests and
// ephemeral environments, and the state engine the snapshotting SQL drivers
// build on. Committed state is held as JSON blobs per entity set, so reads
// decode detached clones and snapshot isolation falls out of cloning.
package memory

import (
	"context"
	"fmt"
	"sync"

	"specstore/pkg/query"
)

// Store holds the committed state shared by all sessions it opens.
type Store struct {
	mu      sync.RWMutex
	sets    query.Snapshot
	persist func(ctx context.Context) error
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{sets: query.Snapshot{}}
}

// SetPersist installs a hook invoked after every publication of committed
// state. The snapshotting SQL drivers use it to flush state durably.
func (s *Store) SetPersist(fn func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persist = fn
}

// OpenSession opens a new single-owner session over the store.
func (s *Store) OpenSession() query.Session {
	return &Session{store: s}
}

// Close releases nothing for the in-memory store; it exists so all drivers
// share one lifecycle surface.
func (s *Store) Close() error { return nil }

// ExportState returns a deep clone of the committed state.
func (s *Store) ExportState() query.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sets.Clone()
}

// ImportState replaces the committed state with a clone of the snapshot.
// Used for hydration at startup; the persist hook is not invoked.
func (s *Store) ImportState(snap query.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets = snap.Clone()
}

func (s *Store) snapshot() query.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sets.Clone()
}

func (s *Store) publish(ctx context.Context, state query.Snapshot) error {
	s.mu.Lock()
	s.sets = state
	fn := s.persist
	s.mu.Unlock()
	if fn != nil {
		if err := fn(ctx); err != nil {
			return fmt.Errorf("persist state: %w", err)
		}
	}
	return nil
}

// keyString canonicalizes an entity identity for use as a bucket key.
func keyString(id any) string {
	return fmt.Sprint(id)
}
