// Package snapshot holds the published aggregation output: the normalized
// group map plus the diagnostics of the run that produced it. Writers always
// install a fresh, fully-built snapshot; readers take it with a single
// atomic pointer load and need no locking.
package snapshot

import (
	"context"
	"sync/atomic"

	"github.com/gatherhub/eventdir/internal/logger"
	"github.com/gatherhub/eventdir/internal/models"
)

// Snapshot is one immutable published state.
type Snapshot struct {
	Data        models.AggregatedData `json:"data"`
	Diagnostics models.Diagnostics    `json:"diagnostics"`
	// Populated is true once any run (or a restored backend state) has
	// put group data into the snapshot. It distinguishes "no data yet"
	// from "zero events currently scheduled".
	Populated bool `json:"populated"`
}

// Store holds the current snapshot and optionally mirrors it to a
// durable backend so last-known-good data survives restarts.
type Store struct {
	current atomic.Pointer[Snapshot]
	backend Backend
}

// New creates a store starting from an empty, unpopulated snapshot.
func New(backend Backend) *Store {
	s := &Store{backend: backend}
	s.current.Store(&Snapshot{Data: models.AggregatedData{}})
	return s
}

// Current returns the published snapshot. The returned value must be
// treated as read-only.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Publish atomically replaces the snapshot with a fully-built successor
// and mirrors it to the backend when one is configured. A backend write
// failure never blocks publication; the in-memory swap is the source of
// truth for readers.
func (s *Store) Publish(ctx context.Context, data models.AggregatedData, diag models.Diagnostics) {
	next := &Snapshot{
		Data:        data,
		Diagnostics: diag,
		Populated:   s.current.Load().Populated || len(data) > 0,
	}
	s.current.Store(next)

	if s.backend != nil {
		if err := s.backend.Save(ctx, next); err != nil {
			logger.Warn("Snapshot backend save failed", "error", err)
		}
	}
}

// Restore loads the last persisted snapshot from the backend, if any,
// and installs it as the current state. Called once at startup.
func (s *Store) Restore(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}

	snap, err := s.backend.Load(ctx)
	if err != nil {
		return err
	}
	if snap == nil || len(snap.Data) == 0 {
		return nil
	}

	snap.Populated = true
	s.current.Store(snap)
	logger.Info("Snapshot restored from backend", "groups", len(snap.Data))
	return nil
}
