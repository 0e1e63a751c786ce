package simdb

import (
	"context"
	"sync"
	"time"

	"github.com/banshee-data/gridsim/internal/controller"
)

// SnapshotSink persists every Nth frame's grid. It implements
// controller.FrameSink.
type SnapshotSink struct {
	db    *DB
	every uint64
	now   func() time.Time

	mu   sync.Mutex
	runs map[string]bool // runs already recorded in sim_runs
}

// NewSnapshotSink persists one snapshot every `every` ticks. every <= 0
// disables persistence.
func NewSnapshotSink(db *DB, every int) *SnapshotSink {
	var n uint64
	if every > 0 {
		n = uint64(every)
	}
	return &SnapshotSink{db: db, every: n, now: time.Now, runs: make(map[string]bool)}
}

// HandleFrame stores the frame's grid when its tick is a multiple of the
// configured interval.
func (s *SnapshotSink) HandleFrame(ctx context.Context, f controller.Frame) error {
	if s.every == 0 || f.Tick == 0 || f.Tick%s.every != 0 || f.Grid == nil {
		return nil
	}
	if err := s.ensureRun(ctx, f.RunID); err != nil {
		return err
	}
	_, err := s.db.InsertGridSnapshot(ctx, f.RunID, f.Tick, f.Pose, f.Grid, s.now())
	return err
}

// Flush stores the frame regardless of the interval, e.g. on shutdown.
func (s *SnapshotSink) Flush(ctx context.Context, f controller.Frame) error {
	if f.Grid == nil {
		return nil
	}
	if err := s.ensureRun(ctx, f.RunID); err != nil {
		return err
	}
	_, err := s.db.InsertGridSnapshot(ctx, f.RunID, f.Tick, f.Pose, f.Grid, s.now())
	return err
}

func (s *SnapshotSink) ensureRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runs[runID] {
		return nil
	}
	if err := s.db.CreateRun(ctx, Run{ID: runID, StartedAt: s.now()}); err != nil {
		return err
	}
	s.runs[runID] = true
	return nil
}
