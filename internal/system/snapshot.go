package system

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/scene/internal/core/event"
	coresys "github.com/l1jgo/scene/internal/core/system"
	"github.com/l1jgo/scene/internal/persist"
	"github.com/l1jgo/scene/internal/render"
)

// SnapshotStore persists scene snapshots.
type SnapshotStore interface {
	Save(ctx context.Context, frame uint64, watermark render.ItemID, rows []persist.ItemRow) (int64, error)
}

// SnapshotSystem periodically writes the committed scene to the store.
// Phase 4 (Persist).
type SnapshotSystem struct {
	scene     *render.Scene
	store     SnapshotStore
	bus       *event.Bus
	frame     func() uint64
	log       *zap.Logger
	tickCount int
	interval  int // snapshot every N frames
}

func NewSnapshotSystem(scene *render.Scene, store SnapshotStore, bus *event.Bus, frame func() uint64, log *zap.Logger, intervalTicks int) *SnapshotSystem {
	return &SnapshotSystem{
		scene:    scene,
		store:    store,
		bus:      bus,
		frame:    frame,
		log:      log,
		interval: intervalTicks,
	}
}

func (s *SnapshotSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *SnapshotSystem) Update(_ time.Duration) {
	if s.interval <= 0 {
		return
	}
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	s.SaveNow()
}

// SaveNow writes a snapshot immediately. Called on shutdown.
func (s *SnapshotSystem) SaveNow() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	watermark := s.scene.NumAllocated()
	rows := persist.RowsFromSnapshot(s.scene.Snapshot())
	frame := s.frame()
	id, err := s.store.Save(ctx, frame, watermark, rows)
	if err != nil {
		s.log.Error("scene snapshot failed", zap.Uint64("frame", frame), zap.Error(err))
		return
	}
	s.log.Info("scene snapshot saved",
		zap.Int64("snapshot", id),
		zap.Uint64("frame", frame),
		zap.Int("items", len(rows)))
	event.Emit(s.bus, event.SnapshotSaved{Frame: frame, Items: len(rows)})
}
