package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/scene/internal/core/event"
	coresys "github.com/l1jgo/scene/internal/core/system"
	"github.com/l1jgo/scene/internal/render"
)

// CommitSystem applies the scene's pending transactions once per frame.
// Phase 1 (Commit).
type CommitSystem struct {
	scene *render.Scene
	bus   *event.Bus
	frame func() uint64
	log   *zap.Logger
}

func NewCommitSystem(scene *render.Scene, bus *event.Bus, frame func() uint64, log *zap.Logger) *CommitSystem {
	return &CommitSystem{scene: scene, bus: bus, frame: frame, log: log}
}

func (s *CommitSystem) Phase() coresys.Phase { return coresys.PhaseCommit }

func (s *CommitSystem) Update(_ time.Duration) {
	stats := s.scene.ProcessTransactionQueue()
	if stats.Transactions == 0 {
		return
	}
	s.log.Debug("batch committed",
		zap.Int("transactions", stats.Transactions),
		zap.Int("resets", stats.Resets),
		zap.Int("updates", stats.Updates),
		zap.Int("removes", stats.Removes),
		zap.Uint64("watermark", uint64(stats.MaxID)))
	event.Emit(s.bus, event.BatchCommitted{Frame: s.frame(), Stats: stats})
}
