package system

import (
	"go.uber.org/zap"

	"github.com/l1jgo/scene/internal/core/event"
)

// SubscribeLogging logs culling results at debug level.
func SubscribeLogging(bus *event.Bus, log *zap.Logger) {
	event.Subscribe(bus, func(e event.CullCompleted) {
		log.Debug("frame culled",
			zap.Uint64("frame", e.Frame),
			zap.Int("candidates", e.Candidates),
			zap.Int("visible", e.Visible),
			zap.Int("non_spatial", e.NonSpatial))
	})
	event.Subscribe(bus, func(e event.SnapshotSaved) {
		log.Debug("snapshot event", zap.Uint64("frame", e.Frame), zap.Int("items", e.Items))
	})
}
