package system

import (
	"time"

	"cogentcore.org/core/math32"

	"github.com/l1jgo/scene/internal/core/event"
	coresys "github.com/l1jgo/scene/internal/core/system"
	"github.com/l1jgo/scene/internal/render"
)

// CullSystem selects the spatial items inside the view box and counts the
// non-spatial ones. Phase 2 (Cull).
type CullSystem struct {
	scene      *render.Scene
	bus        *event.Bus
	frame      func() uint64
	view       math32.Box3
	candidates []render.ItemID
	visible    []render.ItemID
}

func NewCullSystem(scene *render.Scene, bus *event.Bus, frame func() uint64, view math32.Box3) *CullSystem {
	return &CullSystem{scene: scene, bus: bus, frame: frame, view: view}
}

func (s *CullSystem) Phase() coresys.Phase { return coresys.PhaseCull }

func (s *CullSystem) Update(_ time.Duration) {
	s.candidates = s.candidates[:0]
	s.visible = s.visible[:0]

	// Collect first: the selector callback runs under the store lock.
	s.scene.SelectItems(s.view, func(id render.ItemID) {
		s.candidates = append(s.candidates, id)
	})
	for _, id := range s.candidates {
		it, ok := s.scene.Item(id)
		if !ok || !it.Key.IsSpatial() {
			continue
		}
		if it.Bound.IntersectsBox(s.view) {
			s.visible = append(s.visible, id)
		}
	}

	event.Emit(s.bus, event.CullCompleted{
		Frame:      s.frame(),
		Candidates: len(s.candidates),
		Visible:    len(s.visible),
		NonSpatial: len(s.scene.NonSpatialIDs()),
	})
}

// Visible returns the IDs found visible by the last frame. The slice is
// reused on the next Update.
func (s *CullSystem) Visible() []render.ItemID { return s.visible }
