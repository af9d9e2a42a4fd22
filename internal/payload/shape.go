package payload

import (
	"cogentcore.org/core/math32"

	"github.com/l1jgo/scene/internal/render"
)

// Shape is the basic renderable payload: a tagged bounding box with a key.
// Mutated only through update functions applied by the scene.
type Shape struct {
	Tag      string
	key      render.ItemKey
	bound    math32.Box3
	revision uint64 // bumped on every applied update
}

func NewShape(tag string, key render.ItemKey, bound math32.Box3) *Shape {
	return &Shape{Tag: tag, key: key, bound: bound}
}

func (s *Shape) Key() render.ItemKey { return s.key }
func (s *Shape) Bound() math32.Box3  { return s.bound }
func (s *Shape) Revision() uint64    { return s.revision }

func (s *Shape) Update(fn render.UpdateFunc) {
	fn(s)
	s.revision++
}

// Move translates a shape's bound by delta.
func Move(delta math32.Vector3) render.UpdateFunc {
	return render.Updater(func(s *Shape) {
		s.bound = s.bound.Translate(delta)
	})
}

// SetKey replaces a shape's key, possibly reclassifying it.
func SetKey(key render.ItemKey) render.UpdateFunc {
	return render.Updater(func(s *Shape) {
		s.key = key
	})
}

// SetBound replaces a shape's bound.
func SetBound(b math32.Box3) render.UpdateFunc {
	return render.Updater(func(s *Shape) {
		s.bound = b
	})
}

// Chain applies fns in order.
func Chain(fns ...render.UpdateFunc) render.UpdateFunc {
	return func(p render.Payload) {
		for _, fn := range fns {
			fn(p)
		}
	}
}
