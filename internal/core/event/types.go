package event

import "github.com/l1jgo/scene/internal/render"

// BatchCommitted is emitted after every transaction pass.
type BatchCommitted struct {
	Frame uint64
	Stats render.BatchStats
}

// CullCompleted is emitted after the view selection of a frame.
type CullCompleted struct {
	Frame      uint64
	Candidates int // spatial items reported by the index
	Visible    int // candidates whose bound intersects the view
	NonSpatial int
}

// SnapshotSaved is emitted after a scene snapshot is persisted.
type SnapshotSaved struct {
	Frame uint64
	Items int
}

// ProduceFailed is emitted when a producer's frame call fails and its
// transactions are dropped.
type ProduceFailed struct {
	Frame uint64
	Err   error
}
