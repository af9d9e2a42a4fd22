package render

import (
	"fmt"
	"sync"
	"sync/atomic"

	"cogentcore.org/core/math32"
	"go.uber.org/zap"
)

// DefaultGrowSlack is how many slots past the highest allocated ID the item
// store grows to when it has to grow.
const DefaultGrowSlack = 100

// SpatialIndex partitions spatial items by bound. It is only called with the
// scene's store lock held.
type SpatialIndex interface {
	// ResetItem inserts or relocates id and returns its current cell.
	// oldCell is NoCell on first insertion.
	ResetItem(oldCell CellRef, oldKey ItemKey, bound math32.Box3, id ItemID, newKey ItemKey) CellRef
	// RemoveItem detaches id from cell.
	RemoveItem(cell CellRef, key ItemKey, id ItemID)
}

// SpatialSelector is implemented by spatial indexes that can answer range queries.
type SpatialSelector interface {
	Select(box math32.Box3, fn func(ItemID))
}

// BatchStats summarizes one ProcessTransactionQueue pass.
type BatchStats struct {
	Transactions int
	Resets       int
	Updates      int
	Removes      int
	MaxID        ItemID
	Capacity     int
}

// Scene is the transactional registry of renderable items.
//
// Producers allocate IDs and enqueue transactions from any goroutine. A single
// frame driver calls ProcessTransactionQueue; overlapping calls are not supported.
type Scene struct {
	idAllocator  atomic.Uint64 // next ID to hand out
	numAllocated atomic.Uint64 // watermark: IDs below it are materialized

	queueMu sync.Mutex
	queue   []Transaction

	itemsMu    sync.Mutex
	items      []Item
	spatial    SpatialIndex
	nonSpatial *ItemIDSet
	growSlack  int

	log *zap.Logger
}

// Option configures a Scene.
type Option func(*Scene)

// WithGrowSlack overrides DefaultGrowSlack. Values below 1 are ignored.
func WithGrowSlack(n int) Option {
	return func(s *Scene) {
		if n >= 1 {
			s.growSlack = n
		}
	}
}

// WithLogger sets the scene logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Scene) {
		if log != nil {
			s.log = log
		}
	}
}

func NewScene(spatial SpatialIndex, opts ...Option) *Scene {
	s := &Scene{
		items:      make([]Item, 1, 1+DefaultGrowSlack),
		spatial:    spatial,
		nonSpatial: NewItemIDSet(),
		growSlack:  DefaultGrowSlack,
		log:        zap.NewNop(),
	}
	s.items[InvalidItemID] = emptyItem()
	s.idAllocator.Store(1)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AllocateID reserves a fresh item ID. Safe for concurrent use.
func (s *Scene) AllocateID() ItemID {
	return ItemID(s.idAllocator.Add(1) - 1)
}

// NextID returns the ID the next AllocateID call would hand out. Every valid
// ID below it has been allocated.
func (s *Scene) NextID() ItemID {
	return ItemID(s.idAllocator.Load())
}

// IsAllocatedID reports whether id's slot has been materialized by a
// completed transaction pass and may be looked up.
func (s *Scene) IsAllocatedID(id ItemID) bool {
	return id.IsValid() && uint64(id) < s.numAllocated.Load()
}

// NumAllocated returns the published watermark.
func (s *Scene) NumAllocated() ItemID {
	return ItemID(s.numAllocated.Load())
}

// EnqueueTransaction queues a copy of t for the next processing pass.
// Safe for concurrent use.
func (s *Scene) EnqueueTransaction(t *Transaction) {
	c := t.Clone()
	s.queueMu.Lock()
	s.queue = append(s.queue, c)
	s.queueMu.Unlock()
}

// NumPending returns the number of queued transactions.
func (s *Scene) NumPending() int {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	return len(s.queue)
}

// ProcessTransactionQueue drains the intake queue, merges it into one batch
// and applies it: all resets, then all updates, then all removals.
func (s *Scene) ProcessTransactionQueue() BatchStats {
	s.queueMu.Lock()
	pending := s.queue
	s.queue = nil
	s.queueMu.Unlock()

	var batch Transaction
	for i := range pending {
		batch.Merge(&pending[i])
	}

	s.itemsMu.Lock()
	defer s.itemsMu.Unlock()

	maxID := s.idAllocator.Load()
	if maxID > uint64(len(s.items)) {
		s.grow(int(maxID) + s.growSlack)
	}

	s.resetItems(batch.resetItems, batch.resetPayloads)

	// Resets are visible before updates and removals resolve IDs.
	s.numAllocated.Store(maxID)

	s.updateItems(batch.updatedItems, batch.updateFuncs)
	s.removeItems(batch.removedItems)

	s.numAllocated.Store(maxID)

	return BatchStats{
		Transactions: len(pending),
		Resets:       batch.NumResets(),
		Updates:      batch.NumUpdates(),
		Removes:      batch.NumRemoves(),
		MaxID:        ItemID(maxID),
		Capacity:     len(s.items),
	}
}

func (s *Scene) grow(n int) {
	old := len(s.items)
	if n <= cap(s.items) {
		s.items = s.items[:n]
	} else {
		grown := make([]Item, n)
		copy(grown, s.items)
		s.items = grown
	}
	for i := old; i < n; i++ {
		s.items[i] = emptyItem()
	}
	s.log.Debug("item store grown", zap.Int("from", old), zap.Int("to", n))
}

// item returns the slot for id, panicking when id was never materialized.
func (s *Scene) item(op string, id ItemID) *Item {
	if uint64(id) >= uint64(len(s.items)) {
		panic(fmt.Sprintf("render: %s of item %d outside item store (len %d)", op, id, len(s.items)))
	}
	return &s.items[id]
}

func (s *Scene) resetItems(ids []ItemID, payloads []Payload) {
	for i, id := range ids {
		item := s.item("reset", id)
		oldKey := item.key
		oldCell := item.cell

		item.resetPayload(payloads[i])
		newKey := item.key

		if !oldKey.IsNone() && newKey.IsNone() {
			panic(fmt.Sprintf("render: reset of item %d clears its key (%s), remove it instead", id, oldKey))
		}
		if !oldKey.IsNone() && oldKey.IsSpatial() != newKey.IsSpatial() {
			panic(fmt.Sprintf("render: reset of item %d changes spatial classification (%s -> %s)", id, oldKey, newKey))
		}
		if newKey.IsSpatial() {
			cell := s.spatial.ResetItem(oldCell, oldKey, item.bound, id, newKey)
			item.resetCell(cell, newKey.IsSmall())
		} else {
			s.nonSpatial.Insert(id)
		}
	}
}

func (s *Scene) updateItems(ids []ItemID, fns []UpdateFunc) {
	for i, id := range ids {
		if id == InvalidItemID {
			continue
		}
		item := s.item("update", id)
		oldKey := item.key
		oldCell := item.cell

		item.update(fns[i])
		newKey := item.key
		if !oldKey.IsNone() && newKey.IsNone() {
			panic(fmt.Sprintf("render: update of item %d clears its key (%s), remove it instead", id, oldKey))
		}

		switch {
		case oldKey.IsSpatial() && newKey.IsSpatial():
			cell := s.spatial.ResetItem(oldCell, oldKey, item.bound, id, newKey)
			item.resetCell(cell, newKey.IsSmall())
		case oldKey.IsSpatial():
			s.spatial.RemoveItem(oldCell, oldKey, id)
			item.clearCell()
			s.nonSpatial.Insert(id)
		case newKey.IsSpatial():
			s.nonSpatial.Erase(id)
			cell := s.spatial.ResetItem(NoCell, oldKey, item.bound, id, newKey)
			item.resetCell(cell, newKey.IsSmall())
		}
	}
}

func (s *Scene) removeItems(ids []ItemID) {
	for _, id := range ids {
		item := s.item("remove", id)
		if item.key.IsSpatial() {
			s.spatial.RemoveItem(item.cell, item.key, id)
		} else {
			s.nonSpatial.Erase(id)
		}
		item.kill()
	}
}

// --- Read path (store lock) ---

// Item returns a copy of the item at id. ok is false for IDs that are not
// allocated or whose slot is empty.
func (s *Scene) Item(id ItemID) (ItemSnapshot, bool) {
	if !s.IsAllocatedID(id) {
		return ItemSnapshot{}, false
	}
	s.itemsMu.Lock()
	defer s.itemsMu.Unlock()
	it := &s.items[id]
	if !it.Exists() {
		return ItemSnapshot{}, false
	}
	return it.snapshot(id), true
}

// Snapshot copies every non-empty item below the watermark, in ID order.
func (s *Scene) Snapshot() []ItemSnapshot {
	s.itemsMu.Lock()
	defer s.itemsMu.Unlock()
	n := s.numAllocated.Load()
	var out []ItemSnapshot
	for id := uint64(1); id < n && id < uint64(len(s.items)); id++ {
		if it := &s.items[id]; it.Exists() {
			out = append(out, it.snapshot(ItemID(id)))
		}
	}
	return out
}

// InNonSpatialSet reports whether id is held by the non-spatial set.
func (s *Scene) InNonSpatialSet(id ItemID) bool {
	s.itemsMu.Lock()
	defer s.itemsMu.Unlock()
	return s.nonSpatial.Contains(id)
}

// NonSpatialIDs returns the IDs of all non-spatial items, unordered.
func (s *Scene) NonSpatialIDs() []ItemID {
	s.itemsMu.Lock()
	defer s.itemsMu.Unlock()
	out := make([]ItemID, 0, s.nonSpatial.Len())
	s.nonSpatial.Each(func(id ItemID) { out = append(out, id) })
	return out
}

// SelectItems reports candidate spatial items near box. It returns false
// when the spatial index cannot answer range queries.
func (s *Scene) SelectItems(box math32.Box3, fn func(ItemID)) bool {
	sel, ok := s.spatial.(SpatialSelector)
	if !ok {
		return false
	}
	s.itemsMu.Lock()
	defer s.itemsMu.Unlock()
	sel.Select(box, fn)
	return true
}

// Capacity returns the current length of the item store.
func (s *Scene) Capacity() int {
	s.itemsMu.Lock()
	defer s.itemsMu.Unlock()
	return len(s.items)
}
