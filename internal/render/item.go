package render

import "cogentcore.org/core/math32"

// ItemID indexes the item store. IDs are handed out by Scene.AllocateID,
// increase monotonically and are never reused.
type ItemID uint64

// InvalidItemID is reserved: slot 0 always holds an empty item.
const InvalidItemID ItemID = 0

func (id ItemID) IsValid() bool { return id != InvalidItemID }

// CellRef is an opaque handle into the spatial index.
type CellRef int32

// NoCell marks an item that has no spatial cell.
const NoCell CellRef = -1

// UpdateFunc is invoked by a payload against itself while the scene applies
// an update. It may mutate anything that feeds the payload's key and bound.
type UpdateFunc func(Payload)

// Payload is the externally owned content of an item.
type Payload interface {
	Key() ItemKey
	Bound() math32.Box3
	Update(fn UpdateFunc)
}

// Updater adapts a function over a concrete payload type into an UpdateFunc.
// Payloads of any other type are left untouched.
func Updater[T Payload](fn func(T)) UpdateFunc {
	return func(p Payload) {
		if t, ok := p.(T); ok {
			fn(t)
		}
	}
}

// Item is one slot of the scene's item store.
// Only touched under the scene's store lock.
type Item struct {
	key     ItemKey
	bound   math32.Box3
	cell    CellRef
	small   bool
	payload Payload
}

func emptyItem() Item {
	return Item{cell: NoCell}
}

// Exists reports whether the slot holds a payload.
func (it *Item) Exists() bool { return it.payload != nil }

// resetPayload swaps in a new payload and re-derives key and bound from it.
func (it *Item) resetPayload(p Payload) {
	it.payload = p
	it.refresh()
}

// update runs fn through the payload. Empty items ignore updates.
func (it *Item) update(fn UpdateFunc) {
	if it.payload == nil || fn == nil {
		return
	}
	it.payload.Update(fn)
	it.refresh()
}

func (it *Item) refresh() {
	if it.payload == nil {
		it.key = 0
		it.bound = math32.Box3{}
		return
	}
	it.key = it.payload.Key()
	it.bound = it.payload.Bound()
}

func (it *Item) resetCell(cell CellRef, small bool) {
	it.cell = cell
	it.small = small
}

func (it *Item) clearCell() {
	it.cell = NoCell
	it.small = false
}

// kill empties the slot. The ID stays retired.
func (it *Item) kill() {
	*it = emptyItem()
}

// ItemSnapshot is a copy of an item's bookkeeping, safe to hold outside the store lock.
type ItemSnapshot struct {
	ID      ItemID
	Key     ItemKey
	Bound   math32.Box3
	Cell    CellRef
	Small   bool
	Payload Payload
}

func (it *Item) snapshot(id ItemID) ItemSnapshot {
	return ItemSnapshot{
		ID:      id,
		Key:     it.key,
		Bound:   it.bound,
		Cell:    it.cell,
		Small:   it.small,
		Payload: it.payload,
	}
}
