package render

import (
	"cogentcore.org/core/math32"
)

type testPayload struct {
	key   ItemKey
	bound math32.Box3
	calls int
}

func (p *testPayload) Key() ItemKey       { return p.key }
func (p *testPayload) Bound() math32.Box3 { return p.bound }

func (p *testPayload) Update(fn UpdateFunc) {
	p.calls++
	fn(p)
}

var (
	spatialKey    = NewKeyBuilder().WithTypeShape().Build()
	smallKey      = NewKeyBuilder().WithTypeShape().WithSmaller().Build()
	nonSpatialKey = NewKeyBuilder().WithTypeShape().WithViewSpace().Build()
	unitCube      = math32.B3(0, 0, 0, 1, 1, 1)
)

func spatialPayload() *testPayload    { return &testPayload{key: spatialKey, bound: unitCube} }
func nonSpatialPayload() *testPayload { return &testPayload{key: nonSpatialKey} }

func setKey(k ItemKey) UpdateFunc {
	return Updater(func(p *testPayload) { p.key = k })
}

// fakeIndex records placements. Each reset hands out a fresh cell so tests
// can observe relocations.
type fakeIndex struct {
	next    CellRef
	cells   map[ItemID]CellRef
	resets  []ItemID
	removes []ItemID
	oldCell map[ItemID]CellRef // oldCell passed on the latest reset
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		cells:   make(map[ItemID]CellRef),
		oldCell: make(map[ItemID]CellRef),
	}
}

func (f *fakeIndex) ResetItem(oldCell CellRef, _ ItemKey, _ math32.Box3, id ItemID, _ ItemKey) CellRef {
	f.resets = append(f.resets, id)
	f.oldCell[id] = oldCell
	cell := f.next
	f.next++
	f.cells[id] = cell
	return cell
}

func (f *fakeIndex) RemoveItem(_ CellRef, _ ItemKey, id ItemID) {
	f.removes = append(f.removes, id)
	delete(f.cells, id)
}

func (f *fakeIndex) has(id ItemID) bool {
	_, ok := f.cells[id]
	return ok
}
