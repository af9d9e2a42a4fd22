package spatial

import (
	"cogentcore.org/core/math32"

	"github.com/l1jgo/scene/internal/render"
)

// Grid is an unbounded two-level loose grid anchored at an origin. Items are binned by the
// centre of their bound; small items go to the fine level. Neighbouring cells
// are searched on selection, so an item's bound may overhang its cell by up
// to one cell size.
// Called only with the scene's store lock held; it has no locks of its own.
type Grid struct {
	origin   math32.Vector3
	cellSize [levelCount]float32

	index map[cellKey]render.CellRef
	cells []cell
	free  []render.CellRef

	numItems int
}

const (
	levelCoarse = iota
	levelFine
	levelCount
)

type cellKey struct {
	level   uint8
	x, y, z int32
}

type cell struct {
	key   cellKey
	items map[render.ItemID]struct{}
}

// Config sizes a Grid.
type Config struct {
	Origin           math32.Vector3
	CellSize         float32 // coarse cell edge length
	SmallCellDivisor int     // fine cell = CellSize / SmallCellDivisor
}

func NewGrid(cfg Config) *Grid {
	if cfg.CellSize <= 0 {
		cfg.CellSize = 32
	}
	if cfg.SmallCellDivisor < 1 {
		cfg.SmallCellDivisor = 4
	}
	return &Grid{
		origin: cfg.Origin,
		cellSize: [levelCount]float32{
			levelCoarse: cfg.CellSize,
			levelFine:   cfg.CellSize / float32(cfg.SmallCellDivisor),
		},
		index: make(map[cellKey]render.CellRef),
		cells: make([]cell, 0, 64),
	}
}

func levelOf(key render.ItemKey) uint8 {
	if key.IsSmall() {
		return levelFine
	}
	return levelCoarse
}

func toCellCoord(v, size float32) int32 {
	return int32(math32.Floor(v / size))
}

func (g *Grid) keyAt(level uint8, p math32.Vector3) cellKey {
	rel := p.Sub(g.origin)
	s := g.cellSize[level]
	return cellKey{
		level: level,
		x:     toCellCoord(rel.X, s),
		y:     toCellCoord(rel.Y, s),
		z:     toCellCoord(rel.Z, s),
	}
}

// ResetItem places id in the cell matching bound and newKey, moving it out of
// oldCell when that differs. Returns the item's cell.
func (g *Grid) ResetItem(oldCell render.CellRef, oldKey render.ItemKey, bound math32.Box3, id render.ItemID, newKey render.ItemKey) render.CellRef {
	k := g.keyAt(levelOf(newKey), bound.Center())
	if g.valid(oldCell) {
		if g.cells[oldCell].key == k {
			if _, ok := g.cells[oldCell].items[id]; ok {
				return oldCell
			}
		}
		g.RemoveItem(oldCell, oldKey, id)
	}
	ref := g.acquire(k)
	c := &g.cells[ref]
	if _, ok := c.items[id]; !ok {
		c.items[id] = struct{}{}
		g.numItems++
	}
	return ref
}

// RemoveItem takes id out of cell. Unknown cells or IDs are ignored.
func (g *Grid) RemoveItem(ref render.CellRef, _ render.ItemKey, id render.ItemID) {
	if !g.valid(ref) {
		return
	}
	c := &g.cells[ref]
	if _, ok := c.items[id]; !ok {
		return
	}
	delete(c.items, id)
	g.numItems--
	if len(c.items) == 0 {
		g.release(ref)
	}
}

// Select reports every item binned in a cell that overlaps box grown by one
// cell on each side. Caller does fine-grained bound filtering.
func (g *Grid) Select(box math32.Box3, fn func(render.ItemID)) {
	for level := uint8(0); level < levelCount; level++ {
		lo := g.keyAt(level, box.Min)
		hi := g.keyAt(level, box.Max)
		for x := lo.x - 1; x <= hi.x+1; x++ {
			for y := lo.y - 1; y <= hi.y+1; y++ {
				for z := lo.z - 1; z <= hi.z+1; z++ {
					ref, ok := g.index[cellKey{level: level, x: x, y: y, z: z}]
					if !ok {
						continue
					}
					for id := range g.cells[ref].items {
						fn(id)
					}
				}
			}
		}
	}
}

// NumItems returns the number of items held by the grid.
func (g *Grid) NumItems() int { return g.numItems }

// NumCells returns the number of occupied cells.
func (g *Grid) NumCells() int { return len(g.index) }

func (g *Grid) valid(ref render.CellRef) bool {
	return ref >= 0 && int(ref) < len(g.cells) && g.cells[ref].items != nil
}

func (g *Grid) acquire(k cellKey) render.CellRef {
	if ref, ok := g.index[k]; ok {
		return ref
	}
	var ref render.CellRef
	if n := len(g.free); n > 0 {
		ref = g.free[n-1]
		g.free = g.free[:n-1]
		g.cells[ref] = cell{key: k, items: make(map[render.ItemID]struct{})}
	} else {
		ref = render.CellRef(len(g.cells))
		g.cells = append(g.cells, cell{key: k, items: make(map[render.ItemID]struct{})})
	}
	g.index[k] = ref
	return ref
}

func (g *Grid) release(ref render.CellRef) {
	delete(g.index, g.cells[ref].key)
	g.cells[ref] = cell{}
	g.free = append(g.free, ref)
}
