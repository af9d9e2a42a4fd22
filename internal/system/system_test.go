package system

import (
	"context"
	"errors"
	"testing"
	"time"

	"cogentcore.org/core/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/l1jgo/scene/internal/core/event"
	coresys "github.com/l1jgo/scene/internal/core/system"
	"github.com/l1jgo/scene/internal/payload"
	"github.com/l1jgo/scene/internal/persist"
	"github.com/l1jgo/scene/internal/render"
	"github.com/l1jgo/scene/internal/spatial"
)

// scriptedProducer enqueues a fixed transaction per frame.
type scriptedProducer struct {
	scene  *render.Scene
	frames map[uint64]func(tx *render.Transaction)
	err    error
}

func (p *scriptedProducer) RunFrame(frame uint64) (int, error) {
	if p.err != nil {
		return 0, p.err
	}
	build, ok := p.frames[frame]
	if !ok {
		return 0, nil
	}
	var tx render.Transaction
	build(&tx)
	p.scene.EnqueueTransaction(&tx)
	return 1, nil
}

type memStore struct {
	saves [][]persist.ItemRow
	marks []render.ItemID
	err   error
}

func (m *memStore) Save(_ context.Context, _ uint64, watermark render.ItemID, rows []persist.ItemRow) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.saves = append(m.saves, rows)
	m.marks = append(m.marks, watermark)
	return int64(len(m.saves)), nil
}

type frameRig struct {
	scene  *render.Scene
	bus    *event.Bus
	runner *coresys.Runner
	cull   *CullSystem
	store  *memStore
}

func newFrameRig(t *testing.T, p Producer, interval int) *frameRig {
	t.Helper()
	grid := spatial.NewGrid(spatial.Config{
		Origin:   math32.Vec3(-512, -512, -512),
		CellSize: 16,
	})
	scene := render.NewScene(grid)
	bus := event.NewBus()
	runner := coresys.NewRunner()
	log := zap.NewNop()
	store := &memStore{}

	view := math32.B3(-10, -10, -10, 10, 10, 10)
	cull := NewCullSystem(scene, bus, runner.Frames, view)

	// Registered out of phase order on purpose.
	runner.Register(NewSnapshotSystem(scene, store, bus, runner.Frames, log, interval))
	runner.Register(NewDispatchSystem(bus))
	runner.Register(cull)
	runner.Register(NewCommitSystem(scene, bus, runner.Frames, log))
	if p != nil {
		runner.Register(NewProduceSystem(p, bus, runner.Frames, log))
	}
	return &frameRig{scene: scene, bus: bus, runner: runner, cull: cull, store: store}
}

func shapeKey() render.ItemKey {
	return render.NewKeyBuilder().WithTypeShape().Build()
}

func TestFrameCommitsAndCulls(t *testing.T) {
	p := &scriptedProducer{}
	rig := newFrameRig(t, p, 0)
	p.scene = rig.scene

	near := rig.scene.AllocateID()
	far := rig.scene.AllocateID()
	light := rig.scene.AllocateID()
	p.frames = map[uint64]func(*render.Transaction){
		0: func(tx *render.Transaction) {
			tx.ResetItem(near, payload.NewShape("near", shapeKey(), math32.B3(0, 0, 0, 1, 1, 1)))
			tx.ResetItem(far, payload.NewShape("far", shapeKey(), math32.B3(200, 200, 200, 201, 201, 201)))
			tx.ResetItem(light, payload.NewShape("sun", render.KeyTypeLight|render.KeyViewSpace, math32.Box3{}))
		},
		1: func(tx *render.Transaction) {
			tx.UpdateItem(far, payload.Move(math32.Vec3(-200, -200, -200)))
		},
	}

	var batches []event.BatchCommitted
	var culls []event.CullCompleted
	event.Subscribe(rig.bus, func(e event.BatchCommitted) { batches = append(batches, e) })
	event.Subscribe(rig.bus, func(e event.CullCompleted) { culls = append(culls, e) })

	rig.runner.Tick(16 * time.Millisecond)

	require.Len(t, batches, 1)
	assert.Equal(t, uint64(0), batches[0].Frame)
	assert.Equal(t, 3, batches[0].Stats.Resets)
	require.Len(t, culls, 1)
	assert.Equal(t, 1, culls[0].Visible)
	assert.Equal(t, 1, culls[0].NonSpatial)
	assert.Equal(t, []render.ItemID{near}, rig.cull.Visible())

	rig.runner.Tick(16 * time.Millisecond)

	require.Len(t, batches, 2)
	assert.Equal(t, 1, batches[1].Stats.Updates)
	require.Len(t, culls, 2)
	assert.Equal(t, 2, culls[1].Visible)
	assert.ElementsMatch(t, []render.ItemID{near, far}, rig.cull.Visible())
}

func TestCommitSkipsEmptyFrames(t *testing.T) {
	rig := newFrameRig(t, nil, 0)
	var batches int
	event.Subscribe(rig.bus, func(event.BatchCommitted) { batches++ })

	rig.runner.Tick(time.Millisecond)
	rig.runner.Tick(time.Millisecond)

	assert.Zero(t, batches)
	assert.Equal(t, uint64(2), rig.runner.Frames())
}

func TestProduceFailureKeepsFrameRunning(t *testing.T) {
	p := &scriptedProducer{err: errors.New("boom")}
	rig := newFrameRig(t, p, 0)
	p.scene = rig.scene

	var culls int
	var failed []event.ProduceFailed
	event.Subscribe(rig.bus, func(event.CullCompleted) { culls++ })
	event.Subscribe(rig.bus, func(e event.ProduceFailed) { failed = append(failed, e) })

	rig.runner.Tick(time.Millisecond)
	rig.runner.Tick(time.Millisecond)

	assert.Equal(t, 2, culls)
	require.Len(t, failed, 2)
	assert.Equal(t, uint64(1), failed[1].Frame)
	assert.EqualError(t, failed[0].Err, "boom")
}

func TestSnapshotInterval(t *testing.T) {
	rig := newFrameRig(t, nil, 3)
	id := rig.scene.AllocateID()
	var tx render.Transaction
	tx.ResetItem(id, payload.NewShape("crate", shapeKey(), math32.B3(0, 0, 0, 1, 1, 1)))
	rig.scene.EnqueueTransaction(&tx)

	var saved []event.SnapshotSaved
	event.Subscribe(rig.bus, func(e event.SnapshotSaved) { saved = append(saved, e) })

	for range 3 {
		rig.runner.Tick(time.Millisecond)
	}
	require.Len(t, rig.store.saves, 1)
	require.Len(t, rig.store.saves[0], 1)
	assert.Equal(t, "crate", rig.store.saves[0][0].Tag)
	assert.Equal(t, render.ItemID(2), rig.store.marks[0])

	// The event is emitted in the persist phase, after dispatch.
	assert.Empty(t, saved)
	rig.runner.Tick(time.Millisecond)
	require.Len(t, saved, 1)
	assert.Equal(t, 1, saved[0].Items)
}

func TestSnapshotStoreErrorIsLogged(t *testing.T) {
	rig := newFrameRig(t, nil, 1)
	rig.store.err = errors.New("db down")

	var saved int
	event.Subscribe(rig.bus, func(event.SnapshotSaved) { saved++ })

	rig.runner.Tick(time.Millisecond)
	rig.runner.Tick(time.Millisecond)

	assert.Empty(t, rig.store.saves)
	assert.Zero(t, saved)
}

func TestFlushCommitsAndDispatches(t *testing.T) {
	rig := newFrameRig(t, nil, 0)
	id := rig.scene.AllocateID()
	var tx render.Transaction
	tx.ResetItem(id, payload.NewShape("late", shapeKey(), math32.B3(0, 0, 0, 1, 1, 1)))
	rig.scene.EnqueueTransaction(&tx)

	var batches []event.BatchCommitted
	var saved []event.SnapshotSaved
	event.Subscribe(rig.bus, func(e event.BatchCommitted) { batches = append(batches, e) })
	event.Subscribe(rig.bus, func(e event.SnapshotSaved) { saved = append(saved, e) })

	snapshots := NewSnapshotSystem(rig.scene, rig.store, rig.bus, rig.runner.Frames, zap.NewNop(), 0)
	Flush(rig.runner, snapshots)

	_, ok := rig.scene.Item(id)
	assert.True(t, ok)
	assert.Zero(t, rig.scene.NumPending())
	assert.Equal(t, uint64(0), rig.runner.Frames())
	require.Len(t, batches, 1)
	assert.Equal(t, 1, batches[0].Stats.Resets)
	require.Len(t, saved, 1)
	assert.Equal(t, 1, saved[0].Items)
	require.Len(t, rig.store.saves, 1)
}
