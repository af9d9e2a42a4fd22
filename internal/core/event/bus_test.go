package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusDeliversAfterSwap(t *testing.T) {
	b := NewBus()
	var got []uint64
	Subscribe(b, func(e BatchCommitted) { got = append(got, e.Frame) })

	Emit(b, BatchCommitted{Frame: 1})
	Emit(b, BatchCommitted{Frame: 2})
	assert.Equal(t, 2, b.Pending())

	b.DispatchAll()
	assert.Empty(t, got, "nothing is delivered before the swap")

	b.SwapBuffers()
	assert.Equal(t, 0, b.Pending())
	b.DispatchAll()
	assert.Equal(t, []uint64{1, 2}, got)

	// the next swap drops already-delivered events
	b.SwapBuffers()
	b.DispatchAll()
	assert.Equal(t, []uint64{1, 2}, got)
}

func TestBusRoutesByType(t *testing.T) {
	b := NewBus()
	var batches, culls int
	Subscribe(b, func(BatchCommitted) { batches++ })
	Subscribe(b, func(CullCompleted) { culls++ })

	Emit(b, CullCompleted{Frame: 1})
	b.SwapBuffers()
	b.DispatchAll()

	assert.Equal(t, 0, batches)
	assert.Equal(t, 1, culls)
}
