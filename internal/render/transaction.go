package render

import "go.uber.org/zap"

// Transaction is an ordered batch of pending item operations. Built by a
// producer on any goroutine, then handed to Scene.EnqueueTransaction.
// Not safe for concurrent mutation.
type Transaction struct {
	resetItems    []ItemID
	resetPayloads []Payload
	removedItems  []ItemID
	updatedItems  []ItemID
	updateFuncs   []UpdateFunc
}

// ResetItem installs payload on id. A nil payload is treated as a removal.
func (t *Transaction) ResetItem(id ItemID, payload Payload) {
	if payload == nil {
		zap.L().Warn("reset with a nil payload, removing item instead", zap.Uint64("item", uint64(id)))
		t.RemoveItem(id)
		return
	}
	t.resetItems = append(t.resetItems, id)
	t.resetPayloads = append(t.resetPayloads, payload)
}

// RemoveItem queues the removal of id. Not validated until applied.
func (t *Transaction) RemoveItem(id ItemID) {
	t.removedItems = append(t.removedItems, id)
}

// UpdateItem queues fn against id's payload. InvalidItemID keeps the slot
// aligned but is skipped at apply time.
func (t *Transaction) UpdateItem(id ItemID, fn UpdateFunc) {
	t.updatedItems = append(t.updatedItems, id)
	t.updateFuncs = append(t.updateFuncs, fn)
}

// Merge appends every operation of other after this transaction's own.
// No deduplication: merging the same transaction twice applies it twice.
func (t *Transaction) Merge(other *Transaction) {
	t.resetItems = append(t.resetItems, other.resetItems...)
	t.resetPayloads = append(t.resetPayloads, other.resetPayloads...)
	t.removedItems = append(t.removedItems, other.removedItems...)
	t.updatedItems = append(t.updatedItems, other.updatedItems...)
	t.updateFuncs = append(t.updateFuncs, other.updateFuncs...)
}

// Clone returns a copy that shares no backing arrays with t.
func (t *Transaction) Clone() Transaction {
	var c Transaction
	c.Merge(t)
	return c
}

// Clear drops all operations, keeping capacity.
func (t *Transaction) Clear() {
	t.resetItems = t.resetItems[:0]
	clear(t.resetPayloads)
	t.resetPayloads = t.resetPayloads[:0]
	t.removedItems = t.removedItems[:0]
	t.updatedItems = t.updatedItems[:0]
	clear(t.updateFuncs)
	t.updateFuncs = t.updateFuncs[:0]
}

func (t *Transaction) NumResets() int  { return len(t.resetItems) }
func (t *Transaction) NumUpdates() int { return len(t.updatedItems) }
func (t *Transaction) NumRemoves() int { return len(t.removedItems) }

func (t *Transaction) Empty() bool {
	return len(t.resetItems) == 0 && len(t.removedItems) == 0 && len(t.updatedItems) == 0
}
