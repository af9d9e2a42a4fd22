package system

import (
	coresys "github.com/l1jgo/scene/internal/core/system"
)

// Flush runs the final partial frame on shutdown: it commits what producers
// enqueued after the last frame, writes a snapshot when snapshots is non-nil,
// and dispatches the resulting events.
func Flush(runner *coresys.Runner, snapshots *SnapshotSystem) {
	runner.TickPhase(coresys.PhaseCommit, 0)
	if snapshots != nil {
		snapshots.SaveNow()
	}
	runner.TickPhase(coresys.PhaseDispatch, 0)
}
