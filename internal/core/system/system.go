package system

import "time"

// Phase defines execution ordering within a single frame.
type Phase int

const (
	PhaseProduce  Phase = iota // 0: producers build and enqueue transactions
	PhaseCommit                // 1: drain the intake queue and apply it
	PhaseCull                  // 2: read-side traversal of the committed scene
	PhaseDispatch              // 3: deliver this frame's events
	PhasePersist               // 4: periodic snapshots
)

func (p Phase) String() string {
	switch p {
	case PhaseProduce:
		return "produce"
	case PhaseCommit:
		return "commit"
	case PhaseCull:
		return "cull"
	case PhaseDispatch:
		return "dispatch"
	case PhasePersist:
		return "persist"
	}
	return "unknown"
}

// System is the interface every frame system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
