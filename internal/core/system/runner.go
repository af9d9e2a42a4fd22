package system

import (
	"sort"
	"time"
)

// Runner executes systems in phase order each frame.
// Registration order is kept within a phase.
type Runner struct {
	systems []System
	sorted  bool
	frames  uint64
}

func NewRunner() *Runner {
	return &Runner{
		systems: make([]System, 0, 8),
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

func (r *Runner) Tick(dt time.Duration) {
	r.ensureSorted()
	for _, s := range r.systems {
		s.Update(dt)
	}
	r.frames++
}

// TickPhase runs only the systems of one phase. Used to flush pending
// transactions outside the regular frame, e.g. right before shutdown.
func (r *Runner) TickPhase(phase Phase, dt time.Duration) {
	r.ensureSorted()
	for _, s := range r.systems {
		if s.Phase() == phase {
			s.Update(dt)
		}
	}
}

// Frames returns how many full frames have run.
func (r *Runner) Frames() uint64 { return r.frames }

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}
