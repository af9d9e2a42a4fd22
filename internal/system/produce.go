package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/l1jgo/scene/internal/core/event"
	coresys "github.com/l1jgo/scene/internal/core/system"
)

// Producer builds and enqueues this frame's transactions.
type Producer interface {
	RunFrame(frame uint64) (int, error)
}

// ProduceSystem runs the scripted producers. Phase 0 (Produce).
type ProduceSystem struct {
	producer Producer
	bus      *event.Bus
	frame    func() uint64
	log      *zap.Logger
}

func NewProduceSystem(p Producer, bus *event.Bus, frame func() uint64, log *zap.Logger) *ProduceSystem {
	return &ProduceSystem{producer: p, bus: bus, frame: frame, log: log}
}

func (s *ProduceSystem) Phase() coresys.Phase { return coresys.PhaseProduce }

func (s *ProduceSystem) Update(_ time.Duration) {
	frame := s.frame()
	n, err := s.producer.RunFrame(frame)
	if err != nil {
		// The producer already logged the script error; keep the frame going.
		event.Emit(s.bus, event.ProduceFailed{Frame: frame, Err: err})
		return
	}
	if n > 0 {
		s.log.Debug("transactions produced", zap.Int("count", n))
	}
}
