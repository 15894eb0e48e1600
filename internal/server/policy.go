package server

import (
	"math/rand/v2"
	"sync"

	"github.com/npezzotti/go-whiteboard/internal/types"
)

// PersistPolicy decides whether an accepted op is written to the durable
// log. It never affects live fan-out.
type PersistPolicy interface {
	ShouldPersist(kind types.OpKind) bool
}

// SamplingPolicy persists stroke boundaries and clears unconditionally and
// stroke moves with probability moveRate.
type SamplingPolicy struct {
	mu       sync.Mutex
	rnd      *rand.Rand
	moveRate float64
}

func NewSamplingPolicy(moveRate float64, seed uint64) *SamplingPolicy {
	return &SamplingPolicy{
		rnd:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		moveRate: moveRate,
	}
}

func (p *SamplingPolicy) ShouldPersist(kind types.OpKind) bool {
	switch kind {
	case types.OpStrokeStart, types.OpStrokeEnd, types.OpClear:
		return true
	case types.OpStrokeMove:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.rnd.Float64() < p.moveRate
	}

	return false
}
