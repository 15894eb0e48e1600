package server

import (
	"testing"

	"github.com/npezzotti/go-whiteboard/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestSamplingPolicy_boundariesAlwaysPersist(t *testing.T) {
	p := NewSamplingPolicy(0, 42)

	for range 1000 {
		assert.True(t, p.ShouldPersist(types.OpStrokeStart))
		assert.True(t, p.ShouldPersist(types.OpStrokeEnd))
		assert.True(t, p.ShouldPersist(types.OpClear))
	}
	assert.False(t, p.ShouldPersist(types.OpStrokeMove), "expected moves to never persist at rate 0")
	assert.False(t, p.ShouldPersist(types.OpKind("erase")), "expected unknown kinds to never persist")
}

func TestSamplingPolicy_moveRate(t *testing.T) {
	const draws = 100000

	tcases := []struct {
		name string
		rate float64
	}{
		{name: "default rate", rate: 0.3},
		{name: "always", rate: 1},
		{name: "never", rate: 0},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewSamplingPolicy(tc.rate, 7)

			persisted := 0
			for range draws {
				if p.ShouldPersist(types.OpStrokeMove) {
					persisted++
				}
			}

			assert.InDelta(t, tc.rate, float64(persisted)/draws, 0.01,
				"expected roughly %.0f%% of moves to persist", tc.rate*100)
		})
	}
}

func TestSamplingPolicy_seeded(t *testing.T) {
	a := NewSamplingPolicy(0.3, 1234)
	b := NewSamplingPolicy(0.3, 1234)

	for range 500 {
		assert.Equal(t, a.ShouldPersist(types.OpStrokeMove), b.ShouldPersist(types.OpStrokeMove),
			"expected identical decisions for identical seeds")
	}
}
