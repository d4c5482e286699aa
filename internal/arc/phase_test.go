package arc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputePhase(t *testing.T) {
	tests := []struct {
		name      string
		step      int
		arcLength int
		want      PhaseInfo
	}{
		{
			name: "first step of a short arc",
			step: 1, arcLength: 15,
			want: PhaseInfo{Phase: PhaseSetup, PhaseStart: 1, PhaseEnd: 4, PositionInPhase: 1, TotalInPhase: 4, PercentInPhase: 25},
		},
		{
			name: "setup boundary is inclusive",
			step: 4, arcLength: 15,
			want: PhaseInfo{Phase: PhaseSetup, PhaseStart: 1, PhaseEnd: 4, PositionInPhase: 4, TotalInPhase: 4, PercentInPhase: 100},
		},
		{
			name: "step past the setup boundary",
			step: 5, arcLength: 15,
			want: PhaseInfo{Phase: PhaseConfrontation, PhaseStart: 5, PhaseEnd: 9, PositionInPhase: 1, TotalInPhase: 5, PercentInPhase: 20},
		},
		{
			name: "start of resolution in a default-length arc",
			step: 20, arcLength: 30,
			want: PhaseInfo{Phase: PhaseResolution, PhaseStart: 20, PhaseEnd: 30, PositionInPhase: 1, TotalInPhase: 11, PercentInPhase: 9},
		},
		{
			name: "confrontation boundary is inclusive",
			step: 19, arcLength: 30,
			want: PhaseInfo{Phase: PhaseConfrontation, PhaseStart: 10, PhaseEnd: 19, PositionInPhase: 10, TotalInPhase: 10, PercentInPhase: 100},
		},
		{
			name: "final step",
			step: 30, arcLength: 30,
			want: PhaseInfo{Phase: PhaseResolution, PhaseStart: 20, PhaseEnd: 30, PositionInPhase: 11, TotalInPhase: 11, PercentInPhase: 100},
		},
		{
			name: "overrun rolls into resolution",
			step: 35, arcLength: 30,
			want: PhaseInfo{Phase: PhaseResolution, PhaseStart: 20, PhaseEnd: 30, PositionInPhase: 16, TotalInPhase: 11, PercentInPhase: 145},
		},
		{
			name: "zero length substitutes the default",
			step: 20, arcLength: 0,
			want: PhaseInfo{Phase: PhaseResolution, PhaseStart: 20, PhaseEnd: 30, PositionInPhase: 1, TotalInPhase: 11, PercentInPhase: 9},
		},
		{
			name: "negative length substitutes the default",
			step: 1, arcLength: -5,
			want: PhaseInfo{Phase: PhaseSetup, PhaseStart: 1, PhaseEnd: 9, PositionInPhase: 1, TotalInPhase: 9, PercentInPhase: 11},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputePhase(tt.step, tt.arcLength)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputePhaseDeterministic(t *testing.T) {
	for step := 0; step <= 40; step++ {
		first := ComputePhase(step, 30)
		second := ComputePhase(step, 30)
		assert.Equal(t, first, second, "step %d", step)
		assert.Contains(t, []Phase{PhaseSetup, PhaseConfrontation, PhaseResolution}, first.Phase)
	}
}

func TestComputePhaseCoversEveryStep(t *testing.T) {
	for _, arcLength := range []int{1, 2, 3, 10, 15, 30, 100} {
		for step := 1; step <= arcLength; step++ {
			info := ComputePhase(step, arcLength)

			assert.GreaterOrEqual(t, step, info.PhaseStart, "length %d step %d", arcLength, step)
			assert.LessOrEqual(t, step, info.PhaseEnd, "length %d step %d", arcLength, step)
			assert.GreaterOrEqual(t, info.PositionInPhase, 1, "length %d step %d", arcLength, step)
			assert.LessOrEqual(t, info.PositionInPhase, info.TotalInPhase, "length %d step %d", arcLength, step)
		}

		// The three acts partition the arc with no gaps.
		last := ComputePhase(arcLength, arcLength)
		assert.Equal(t, arcLength, last.PhaseEnd, "length %d", arcLength)
	}
}

func TestPercentComplete(t *testing.T) {
	assert.Equal(t, 50, PercentComplete(15, 30))
	assert.Equal(t, 100, PercentComplete(30, 30))
	assert.Equal(t, 3, PercentComplete(1, 30))
	assert.Equal(t, 0, PercentComplete(0, 30))
	// Invalid lengths fall back to the default of 30.
	assert.Equal(t, 50, PercentComplete(15, 0))
}

func TestEffectiveLength(t *testing.T) {
	assert.Equal(t, 30, EffectiveLength(0))
	assert.Equal(t, 30, EffectiveLength(-1))
	assert.Equal(t, 42, EffectiveLength(42))
}
