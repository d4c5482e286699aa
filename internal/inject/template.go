package inject

import (
	"strconv"
	"strings"

	"github.com/vampirenirmal/storyarc/internal/arc"
)

// Vars carries the values a progress template can reference.
type Vars struct {
	CurrentStep     int
	ArcLength       int
	ArcPercent      int
	Phase           arc.Phase
	PositionInPhase int
	TotalInPhase    int
	PhasePercent    int
	PhaseStart      int
	PhaseEnd        int
}

// VarsFor computes template values for a step in an arc of arcLength
// steps. Invalid lengths fall back to the default before any
// percentage is taken.
func VarsFor(step, arcLength int) Vars {
	length := arc.EffectiveLength(arcLength)
	info := arc.ComputePhase(step, arcLength)
	return Vars{
		CurrentStep:     step,
		ArcLength:       length,
		ArcPercent:      arc.PercentComplete(step, length),
		Phase:           info.Phase,
		PositionInPhase: info.PositionInPhase,
		TotalInPhase:    info.TotalInPhase,
		PhasePercent:    info.PercentInPhase,
		PhaseStart:      info.PhaseStart,
		PhaseEnd:        info.PhaseEnd,
	}
}

// Render substitutes every occurrence of the known placeholders in a
// single pass. Anything else in curly braces passes through verbatim,
// so host-side macros survive, and since no substitution produces a
// placeholder the operation is idempotent.
func Render(template string, vars Vars) string {
	replacer := strings.NewReplacer(
		"{currentStep}", strconv.Itoa(vars.CurrentStep),
		"{arcLength}", strconv.Itoa(vars.ArcLength),
		"{arcPercent}", strconv.Itoa(vars.ArcPercent),
		"{phase}", string(vars.Phase),
		"{positionInPhase}", strconv.Itoa(vars.PositionInPhase),
		"{totalInPhase}", strconv.Itoa(vars.TotalInPhase),
		"{phasePercent}", strconv.Itoa(vars.PhasePercent),
		"{phaseStart}", strconv.Itoa(vars.PhaseStart),
		"{phaseEnd}", strconv.Itoa(vars.PhaseEnd),
	)
	return replacer.Replace(template)
}
