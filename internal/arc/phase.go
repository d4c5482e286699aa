package arc

import (
	"log/slog"
	"math"
)

// Phase names one of the three acts of a story arc.
type Phase string

const (
	PhaseSetup         Phase = "setup"
	PhaseConfrontation Phase = "confrontation"
	PhaseResolution    Phase = "resolution"
)

// DefaultArcLength substitutes for zero or negative arc lengths.
const DefaultArcLength = 30

// PhaseInfo describes where a step falls inside the three-act arc.
// Positions are 1-based within the phase.
type PhaseInfo struct {
	Phase           Phase `json:"phase"`
	PhaseStart      int   `json:"phase_start"`
	PhaseEnd        int   `json:"phase_end"`
	PositionInPhase int   `json:"position_in_phase"`
	TotalInPhase    int   `json:"total_in_phase"`
	PercentInPhase  int   `json:"percent_in_phase"`
}

// EffectiveLength returns arcLength, or DefaultArcLength when the
// stored value is zero or negative.
func EffectiveLength(arcLength int) int {
	if arcLength <= 0 {
		return DefaultArcLength
	}
	return arcLength
}

// ComputePhase classifies a step within an arc of arcLength steps.
// The setup act ends at floor(arcLength*0.33), the confrontation act
// at floor(arcLength*0.66), both bounds inclusive. Steps beyond the
// arc fall into resolution rather than erroring, so an overrun arc
// still renders sensibly.
func ComputePhase(step, arcLength int) PhaseInfo {
	if arcLength <= 0 {
		slog.Warn("invalid arc length, substituting default",
			"arc_length", arcLength,
			"default", DefaultArcLength)
		arcLength = DefaultArcLength
	}

	setupEnd := int(math.Floor(float64(arcLength) * 0.33))
	confrontationEnd := int(math.Floor(float64(arcLength) * 0.66))

	var info PhaseInfo
	switch {
	case step <= setupEnd:
		info = PhaseInfo{Phase: PhaseSetup, PhaseStart: 1, PhaseEnd: setupEnd}
	case step <= confrontationEnd:
		info = PhaseInfo{Phase: PhaseConfrontation, PhaseStart: setupEnd + 1, PhaseEnd: confrontationEnd}
	default:
		info = PhaseInfo{Phase: PhaseResolution, PhaseStart: confrontationEnd + 1, PhaseEnd: arcLength}
	}

	info.PositionInPhase = step - info.PhaseStart + 1
	info.TotalInPhase = info.PhaseEnd - info.PhaseStart + 1
	if info.TotalInPhase > 0 {
		info.PercentInPhase = int(math.Round(float64(info.PositionInPhase) / float64(info.TotalInPhase) * 100))
	}

	return info
}

// PercentComplete reports overall arc progress as a rounded percentage.
func PercentComplete(step, arcLength int) int {
	length := EffectiveLength(arcLength)
	return int(math.Round(float64(step) / float64(length) * 100))
}
