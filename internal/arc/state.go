package arc

// State is the durable per-conversation arc record.
type State struct {
	CurrentStep   int    `json:"current_step"`
	ArcLength     int    `json:"arc_length"`
	ArcStarted    bool   `json:"arc_started"`
	EpilogueShown bool   `json:"epilogue_shown"`
	SummaryShown  bool   `json:"summary_shown"`
	StoryTypeID   string `json:"story_type_id,omitempty"`
	AuthorStyleID string `json:"author_style_id,omitempty"`
}

// Defaults seeds a fresh State for a conversation that has none yet.
type Defaults struct {
	ArcLength     int
	StoryTypeID   string
	AuthorStyleID string
}

// NewState builds the initial record for a conversation. The step
// counter starts at zero; counting begins with the first reply.
func NewState(d Defaults) State {
	return State{
		ArcLength:     EffectiveLength(d.ArcLength),
		StoryTypeID:   d.StoryTypeID,
		AuthorStyleID: d.AuthorStyleID,
	}
}

// Complete reports whether the arc has reached its final step.
func (s State) Complete() bool {
	return s.CurrentStep >= EffectiveLength(s.ArcLength)
}

// Reset rewinds the arc to its beginning. The step counter returns to
// zero and both post-arc markers clear; the selected story type,
// author style and arc length carry over into the new arc.
func (s *State) Reset() {
	s.CurrentStep = 0
	s.ArcStarted = false
	s.EpilogueShown = false
	s.SummaryShown = false
}
