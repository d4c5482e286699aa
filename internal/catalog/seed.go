package catalog

// defaultProgressTemplate is the template seeded into built-in story
// types. Hosts can override it per story type.
const defaultProgressTemplate = "[Story progress: step {currentStep} of {arcLength} ({arcPercent}% complete). " +
	"Current phase: {phase}, beat {positionInPhase} of {totalInPhase} ({phasePercent}% through this phase).]"

// builtinStoryTypes returns the blueprints shipped with a fresh
// installation. They are marked as templates so user edits can be
// told apart from stock entries.
func builtinStoryTypes() []StoryType {
	return []StoryType{
		{
			ID:         "heros-journey",
			Name:       "Hero's Journey",
			Categories: []string{"adventure", "classic"},
			StoryPrompt: `This story follows the hero's journey. An ordinary protagonist is called away from their familiar world, crosses into the unknown, faces trials that remake them, and returns transformed. Let allies, mentors and adversaries emerge naturally from the events of the chat.`,
			ProgressTemplate: defaultProgressTemplate,
			PhasePrompts: PhasePrompts{
				Setup:         `Establish the ordinary world and what the protagonist stands to lose. Plant the call to adventure without forcing an answer yet.`,
				Confrontation: `The threshold is behind them. Raise the stakes with each trial, strip away safety nets, and push the protagonist toward the ordeal they have been avoiding.`,
				Resolution:    `The ordeal is won or lost. Bring the consequences home, pay off the promises made in the setup, and show how the protagonist has changed.`,
			},
			IsTemplate: true,
		},
		{
			ID:         "mystery",
			Name:       "Whodunit Mystery",
			Categories: []string{"mystery", "suspense"},
			StoryPrompt: `This story is a fair-play mystery. A crime or disappearance anchors the plot. Clues must be planted in plain sight before they pay off, suspects need motive and opportunity, and at least one red herring should feel more convincing than the truth.`,
			ProgressTemplate: defaultProgressTemplate,
			PhasePrompts: PhasePrompts{
				Setup:         `Introduce the crime, the stakes, and the initial pool of suspects. Seed the decisive clue early, disguised as scenery.`,
				Confrontation: `Complicate the investigation. Alibis crack, a second incident raises the pressure, and the red herring should be at its most convincing here.`,
				Resolution:    `Unmask the culprit using only clues the reader has already seen. Account for the red herring and settle what happens to everyone involved.`,
			},
			IsTemplate: true,
		},
		{
			ID:         "romance",
			Name:       "Slow-Burn Romance",
			Categories: []string{"romance", "drama"},
			StoryPrompt: `This story is a slow-burn romance. Two people with good reasons to keep their distance are repeatedly thrown together. Attraction grows through small gestures and reversals, not declarations. The obstacle between them must be real, not a misunderstanding that one honest sentence would fix.`,
			ProgressTemplate: defaultProgressTemplate,
			PhasePrompts: PhasePrompts{
				Setup:         `Introduce both leads in their separate lives and give each a concrete reason to resist entanglement. Let the first meeting spark friction rather than harmony.`,
				Confrontation: `Force proximity. Let the attraction become undeniable while the obstacle grows teeth, and make at least one of them choose wrongly because of it.`,
				Resolution:    `Bring the obstacle to a head. The choice to be together must cost something real, and the ending should honor that cost.`,
			},
			IsTemplate: true,
		},
		{
			ID:         "horror",
			Name:       "Creeping Horror",
			Categories: []string{"horror", "suspense"},
			StoryPrompt: `This story is slow-building horror. Something is wrong in an ordinary place, and the wrongness escalates by degrees. Dread comes from implication and detail, not gore. The threat should obey consistent rules even if the characters never fully learn them.`,
			ProgressTemplate: defaultProgressTemplate,
			PhasePrompts: PhasePrompts{
				Setup:         `Ground the ordinary world firmly so its corruption registers. Let the first anomalies be deniable, the kind a reasonable person explains away.`,
				Confrontation: `Escalate past deniability. The rules of the threat start to show through repetition, and the safe places stop being safe one by one.`,
				Resolution:    `The survivors act on what they have learned. Whether they escape, bargain or succumb, the ending must follow the rules the story established.`,
			},
			IsTemplate: true,
		},
	}
}

// builtinAuthorStyles returns the voice overlays shipped with a fresh
// installation.
func builtinAuthorStyles() []AuthorStyle {
	return []AuthorStyle{
		{
			ID:         "noir",
			Name:       "Hardboiled Noir",
			Categories: []string{"crime", "atmosphere"},
			AuthorPrompt: `Write in a hardboiled noir voice. Short declarative sentences. Concrete nouns, weather as mood, and a narrator who notices exits before faces. Cynicism on the surface, a bruised moral code underneath. Dialogue does double duty; nobody says what they mean.`,
			NSFWPrompt: `Mature scenes stay in the same clipped register: physical, unsentimental, more shadow than detail. Desire reads as risk, never as sentiment.`,
			Keywords:   []string{"noir", "hardboiled", "cynical", "urban"},
			IsTemplate: true,
		},
		{
			ID:         "fairy-tale",
			Name:       "Fairy Tale",
			Categories: []string{"whimsy", "folklore"},
			AuthorPrompt: `Write in the cadence of a told fairy tale. Things happen in threes. Objects and promises carry weight, the woods are older than the kingdom, and cruelty is plain-spoken rather than dwelt upon. Keep the narrator's voice warm but matter-of-fact about wonders.`,
			Keywords:   []string{"fairy tale", "folklore", "whimsical"},
			IsTemplate: true,
		},
		{
			ID:         "purple-gothic",
			Name:       "Gothic Romantic",
			Categories: []string{"gothic", "atmosphere"},
			AuthorPrompt: `Write in a lush gothic register. Long sentences that gather weight as they go, architecture with moods, weather with opinions. Emotion is heightened and physical: pulses, drafts, candle smoke. The past presses on the present in every room.`,
			NSFWPrompt: `Mature scenes lean into the heightened register: sensual, candlelit, attentive to texture and breath, with feeling given as much weight as act.`,
			Keywords:   []string{"gothic", "romantic", "ornate"},
			IsTemplate: true,
		},
	}
}
