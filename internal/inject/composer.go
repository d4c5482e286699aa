// Package inject builds the guidance block that is slipped into the
// prompt ahead of each model turn. The block has up to two segments: a
// story segment carrying the narrative blueprint and current-phase
// direction, and a style segment carrying the authorial voice. Either
// segment can be disabled, unselected, or unresolvable, in which case
// it contributes nothing.
package inject

import (
	"log/slog"
	"strings"

	"github.com/vampirenirmal/storyarc/internal/arc"
	"github.com/vampirenirmal/storyarc/internal/catalog"
	"github.com/vampirenirmal/storyarc/internal/config"
)

// debugDirective is rendered with next-step values and appended when
// debug mode is on, so replies carry a parseable progress marker.
const debugDirective = "(OOC: Step {currentStep}/{arcLength}, Phase: {phase})"

// Catalog is the read-only lookup surface the composer needs. A
// *catalog.Library satisfies it.
type Catalog interface {
	StoryType(id string) (catalog.StoryType, bool)
	AuthorStyle(id string) (catalog.AuthorStyle, bool)
}

// Composer assembles injection text from settings, arc state, and the
// content catalog.
type Composer struct {
	logger *slog.Logger
}

// ComposerOption configures a Composer.
type ComposerOption func(*Composer)

// WithComposerLogger overrides the default logger.
func WithComposerLogger(logger *slog.Logger) ComposerOption {
	return func(c *Composer) {
		c.logger = logger
	}
}

// NewComposer returns a Composer ready for use.
func NewComposer(opts ...ComposerOption) *Composer {
	c := &Composer{
		logger: slog.Default().With("component", "composer"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose builds the injection text for the upcoming reply. Text is
// always composed for the step the next model reply will occupy,
// currentStep+1, so guidance leads the narrative rather than trailing
// it. The master toggle always wins: when it is off the result is
// empty even in preview mode. Preview bypasses only the arc-completion
// gate on the story segment, letting the user inspect what would be
// injected after the arc has ended.
func (c *Composer) Compose(set config.Settings, st arc.State, cat Catalog, preview bool) string {
	if !set.Enabled {
		return ""
	}

	length := arc.EffectiveLength(st.ArcLength)
	vars := VarsFor(st.CurrentStep+1, st.ArcLength)

	var segments []string
	if set.StoryArcEnabled && (st.CurrentStep < length || preview) {
		if seg := c.storySegment(cat, st, vars, set.Debug); seg != "" {
			segments = append(segments, seg)
		}
	}
	if set.AuthorStyleEnabled {
		if seg := c.styleSegment(cat, st, set.AllowNSFW); seg != "" {
			segments = append(segments, seg)
		}
	}
	return strings.Join(segments, "\n\n")
}

// storySegment renders the narrative blueprint plus the phase
// direction for the upcoming step. A selection that no longer resolves
// in the catalog yields nothing; the other segment is unaffected.
func (c *Composer) storySegment(cat Catalog, st arc.State, vars Vars, debug bool) string {
	if st.StoryTypeID == "" {
		return ""
	}
	storyType, ok := cat.StoryType(st.StoryTypeID)
	if !ok {
		c.logger.Warn("selected story type missing from catalog", "story_type_id", st.StoryTypeID)
		return ""
	}

	progress := Render(storyType.ProgressTemplate, vars)
	if guidance := storyType.PhasePrompts.For(vars.Phase); guidance != "" {
		progress += "\n" + guidance
	}

	seg := storyType.StoryPrompt + "\n\n" + progress
	if debug {
		seg += "\n\n" + "[End your reply with this exact marker: " + Render(debugDirective, vars) + "]"
	}
	return seg
}

// styleSegment returns the authorial voice prompt, with the NSFW
// addendum only when both the global toggle allows it and the style
// carries one.
func (c *Composer) styleSegment(cat Catalog, st arc.State, allowNSFW bool) string {
	if st.AuthorStyleID == "" {
		return ""
	}
	style, ok := cat.AuthorStyle(st.AuthorStyleID)
	if !ok {
		c.logger.Warn("selected author style missing from catalog", "author_style_id", st.AuthorStyleID)
		return ""
	}

	seg := style.AuthorPrompt
	if allowNSFW && style.NSFWPrompt != "" {
		seg += "\n\n" + style.NSFWPrompt
	}
	return seg
}
