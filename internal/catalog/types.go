package catalog

import (
	"github.com/vampirenirmal/storyarc/internal/arc"
)

// StoryType is a reusable story blueprint: a prompt describing the
// overall shape of the story plus per-act guidance and a progress
// template rendered into the injection each step.
type StoryType struct {
	ID               string       `json:"id" jsonschema:"required" validate:"required"`
	Name             string       `json:"name" jsonschema:"required" validate:"required"`
	Categories       []string     `json:"categories,omitempty"`
	StoryPrompt      string       `json:"story_prompt" jsonschema:"required" validate:"required"`
	ProgressTemplate string       `json:"progress_template" jsonschema:"required" validate:"required"`
	PhasePrompts     PhasePrompts `json:"phase_prompts"`
	IsTemplate       bool         `json:"is_template,omitempty"`
}

// PhasePrompts holds the guidance text for each act.
type PhasePrompts struct {
	Setup         string `json:"setup,omitempty"`
	Confrontation string `json:"confrontation,omitempty"`
	Resolution    string `json:"resolution,omitempty"`
}

// For returns the guidance for a phase, or "" for an unknown phase.
func (p PhasePrompts) For(phase arc.Phase) string {
	switch phase {
	case arc.PhaseSetup:
		return p.Setup
	case arc.PhaseConfrontation:
		return p.Confrontation
	case arc.PhaseResolution:
		return p.Resolution
	}
	return ""
}

// AuthorStyle is a voice overlay layered on top of a story type. The
// NSFW prompt is an opt-in addendum, injected only when mature content
// is globally enabled.
type AuthorStyle struct {
	ID           string   `json:"id" jsonschema:"required" validate:"required"`
	Name         string   `json:"name" jsonschema:"required" validate:"required"`
	Categories   []string `json:"categories,omitempty"`
	AuthorPrompt string   `json:"author_prompt" jsonschema:"required" validate:"required"`
	NSFWPrompt   string   `json:"nsfw_prompt,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
	IsTemplate   bool     `json:"is_template,omitempty"`
}
