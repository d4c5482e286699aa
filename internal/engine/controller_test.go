package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vampirenirmal/storyarc/internal/arc"
	"github.com/vampirenirmal/storyarc/internal/catalog"
	"github.com/vampirenirmal/storyarc/internal/config"
	"github.com/vampirenirmal/storyarc/internal/host"
	"github.com/vampirenirmal/storyarc/internal/signal"
	"github.com/vampirenirmal/storyarc/internal/storage"
	"github.com/vampirenirmal/storyarc/internal/textgen"
)

type fakeCatalog struct {
	stories map[string]catalog.StoryType
	styles  map[string]catalog.AuthorStyle
}

func (f fakeCatalog) StoryType(id string) (catalog.StoryType, bool) {
	st, ok := f.stories[id]
	return st, ok
}

func (f fakeCatalog) AuthorStyle(id string) (catalog.AuthorStyle, bool) {
	as, ok := f.styles[id]
	return as, ok
}

func testCatalog() fakeCatalog {
	return fakeCatalog{
		stories: map[string]catalog.StoryType{
			"quest": {
				ID:               "quest",
				Name:             "Quest",
				StoryPrompt:      "Guide the scene along a hero's quest.",
				ProgressTemplate: "Step {currentStep} of {arcLength}, {phase} phase.",
				PhasePrompts: catalog.PhasePrompts{
					Setup:         "Establish the ordinary world.",
					Confrontation: "Escalate the central conflict.",
					Resolution:    "Draw the threads together.",
				},
			},
			"mystery": {
				ID:               "mystery",
				Name:             "Mystery",
				StoryPrompt:      "A crime needs solving.",
				ProgressTemplate: "{currentStep}/{arcLength}",
			},
		},
		styles: map[string]catalog.AuthorStyle{
			"noir": {
				ID:           "noir",
				Name:         "Noir",
				AuthorPrompt: "Write in a hard-boiled noir voice.",
			},
		},
	}
}

type fixture struct {
	ctrl     *Controller
	host     *host.MemoryHost
	gen      *textgen.Mock
	states   *arc.Store
	settings *config.SettingsStore
}

// newFixture wires a controller over in-memory collaborators. The
// default script uses a short arc and the quest/noir selections from
// the fake catalog; mutate adjusts settings before the controller
// sees them.
func newFixture(t *testing.T, mutate func(*config.Settings)) *fixture {
	t.Helper()
	ctx := context.Background()
	kv := storage.NewMemStore()

	settings, err := config.NewSettingsStore(kv, config.WithSettingsDebounce(0))
	require.NoError(t, err)
	require.NoError(t, settings.Load(ctx))
	require.NoError(t, settings.Update(ctx, func(s *config.Settings) {
		s.DefaultArcLength = 15
		s.DefaultStoryTypeID = "quest"
		s.DefaultAuthorStyleID = "noir"
		if mutate != nil {
			mutate(s)
		}
	}))

	states, err := arc.NewStore(kv, arc.WithDefaults(func() arc.Defaults {
		set := settings.Current()
		return arc.Defaults{
			ArcLength:     set.DefaultArcLength,
			StoryTypeID:   set.DefaultStoryTypeID,
			AuthorStyleID: set.DefaultAuthorStyleID,
		}
	}))
	require.NoError(t, err)

	h := host.NewMemoryHost()
	gen := textgen.NewMock()

	ctrl, err := New(Deps{
		Settings:   settings,
		States:     states,
		Library:    testCatalog(),
		Generator:  gen,
		Injections: h,
		Messages:   h,
		History:    h,
	},
		WithLoadGrace(20*time.Millisecond),
		WithSettleDelay(0))
	require.NoError(t, err)

	return &fixture{ctrl: ctrl, host: h, gen: gen, states: states, settings: settings}
}

// reply appends an assistant message and fires the step checkpoint for
// it, the way a host does after a model turn lands.
func (f *fixture) reply(t *testing.T, convID, text string) {
	t.Helper()
	ctx := context.Background()
	id := fmt.Sprintf("m%d", len(f.host.History(convID))+1)
	require.NoError(t, f.host.Append(ctx, convID, host.Message{ID: id, Text: text}))
	require.NoError(t, f.ctrl.HandleMessageReceived(ctx, signal.Signal{
		Kind:           signal.MessageReceived,
		ConversationID: convID,
		MessageID:      id,
	}))
}

func (f *fixture) userSays(t *testing.T, convID, text string) {
	t.Helper()
	ctx := context.Background()
	id := fmt.Sprintf("m%d", len(f.host.History(convID))+1)
	require.NoError(t, f.host.Append(ctx, convID, host.Message{ID: id, IsUser: true, Text: text}))
	require.NoError(t, f.ctrl.HandleMessageReceived(ctx, signal.Signal{
		Kind:           signal.MessageReceived,
		ConversationID: convID,
		MessageID:      id,
		IsUser:         true,
	}))
}

func (f *fixture) step(convID string) int {
	return f.states.Get(context.Background(), convID).CurrentStep
}

func TestStepCounting(t *testing.T) {
	f := newFixture(t, nil)

	f.userSays(t, "c1", "hello")
	f.reply(t, "c1", "the road begins")

	st := f.states.Get(context.Background(), "c1")
	assert.Equal(t, 1, st.CurrentStep)
	assert.True(t, st.ArcStarted)

	inj, ok := f.host.Injection("storyarc")
	require.True(t, ok)
	assert.Contains(t, inj.Text, "Step 2 of 15, setup phase.")
	assert.Contains(t, inj.Text, "hard-boiled noir voice")
	assert.Equal(t, host.PositionInPrompt, inj.Position)
	assert.Equal(t, host.RoleSystem, inj.Role)
}

func TestUserMessagesNeverCount(t *testing.T) {
	f := newFixture(t, nil)

	for i := 0; i < 5; i++ {
		f.userSays(t, "c1", "still typing")
	}
	assert.Equal(t, 0, f.step("c1"))
}

func TestSwipeSuppressesExactlyOneMessage(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.reply(t, "c1", "first step")
	require.Equal(t, 1, f.step("c1"))

	require.NoError(t, f.ctrl.HandleMessageSwiped(ctx, signal.Signal{
		Kind:           signal.MessageSwiped,
		ConversationID: "c1",
	}))

	f.reply(t, "c1", "the same step, retold")
	assert.Equal(t, 1, f.step("c1"), "swiped replacement must not advance the arc")

	f.reply(t, "c1", "a genuinely new step")
	assert.Equal(t, 2, f.step("c1"), "suppression is one-shot")
}

func TestConversationSwitchMutesReplayedMessages(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.ctrl.HandleConversationChanged(ctx, signal.Signal{
		Kind:           signal.ConversationChanged,
		ConversationID: "c2",
	}))

	// the host replays history right after the switch
	f.reply(t, "c2", "replayed message one")
	f.reply(t, "c2", "replayed message two")
	assert.Equal(t, 0, f.step("c2"))

	// well past the 20ms grace configured by the fixture
	time.Sleep(100 * time.Millisecond)
	f.reply(t, "c2", "a live message")
	assert.Equal(t, 1, f.step("c2"), "counting must resume after the grace delay")
}

func TestGenerationStartClearsLoadingFlag(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.host.Append(ctx, "c1", host.Message{ID: "m0", Text: "existing history"}))
	require.NoError(t, f.ctrl.HandleConversationChanged(ctx, signal.Signal{
		Kind:           signal.ConversationChanged,
		ConversationID: "c1",
	}))

	// a user-driven generation ends the load phase immediately
	require.NoError(t, f.ctrl.HandleGenerationStarting(ctx, signal.Signal{
		Kind:           signal.GenerationStarting,
		ConversationID: "c1",
	}))

	f.reply(t, "c1", "the reply that generation produced")
	assert.Equal(t, 1, f.step("c1"))
}

func TestFirstGenerationInEmptyConversationIsNotAStep(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.ctrl.HandleGenerationStarting(ctx, signal.Signal{
		Kind:           signal.GenerationStarting,
		ConversationID: "c1",
	}))

	f.reply(t, "c1", "opening scene greeting")
	assert.Equal(t, 0, f.step("c1"), "the scenario greeting is setup, not a step")

	f.reply(t, "c1", "the first real story beat")
	assert.Equal(t, 1, f.step("c1"))
}

func TestDisabledEngineCountsNothing(t *testing.T) {
	f := newFixture(t, func(s *config.Settings) {
		s.Enabled = false
	})

	f.reply(t, "c1", "a reply")
	assert.Equal(t, 0, f.step("c1"))

	_, ok := f.host.Injection("storyarc")
	assert.False(t, ok, "disabled engine must not hold an injection slot")
}

func TestArcToggleOffStillInjectsStyle(t *testing.T) {
	f := newFixture(t, func(s *config.Settings) {
		s.StoryArcEnabled = false
	})

	f.reply(t, "c1", "a reply")
	assert.Equal(t, 0, f.step("c1"), "story-arc toggle off means no step counting")

	f.ctrl.Refresh(context.Background(), "c1")
	inj, ok := f.host.Injection("storyarc")
	require.True(t, ok)
	assert.Equal(t, "Write in a hard-boiled noir voice.", inj.Text)
}

func TestConversationsProgressIndependently(t *testing.T) {
	f := newFixture(t, nil)

	f.reply(t, "c1", "c1 step one")
	f.reply(t, "c1", "c1 step two")
	f.reply(t, "c2", "c2 step one")

	assert.Equal(t, 2, f.step("c1"))
	assert.Equal(t, 1, f.step("c2"))
}

func TestSelectStoryType(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.ctrl.SelectStoryType(ctx, "c1", "mystery"))
	assert.Equal(t, "mystery", f.states.Get(ctx, "c1").StoryTypeID)

	inj, ok := f.host.Injection("storyarc")
	require.True(t, ok)
	assert.Contains(t, inj.Text, "A crime needs solving.")

	err := f.ctrl.SelectStoryType(ctx, "c1", "no-such-story")
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrStoryTypeNotFound)
	assert.Equal(t, "mystery", f.states.Get(ctx, "c1").StoryTypeID, "failed selection must not change state")

	require.NoError(t, f.ctrl.SelectStoryType(ctx, "c1", ""))
	assert.Empty(t, f.states.Get(ctx, "c1").StoryTypeID)
}

func TestSelectAuthorStyle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	err := f.ctrl.SelectAuthorStyle(ctx, "c1", "missing-style")
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrAuthorStyleNotFound)

	require.NoError(t, f.ctrl.SelectAuthorStyle(ctx, "c1", ""))
	assert.Empty(t, f.states.Get(ctx, "c1").AuthorStyleID)

	inj, ok := f.host.Injection("storyarc")
	require.True(t, ok)
	assert.NotContains(t, inj.Text, "noir")
}

func TestSetArcLength(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.ctrl.SetArcLength(ctx, "c1", 5))
	assert.Equal(t, 5, f.states.Get(ctx, "c1").ArcLength)

	assert.Error(t, f.ctrl.SetArcLength(ctx, "c1", 0))
	assert.Error(t, f.ctrl.SetArcLength(ctx, "c1", -3))
	assert.Equal(t, 5, f.states.Get(ctx, "c1").ArcLength)
}

func TestResetRewindsTheArc(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.reply(t, "c1", "one")
	f.reply(t, "c1", "two")
	require.Equal(t, 2, f.step("c1"))

	st := f.ctrl.Reset(ctx, "c1")
	assert.Equal(t, 0, st.CurrentStep)
	assert.False(t, st.ArcStarted)
	assert.Equal(t, "quest", st.StoryTypeID, "selection survives a reset")

	inj, ok := f.host.Injection("storyarc")
	require.True(t, ok)
	assert.Contains(t, inj.Text, "Step 1 of 15, setup phase.")
}

func TestPreviewBypassesOnlyCompletion(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	st := f.states.Get(ctx, "c1")
	st.CurrentStep = st.ArcLength
	f.states.Put(ctx, "c1", st)

	f.ctrl.Refresh(ctx, "c1")
	inj, ok := f.host.Injection("storyarc")
	require.True(t, ok)
	assert.NotContains(t, inj.Text, "quest", "completed arc injects style only")

	preview := f.ctrl.Preview(ctx, "c1")
	assert.Contains(t, preview, "hero's quest")

	require.NoError(t, f.settings.Update(ctx, func(s *config.Settings) { s.Enabled = false }))
	assert.Empty(t, f.ctrl.Preview(ctx, "c1"), "preview never bypasses the master toggle")
}

func TestInjectionPositionNoneClearsSlot(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.ctrl.Refresh(ctx, "c1")
	_, ok := f.host.Injection("storyarc")
	require.True(t, ok)

	require.NoError(t, f.settings.Update(ctx, func(s *config.Settings) {
		s.InjectionPosition = host.PositionNone
	}))
	f.ctrl.Refresh(ctx, "c1")
	_, ok = f.host.Injection("storyarc")
	assert.False(t, ok, "position none must release the slot")
}

func TestAttachRoutesBusSignals(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	bus := signal.NewBus()
	require.NoError(t, f.ctrl.Attach(bus))

	require.NoError(t, f.host.Append(ctx, "c1", host.Message{ID: "m1", Text: "a reply"}))
	bus.Publish(ctx, signal.Signal{
		Kind:           signal.MessageReceived,
		ConversationID: "c1",
		MessageID:      "m1",
	})
	assert.Equal(t, 1, f.step("c1"))

	bus.Publish(ctx, signal.Signal{Kind: signal.MessageSwiped, ConversationID: "c1"})
	require.NoError(t, f.host.Append(ctx, "c1", host.Message{ID: "m2", Text: "retold"}))
	bus.Publish(ctx, signal.Signal{
		Kind:           signal.MessageReceived,
		ConversationID: "c1",
		MessageID:      "m2",
	})
	assert.Equal(t, 1, f.step("c1"))
}

func TestNewRejectsMissingCollaborators(t *testing.T) {
	f := newFixture(t, nil)

	deps := Deps{
		Settings:   f.settings,
		States:     f.states,
		Library:    testCatalog(),
		Generator:  f.gen,
		Injections: f.host,
		Messages:   f.host,
		History:    f.host,
	}

	broken := deps
	broken.Generator = nil
	_, err := New(broken)
	assert.Error(t, err)

	broken = deps
	broken.Settings = nil
	_, err = New(broken)
	assert.Error(t, err)

	_, err = New(deps)
	assert.NoError(t, err)
}
