// Package engine decides, under ambiguous host signals, whether an arc
// step actually happened. One Controller runs per session and holds
// the two transient flags that disambiguate the host's event stream:
// regenerating (the next reply replaces an existing one) and
// loadingChat (the host is replaying history after a conversation
// switch). Messages that survive both filters advance the arc, refresh
// the injected guidance, and at the final step trigger the post-arc
// sequence in completion.go.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vampirenirmal/storyarc/internal/arc"
	"github.com/vampirenirmal/storyarc/internal/catalog"
	"github.com/vampirenirmal/storyarc/internal/config"
	"github.com/vampirenirmal/storyarc/internal/host"
	"github.com/vampirenirmal/storyarc/internal/inject"
	"github.com/vampirenirmal/storyarc/internal/signal"
	"github.com/vampirenirmal/storyarc/internal/textgen"
)

// injectionKey is the host injection slot this engine owns.
const injectionKey = "storyarc"

const (
	defaultLoadGrace   = 500 * time.Millisecond
	defaultSettleDelay = 250 * time.Millisecond
)

// Deps are the collaborators a Controller drives. All are required.
type Deps struct {
	Settings   *config.SettingsStore
	States     *arc.Store
	Library    inject.Catalog
	Generator  textgen.Generator
	Injections host.InjectionSink
	Messages   host.MessageAppender
	History    host.HistoryProvider
}

type Controller struct {
	deps     Deps
	composer *inject.Composer
	limits   config.Limits
	logger   *slog.Logger

	loadGrace   time.Duration
	settleDelay time.Duration

	mu           sync.Mutex
	regenerating bool
	loadingChat  bool
	loadEpoch    int
	synthetic    map[string]struct{}
}

type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger.With("component", "engine")
	}
}

// WithLimits overrides the generation limits, which otherwise follow
// the package defaults.
func WithLimits(limits config.Limits) Option {
	return func(c *Controller) {
		c.limits = limits
	}
}

// WithLoadGrace sets how long message-received signals stay muted
// after a conversation switch.
func WithLoadGrace(d time.Duration) Option {
	return func(c *Controller) {
		c.loadGrace = d
	}
}

// WithSettleDelay sets the pause between post-arc appends.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Controller) {
		c.settleDelay = d
	}
}

func New(deps Deps, opts ...Option) (*Controller, error) {
	if deps.Settings == nil {
		return nil, errors.New("settings store cannot be nil")
	}
	if deps.States == nil {
		return nil, errors.New("state store cannot be nil")
	}
	if deps.Library == nil {
		return nil, errors.New("library cannot be nil")
	}
	if deps.Generator == nil {
		return nil, errors.New("generator cannot be nil")
	}
	if deps.Injections == nil {
		return nil, errors.New("injection sink cannot be nil")
	}
	if deps.Messages == nil {
		return nil, errors.New("message appender cannot be nil")
	}
	if deps.History == nil {
		return nil, errors.New("history provider cannot be nil")
	}

	c := &Controller{
		deps:        deps,
		composer:    inject.NewComposer(),
		limits:      config.DefaultLimits(),
		logger:      slog.Default().With("component", "engine"),
		loadGrace:   defaultLoadGrace,
		settleDelay: defaultSettleDelay,
		synthetic:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Attach subscribes the controller to a bus. Subscriptions last for
// the life of the process.
func (c *Controller) Attach(bus *signal.Bus) error {
	handlers := []struct {
		kind    signal.Kind
		handler signal.Handler
	}{
		{signal.GenerationStarting, c.HandleGenerationStarting},
		{signal.MessageSwiped, c.HandleMessageSwiped},
		{signal.MessageReceived, c.HandleMessageReceived},
		{signal.ConversationChanged, c.HandleConversationChanged},
	}
	for _, h := range handlers {
		if _, err := bus.Subscribe(h.kind, h.handler); err != nil {
			return fmt.Errorf("subscribing to %s: %w", h.kind, err)
		}
	}
	return nil
}

// HandleGenerationStarting runs before the host requests a reply. The
// very first generation in an empty conversation is scene setup, not a
// story step, so the reply it produces must not be counted.
func (c *Controller) HandleGenerationStarting(ctx context.Context, sig signal.Signal) error {
	if len(c.deps.History.History(sig.ConversationID)) == 0 {
		c.mu.Lock()
		c.regenerating = true
		c.mu.Unlock()
		c.logger.Debug("initial generation, upcoming message exempt from counting",
			"conversation_id", sig.ConversationID)
		return nil
	}

	c.mu.Lock()
	c.loadingChat = false
	c.mu.Unlock()

	c.Refresh(ctx, sig.ConversationID)
	return nil
}

// HandleMessageSwiped marks the upcoming reply as a replacement. A
// swipe or regeneration rewrites an existing step, so the reply it
// produces must not advance the arc.
func (c *Controller) HandleMessageSwiped(ctx context.Context, sig signal.Signal) error {
	c.mu.Lock()
	c.regenerating = true
	c.mu.Unlock()

	c.logger.Debug("swipe, upcoming message exempt from counting",
		"conversation_id", sig.ConversationID,
		"message_id", sig.MessageID)

	c.Refresh(ctx, sig.ConversationID)
	return nil
}

// HandleMessageReceived is the step checkpoint. A model reply that
// passes every filter advances the arc by exactly one step; the reply
// that lands on the final step triggers the post-arc sequence.
func (c *Controller) HandleMessageReceived(ctx context.Context, sig signal.Signal) error {
	if sig.IsUser {
		return nil
	}
	if c.isSynthetic(sig.MessageID) {
		c.logger.Debug("own narration message, not a step",
			"conversation_id", sig.ConversationID,
			"message_id", sig.MessageID)
		return nil
	}

	c.mu.Lock()
	if c.loadingChat {
		c.mu.Unlock()
		c.logger.Debug("chat still loading, message ignored",
			"conversation_id", sig.ConversationID)
		return nil
	}
	if c.regenerating {
		c.regenerating = false
		c.mu.Unlock()
		c.logger.Debug("regenerated message, not a step",
			"conversation_id", sig.ConversationID)
		return nil
	}
	c.mu.Unlock()

	set := c.deps.Settings.Current()
	if !set.Enabled || !set.StoryArcEnabled {
		return nil
	}

	st := c.deps.States.Get(ctx, sig.ConversationID)
	length := arc.EffectiveLength(st.ArcLength)
	if st.CurrentStep >= length {
		// arc already complete; completion ran when the last step landed
		return nil
	}

	st.CurrentStep++
	st.ArcStarted = true
	c.deps.States.Put(ctx, sig.ConversationID, st)

	c.logger.Info("arc step counted",
		"conversation_id", sig.ConversationID,
		"step", st.CurrentStep,
		"arc_length", length)

	c.Refresh(ctx, sig.ConversationID)

	if st.CurrentStep == length {
		c.runCompletion(ctx, sig.ConversationID)
	}
	return nil
}

// HandleConversationChanged resets the transient flags for the new
// conversation and mutes the step checkpoint while the host replays
// history. The grace delay is a best-effort debounce, not a
// correctness guarantee.
func (c *Controller) HandleConversationChanged(ctx context.Context, sig signal.Signal) error {
	c.mu.Lock()
	c.regenerating = false
	c.loadingChat = true
	c.loadEpoch++
	epoch := c.loadEpoch
	c.mu.Unlock()

	c.logger.Debug("conversation changed",
		"conversation_id", sig.ConversationID)

	c.Refresh(ctx, sig.ConversationID)

	go func() {
		time.Sleep(c.loadGrace)
		c.mu.Lock()
		// a later switch owns the flag now
		if c.loadEpoch == epoch {
			c.loadingChat = false
		}
		c.mu.Unlock()
	}()
	return nil
}

// Refresh recomposes the injection block for a conversation and hands
// it to the host. Empty text clears the slot.
func (c *Controller) Refresh(ctx context.Context, conversationID string) {
	set := c.deps.Settings.Current()
	st := c.deps.States.Get(ctx, conversationID)
	text := c.composer.Compose(set, st, c.deps.Library, false)
	c.deps.Injections.SetInjection(injectionKey, text, set.InjectionPosition, set.InjectionDepth, set.InjectionRole)

	c.logger.Debug("injection refreshed",
		"conversation_id", conversationID,
		"bytes", len(text))
}

// Preview returns the text that would be injected ahead of the next
// reply. Only the arc-completion gate is bypassed; a disabled engine
// still previews as empty.
func (c *Controller) Preview(ctx context.Context, conversationID string) string {
	set := c.deps.Settings.Current()
	st := c.deps.States.Get(ctx, conversationID)
	return c.composer.Compose(set, st, c.deps.Library, true)
}

// Reset rewinds the conversation's arc and refreshes the injection.
// The selections and arc length carry over into the new arc.
func (c *Controller) Reset(ctx context.Context, conversationID string) arc.State {
	st := c.deps.States.Reset(ctx, conversationID)
	c.logger.Info("arc reset",
		"conversation_id", conversationID,
		"arc_length", st.ArcLength)
	c.Refresh(ctx, conversationID)
	return st
}

// SelectStoryType changes the conversation's story type. Empty id
// clears the selection.
func (c *Controller) SelectStoryType(ctx context.Context, conversationID, storyTypeID string) error {
	if storyTypeID != "" {
		if _, ok := c.deps.Library.StoryType(storyTypeID); !ok {
			return fmt.Errorf("%w: %q", catalog.ErrStoryTypeNotFound, storyTypeID)
		}
	}

	st := c.deps.States.Get(ctx, conversationID)
	st.StoryTypeID = storyTypeID
	c.deps.States.Put(ctx, conversationID, st)
	c.Refresh(ctx, conversationID)
	return nil
}

// SelectAuthorStyle changes the conversation's author style. Empty id
// clears the selection.
func (c *Controller) SelectAuthorStyle(ctx context.Context, conversationID, authorStyleID string) error {
	if authorStyleID != "" {
		if _, ok := c.deps.Library.AuthorStyle(authorStyleID); !ok {
			return fmt.Errorf("%w: %q", catalog.ErrAuthorStyleNotFound, authorStyleID)
		}
	}

	st := c.deps.States.Get(ctx, conversationID)
	st.AuthorStyleID = authorStyleID
	c.deps.States.Put(ctx, conversationID, st)
	c.Refresh(ctx, conversationID)
	return nil
}

// SetArcLength changes the conversation's arc length mid-arc. Lowering
// it below the current step leaves the arc in overrun, which counts as
// already complete and never re-triggers the post-arc sequence.
func (c *Controller) SetArcLength(ctx context.Context, conversationID string, length int) error {
	if length <= 0 {
		return fmt.Errorf("arc length must be positive, got %d", length)
	}

	st := c.deps.States.Get(ctx, conversationID)
	st.ArcLength = length
	c.deps.States.Put(ctx, conversationID, st)
	c.Refresh(ctx, conversationID)
	return nil
}

// RetryPostArc re-runs the post-arc sequence for a completed arc whose
// epilogue or summary never landed. The steady state has no further
// step checkpoint once the arc is complete, so a generation failure at
// the completion checkpoint is only recoverable through this entry
// point.
func (c *Controller) RetryPostArc(ctx context.Context, conversationID string) {
	set := c.deps.Settings.Current()
	st := c.deps.States.Get(ctx, conversationID)

	if !st.Complete() {
		c.logger.Debug("arc not complete, nothing to retry",
			"conversation_id", conversationID,
			"step", st.CurrentStep)
		return
	}

	epiloguePending := set.EpilogueEnabled && !st.EpilogueShown
	summaryPending := set.SummaryEnabled && !st.SummaryShown
	if !epiloguePending && !summaryPending {
		c.logger.Debug("post-arc sequence already satisfied",
			"conversation_id", conversationID)
		return
	}

	c.runCompletion(ctx, conversationID)
}
