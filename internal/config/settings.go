package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/vampirenirmal/storyarc/internal/arc"
	"github.com/vampirenirmal/storyarc/internal/host"
	"github.com/vampirenirmal/storyarc/internal/storage"
)

const settingsKey = "settings/global.json"

// Settings is the user-facing global configuration. Unlike Config,
// which is operator-level process setup, Settings changes at runtime
// and persists through the key-value store.
type Settings struct {
	Enabled            bool `json:"enabled"`
	Debug              bool `json:"debug"`
	StoryArcEnabled    bool `json:"story_arc_enabled"`
	AuthorStyleEnabled bool `json:"author_style_enabled"`
	AllowNSFW          bool `json:"allow_nsfw"`

	DefaultArcLength     int    `json:"default_arc_length" validate:"min=1,max=500"`
	DefaultStoryTypeID   string `json:"default_story_type_id"`
	DefaultAuthorStyleID string `json:"default_author_style_id"`

	InjectionPosition host.Position `json:"injection_position" validate:"oneof=in_prompt in_chat before_prompt none"`
	InjectionDepth    int           `json:"injection_depth" validate:"min=0,max=100"`
	InjectionRole     host.Role     `json:"injection_role" validate:"oneof=system user assistant"`

	EpilogueEnabled bool `json:"epilogue_enabled"`
	SummaryEnabled  bool `json:"summary_enabled"`
	// SummaryMessageCount limits how much history feeds the summary;
	// zero means the entire conversation.
	SummaryWordBudget   int `json:"summary_word_budget" validate:"min=50,max=2000"`
	SummaryMessageCount int `json:"summary_message_count" validate:"min=0,max=1000"`
}

// DefaultSettings returns the configuration a fresh installation runs
// with: everything on, injected as a system note near the top of the
// prompt.
func DefaultSettings() Settings {
	return Settings{
		Enabled:            true,
		StoryArcEnabled:    true,
		AuthorStyleEnabled: true,
		DefaultArcLength:   arc.DefaultArcLength,
		DefaultStoryTypeID: "heros-journey",
		InjectionPosition:  host.PositionInPrompt,
		InjectionDepth:     4,
		InjectionRole:      host.RoleSystem,
		EpilogueEnabled:    true,
		SummaryEnabled:     true,
		SummaryWordBudget:  300,
	}
}

// SettingsStore holds the live Settings value and persists changes
// with a short debounce, so a burst of toggle flips becomes one write.
type SettingsStore struct {
	kv       storage.Store
	logger   *slog.Logger
	validate *validator.Validate
	debounce time.Duration

	mu      sync.Mutex
	current Settings
	timer   *time.Timer
}

type SettingsOption func(*SettingsStore)

// WithSettingsLogger sets a custom logger.
func WithSettingsLogger(logger *slog.Logger) SettingsOption {
	return func(s *SettingsStore) {
		s.logger = logger.With("component", "settings")
	}
}

// WithSettingsDebounce sets the persistence debounce window. Zero
// persists synchronously on every update.
func WithSettingsDebounce(d time.Duration) SettingsOption {
	return func(s *SettingsStore) {
		s.debounce = d
	}
}

func NewSettingsStore(kv storage.Store, opts ...SettingsOption) (*SettingsStore, error) {
	if kv == nil {
		return nil, errors.New("storage cannot be nil")
	}

	s := &SettingsStore{
		kv:       kv,
		logger:   slog.Default().With("component", "settings"),
		validate: validator.New(),
		debounce: 500 * time.Millisecond,
		current:  DefaultSettings(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Load reads persisted settings, merging them over the defaults so
// fields absent from an older record keep their default values.
func (s *SettingsStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.kv.Get(ctx, settingsKey)
	if errors.Is(err, storage.ErrNotFound) {
		s.current = DefaultSettings()
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	merged := DefaultSettings()
	if err := json.Unmarshal(data, &merged); err != nil {
		s.logger.Warn("settings record is corrupt, using defaults", "error", err)
		s.current = DefaultSettings()
		return nil
	}
	if err := s.validate.Struct(merged); err != nil {
		s.logger.Warn("persisted settings failed validation, using defaults", "error", err)
		s.current = DefaultSettings()
		return nil
	}

	s.current = merged
	return nil
}

// Current returns a copy of the live settings.
func (s *SettingsStore) Current() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Update applies mutate to a copy of the live settings, validates the
// result, installs it and schedules persistence. The live value never
// holds an invalid state.
func (s *SettingsStore) Update(ctx context.Context, mutate func(*Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current
	mutate(&next)

	if err := s.validate.Struct(next); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	s.current = next
	s.schedulePersistLocked(ctx)
	return nil
}

// Flush cancels any pending debounce and persists immediately.
func (s *SettingsStore) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	return s.persistLocked(ctx)
}

// schedulePersistLocked arms the debounce timer. Callers hold s.mu.
func (s *SettingsStore) schedulePersistLocked(ctx context.Context) {
	if s.debounce <= 0 {
		if err := s.persistLocked(ctx); err != nil {
			s.logger.Error("persisting settings failed", "error", err)
		}
		return
	}

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.persistLocked(context.Background()); err != nil {
			s.logger.Error("persisting settings failed", "error", err)
		}
	})
}

// persistLocked writes the current settings. Callers hold s.mu.
func (s *SettingsStore) persistLocked(ctx context.Context) error {
	data, err := json.MarshalIndent(s.current, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	if err := s.kv.Set(ctx, settingsKey, data); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}
