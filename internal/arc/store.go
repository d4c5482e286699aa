package arc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vampirenirmal/storyarc/internal/storage"
)

// stateRecord is the per-conversation record name holding arc state.
const stateRecord = "arc_state.json"

const persistFailedNotice = "Story arc progress could not be saved; it may be lost on restart."

// DefaultsFunc supplies seed values for a conversation's first access.
// It runs at most once per conversation; later changes to its source
// never rewrite an already-seeded record.
type DefaultsFunc func() Defaults

// Store keeps one State per conversation, created lazily and persisted
// through the backing key-value store. The in-memory copy is the
// source of truth: persistence failures are logged and surfaced as a
// notice, never propagated to callers.
type Store struct {
	kv       storage.Store
	defaults DefaultsFunc
	logger   *slog.Logger
	notice   func(text string)

	mu       sync.Mutex
	cache    *lru.Cache[string, State]
	watchers []func(conversationID string, s State)
}

type StoreOption func(*Store) error

// WithDefaults sets the seed source for first-access state creation.
func WithDefaults(fn DefaultsFunc) StoreOption {
	return func(s *Store) error {
		if fn == nil {
			return errors.New("defaults func cannot be nil")
		}
		s.defaults = fn
		return nil
	}
}

// WithStoreLogger sets a custom logger.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) error {
		s.logger = logger.With("component", "arc")
		return nil
	}
}

// WithNotice sets the callback for user-visible persistence notices.
func WithNotice(fn func(text string)) StoreOption {
	return func(s *Store) error {
		s.notice = fn
		return nil
	}
}

// WithCacheSize bounds the number of conversations kept in memory.
func WithCacheSize(n int) StoreOption {
	return func(s *Store) error {
		cache, err := lru.New[string, State](n)
		if err != nil {
			return fmt.Errorf("creating state cache: %w", err)
		}
		s.cache = cache
		return nil
	}
}

func NewStore(kv storage.Store, opts ...StoreOption) (*Store, error) {
	if kv == nil {
		return nil, errors.New("storage cannot be nil")
	}

	s := &Store{
		kv:       kv,
		defaults: func() Defaults { return Defaults{ArcLength: DefaultArcLength} },
		logger:   slog.Default().With("component", "arc"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.cache == nil {
		cache, err := lru.New[string, State](256)
		if err != nil {
			return nil, fmt.Errorf("creating state cache: %w", err)
		}
		s.cache = cache
	}

	return s, nil
}

// Get returns the conversation's arc state, seeding a fresh record
// from the defaults source on first access. It never fails: a broken
// or unreadable record is replaced by a seeded default.
func (s *Store) Get(ctx context.Context, conversationID string) State {
	key := storage.ConversationKey(conversationID, stateRecord)

	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.cache.Get(key); ok {
		return st
	}

	data, err := s.kv.Get(ctx, key)
	if err == nil {
		var st State
		if jsonErr := json.Unmarshal(data, &st); jsonErr == nil {
			s.cache.Add(key, st)
			return st
		}
		s.logger.Warn("corrupt arc state record, reseeding",
			"conversation_id", conversationID)
	} else if !errors.Is(err, storage.ErrNotFound) {
		s.logger.Error("loading arc state failed",
			"conversation_id", conversationID,
			"error", err)
		s.userNotice(persistFailedNotice)
	}

	st := NewState(s.defaults())
	s.persist(ctx, conversationID, key, st)
	s.cache.Add(key, st)
	return st
}

// Put stores the conversation's arc state and notifies watchers. The
// write-through to the backing store is best effort; the in-memory
// copy stays authoritative when it fails.
func (s *Store) Put(ctx context.Context, conversationID string, st State) {
	key := storage.ConversationKey(conversationID, stateRecord)

	s.mu.Lock()
	s.persist(ctx, conversationID, key, st)
	s.cache.Add(key, st)
	watchers := make([]func(string, State), len(s.watchers))
	copy(watchers, s.watchers)
	s.mu.Unlock()

	for _, fn := range watchers {
		fn(conversationID, st)
	}
}

// Reset rewinds the conversation's arc and returns the new state.
func (s *Store) Reset(ctx context.Context, conversationID string) State {
	st := s.Get(ctx, conversationID)
	st.Reset()
	s.Put(ctx, conversationID, st)
	return st
}

// OnChange registers fn to run after every Put. Callbacks run on the
// caller's goroutine, after the state has been stored.
func (s *Store) OnChange(fn func(conversationID string, st State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}

// persist is called with the mutex held.
func (s *Store) persist(ctx context.Context, conversationID, key string, st State) {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		s.logger.Error("marshaling arc state failed",
			"conversation_id", conversationID,
			"error", err)
		s.userNotice(persistFailedNotice)
		return
	}

	if err := s.kv.Set(ctx, key, data); err != nil {
		s.logger.Error("persisting arc state failed",
			"conversation_id", conversationID,
			"error", err)
		s.userNotice(persistFailedNotice)
	}
}

func (s *Store) userNotice(text string) {
	if s.notice != nil {
		s.notice(text)
	}
}
