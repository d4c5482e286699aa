package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/vampirenirmal/storyarc/internal/storage"
)

const (
	storyTypesKey   = "library/story_types.json"
	authorStylesKey = "library/author_styles.json"
)

var (
	ErrStoryTypeNotFound   = errors.New("story type not found")
	ErrAuthorStyleNotFound = errors.New("author style not found")
)

// Library holds every story type and author style, keyed by ID. All
// reads are served from memory; mutations write through to the
// backing store so edits survive restarts.
type Library struct {
	kv       storage.Store
	logger   *slog.Logger
	validate *validator.Validate

	mu         sync.RWMutex
	storyTypes map[string]StoryType
	styles     map[string]AuthorStyle
	index      *index
}

type LibraryOption func(*Library)

// WithLibraryLogger sets a custom logger.
func WithLibraryLogger(logger *slog.Logger) LibraryOption {
	return func(l *Library) {
		l.logger = logger.With("component", "catalog")
	}
}

func NewLibrary(kv storage.Store, opts ...LibraryOption) *Library {
	l := &Library{
		kv:         kv,
		logger:     slog.Default().With("component", "catalog"),
		validate:   validator.New(),
		storyTypes: make(map[string]StoryType),
		styles:     make(map[string]AuthorStyle),
		index:      newIndex(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads both collections from the backing store. An empty store
// is seeded with the built-in catalog so a first run has something to
// select from.
func (l *Library) Load(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	storyTypes, seeded, err := loadCollection(ctx, l.kv, storyTypesKey, builtinStoryTypes)
	if err != nil {
		return fmt.Errorf("loading story types: %w", err)
	}
	styles, styleSeeded, err := loadCollection(ctx, l.kv, authorStylesKey, builtinAuthorStyles)
	if err != nil {
		return fmt.Errorf("loading author styles: %w", err)
	}

	l.storyTypes = make(map[string]StoryType, len(storyTypes))
	for _, st := range storyTypes {
		l.storyTypes[st.ID] = st
	}
	l.styles = make(map[string]AuthorStyle, len(styles))
	for _, as := range styles {
		l.styles[as.ID] = as
	}
	l.rebuildIndex()

	if seeded || styleSeeded {
		if err := l.persistLocked(ctx); err != nil {
			l.logger.Warn("persisting seeded catalog failed", "error", err)
		}
		l.logger.Info("seeded built-in catalog",
			"story_types", len(l.storyTypes),
			"author_styles", len(l.styles))
	}

	return nil
}

// Reload re-reads both collections without seeding or writing. It is
// the safe entry point for file-watcher refreshes: a reload never
// produces a write, so watching cannot loop.
func (l *Library) Reload(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := l.kv.Get(ctx, storyTypesKey)
	if err == nil {
		var storyTypes []StoryType
		if err := json.Unmarshal(data, &storyTypes); err != nil {
			return fmt.Errorf("parsing story types: %w", err)
		}
		l.storyTypes = make(map[string]StoryType, len(storyTypes))
		for _, st := range storyTypes {
			l.storyTypes[st.ID] = st
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("loading story types: %w", err)
	}

	data, err = l.kv.Get(ctx, authorStylesKey)
	if err == nil {
		var styles []AuthorStyle
		if err := json.Unmarshal(data, &styles); err != nil {
			return fmt.Errorf("parsing author styles: %w", err)
		}
		l.styles = make(map[string]AuthorStyle, len(styles))
		for _, as := range styles {
			l.styles[as.ID] = as
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("loading author styles: %w", err)
	}

	l.rebuildIndex()
	return nil
}

func loadCollection[T any](ctx context.Context, kv storage.Store, key string, builtin func() []T) ([]T, bool, error) {
	data, err := kv.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return builtin(), true, nil
	}
	if err != nil {
		return nil, false, err
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, false, fmt.Errorf("parsing %s: %w", key, err)
	}
	return items, false, nil
}

// StoryType looks up a story type by ID.
func (l *Library) StoryType(id string) (StoryType, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	st, ok := l.storyTypes[id]
	return st, ok
}

// AuthorStyle looks up an author style by ID.
func (l *Library) AuthorStyle(id string) (AuthorStyle, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	as, ok := l.styles[id]
	return as, ok
}

// StoryTypes returns every story type, sorted by name.
func (l *Library) StoryTypes() []StoryType {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]StoryType, 0, len(l.storyTypes))
	for _, st := range l.storyTypes {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AuthorStyles returns every author style, sorted by name.
func (l *Library) AuthorStyles() []AuthorStyle {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]AuthorStyle, 0, len(l.styles))
	for _, as := range l.styles {
		out = append(out, as)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// PutStoryType validates and upserts a story type.
func (l *Library) PutStoryType(ctx context.Context, st StoryType) error {
	if err := l.validate.Struct(st); err != nil {
		return fmt.Errorf("invalid story type: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.storyTypes[st.ID] = st
	l.rebuildIndex()
	return l.persistLocked(ctx)
}

// DeleteStoryType removes a story type by ID.
func (l *Library) DeleteStoryType(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.storyTypes[id]; !ok {
		return fmt.Errorf("%s: %w", id, ErrStoryTypeNotFound)
	}
	delete(l.storyTypes, id)
	l.rebuildIndex()
	return l.persistLocked(ctx)
}

// PutAuthorStyle validates and upserts an author style.
func (l *Library) PutAuthorStyle(ctx context.Context, as AuthorStyle) error {
	if err := l.validate.Struct(as); err != nil {
		return fmt.Errorf("invalid author style: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.styles[as.ID] = as
	l.rebuildIndex()
	return l.persistLocked(ctx)
}

// DeleteAuthorStyle removes an author style by ID.
func (l *Library) DeleteAuthorStyle(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.styles[id]; !ok {
		return fmt.Errorf("%s: %w", id, ErrAuthorStyleNotFound)
	}
	delete(l.styles, id)
	l.rebuildIndex()
	return l.persistLocked(ctx)
}

// persistLocked writes both collections. Callers hold l.mu.
func (l *Library) persistLocked(ctx context.Context) error {
	storyTypes := make([]StoryType, 0, len(l.storyTypes))
	for _, st := range l.storyTypes {
		storyTypes = append(storyTypes, st)
	}
	sort.Slice(storyTypes, func(i, j int) bool { return storyTypes[i].ID < storyTypes[j].ID })

	styles := make([]AuthorStyle, 0, len(l.styles))
	for _, as := range l.styles {
		styles = append(styles, as)
	}
	sort.Slice(styles, func(i, j int) bool { return styles[i].ID < styles[j].ID })

	data, err := json.MarshalIndent(storyTypes, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling story types: %w", err)
	}
	if err := l.kv.Set(ctx, storyTypesKey, data); err != nil {
		return fmt.Errorf("saving story types: %w", err)
	}

	data, err = json.MarshalIndent(styles, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling author styles: %w", err)
	}
	if err := l.kv.Set(ctx, authorStylesKey, data); err != nil {
		return fmt.Errorf("saving author styles: %w", err)
	}

	return nil
}

func (l *Library) rebuildIndex() {
	l.index = newIndex()
	for _, st := range l.storyTypes {
		l.index.add(entryStoryType, st.ID, st.Name, st.Categories, nil)
	}
	for _, as := range l.styles {
		l.index.add(entryAuthorStyle, as.ID, as.Name, as.Categories, as.Keywords)
	}
}
