package catalog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vampirenirmal/storyarc/internal/storage"
)

func TestWatcherReloadsOnFileChange(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	lib := NewLibrary(storage.NewFileStore(dir))
	require.NoError(t, lib.Load(ctx))

	reloaded := make(chan struct{}, 1)
	w, err := NewWatcher(lib, filepath.Join(dir, "library"),
		WithDebounce(10*time.Millisecond),
		WithOnReload(func() {
			select {
			case reloaded <- struct{}{}:
			default:
			}
		}))
	require.NoError(t, err)
	defer w.Close()

	// edit the story types file behind the library's back
	replacement := []StoryType{{
		ID:               "on-disk",
		Name:             "On Disk",
		StoryPrompt:      "A story edited straight into the file.",
		ProgressTemplate: "Step {currentStep} of {arcLength}.",
	}}
	data, err := json.Marshal(replacement)
	require.NoError(t, err)
	path := filepath.Join(dir, "library", filepath.Base(storyTypesKey))
	require.NoError(t, os.WriteFile(path, data, 0644))

	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher never reloaded the library")
	}

	_, ok := lib.StoryType("on-disk")
	assert.True(t, ok, "new on-disk entry must be visible")
	_, ok = lib.StoryType("heros-journey")
	assert.False(t, ok, "a reload replaces the collection, not merges it")

	// the untouched styles file keeps its seeded entries
	_, ok = lib.AuthorStyle("noir")
	assert.True(t, ok)
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	lib := NewLibrary(storage.NewFileStore(dir))
	require.NoError(t, lib.Load(ctx))

	var reloads atomic.Int32
	w, err := NewWatcher(lib, filepath.Join(dir, "library"),
		WithDebounce(10*time.Millisecond),
		WithOnReload(func() { reloads.Add(1) }))
	require.NoError(t, err)
	defer w.Close()

	path := filepath.Join(dir, "library", "notes.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"unrelated": true}`), 0644))

	time.Sleep(150 * time.Millisecond)
	assert.Zero(t, reloads.Load())
}
