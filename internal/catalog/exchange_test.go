package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vampirenirmal/storyarc/internal/storage"
)

func TestExportImportRoundtrip(t *testing.T) {
	ctx := context.Background()

	source := NewLibrary(storage.NewMemStore())
	require.NoError(t, source.Load(ctx))

	data, err := source.Export(ctx)
	require.NoError(t, err)

	target := NewLibrary(storage.NewMemStore())
	stats, err := target.Import(ctx, data)
	require.NoError(t, err)

	assert.Equal(t, len(source.StoryTypes())+len(source.AuthorStyles()), stats.Added)
	assert.Zero(t, stats.Updated)

	st, ok := target.StoryType("mystery")
	require.True(t, ok)
	want, _ := source.StoryType("mystery")
	assert.Equal(t, want, st)
}

func TestImportMergesByID(t *testing.T) {
	ctx := context.Background()
	lib := NewLibrary(storage.NewMemStore())
	require.NoError(t, lib.Load(ctx))

	bundle := `{
		"version": 1,
		"story_types": [
			{
				"id": "mystery",
				"name": "Rewritten Mystery",
				"story_prompt": "A new take on the whodunit.",
				"progress_template": "[{currentStep}/{arcLength}]",
				"phase_prompts": {}
			},
			{
				"id": "western",
				"name": "Frontier Western",
				"story_prompt": "A stranger rides into a town with one secret too many.",
				"progress_template": "[{currentStep}/{arcLength}]",
				"phase_prompts": {}
			}
		]
	}`

	stats, err := lib.Import(ctx, []byte(bundle))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Added)
	assert.Equal(t, 1, stats.Updated)

	st, ok := lib.StoryType("mystery")
	require.True(t, ok)
	assert.Equal(t, "Rewritten Mystery", st.Name)

	_, ok = lib.StoryType("western")
	assert.True(t, ok)
}

func TestImportRejectsBadBundles(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		data string
	}{
		{"not json", `{{{`},
		{"missing version", `{"story_types": []}`},
		{
			"story type without required fields",
			`{"version": 1, "story_types": [{"id": "x", "name": "X"}]}`,
		},
		{
			"unknown field",
			`{"version": 1, "bonus": true}`,
		},
		{
			"version from the future",
			`{"version": 99}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lib := NewLibrary(storage.NewMemStore())
			require.NoError(t, lib.Load(ctx))

			before := len(lib.StoryTypes())
			_, err := lib.Import(ctx, []byte(tt.data))
			assert.Error(t, err)
			assert.Len(t, lib.StoryTypes(), before, "a rejected bundle must change nothing")
		})
	}
}

func TestImportDir(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	bundleA := `{"version": 1, "story_types": [{"id": "a", "name": "A", "story_prompt": "p", "progress_template": "[{currentStep}]", "phase_prompts": {}}]}`
	bundleB := `{"version": 1, "author_styles": [{"id": "b", "name": "B", "author_prompt": "p"}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(bundleA), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte(bundleB), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	lib := NewLibrary(storage.NewMemStore())
	stats, err := lib.ImportDir(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Added)

	_, ok := lib.StoryType("a")
	assert.True(t, ok)
	_, ok = lib.AuthorStyle("b")
	assert.True(t, ok)

	_, err = lib.ImportDir(ctx, filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
