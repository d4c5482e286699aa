package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreTraversal(t *testing.T) {
	tempDir := t.TempDir()

	// A file outside the base directory that must stay unreachable.
	outsideFile := filepath.Join(filepath.Dir(tempDir), "outside.txt")
	require.NoError(t, os.WriteFile(outsideFile, []byte("secret"), 0644))
	defer os.Remove(outsideFile)

	s := NewFileStore(tempDir)
	ctx := context.Background()

	t.Run("set prevents directory traversal", func(t *testing.T) {
		tests := []struct {
			name string
			key  string
			want bool // true if should succeed
		}{
			{"normal key", "test.json", true},
			{"nested key", "conversations/abc/arc_state.json", true},
			{"parent traversal", "../test.json", false},
			{"complex traversal", "subdir/../../test.json", false},
			{"absolute path", "/etc/passwd", false},
			{"hidden traversal", "subdir/../../../etc/passwd", false},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := s.Set(ctx, tt.key, []byte("test"))
				if tt.want {
					assert.NoError(t, err)
				} else {
					assert.Error(t, err)
				}
			})
		}
	})

	t.Run("get prevents directory traversal", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "valid.json", []byte("valid")))

		tests := []struct {
			name string
			key  string
			want bool
		}{
			{"normal key", "valid.json", true},
			{"parent traversal", "../outside.txt", false},
			{"absolute path", outsideFile, false},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := s.Get(ctx, tt.key)
				if tt.want {
					assert.NoError(t, err)
				} else {
					assert.Error(t, err)
				}
			})
		}
	})

	t.Run("list rejects traversal prefixes", func(t *testing.T) {
		_, err := s.List(ctx, "../")
		assert.Error(t, err)
	})
}

func TestFileStoreSettingsMode(t *testing.T) {
	tempDir := t.TempDir()
	s := NewFileStore(tempDir)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "settings/global.json", []byte(`{}`)))

	info, err := os.Stat(filepath.Join(tempDir, "settings", "global.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConversationKey(t *testing.T) {
	tests := []struct {
		name           string
		conversationID string
		record         string
		want           string
	}{
		{"plain id", "abc123", "arc_state.json", "conversations/abc123/arc_state.json"},
		{"spaces become hyphens", "My Chat", "arc_state.json", "conversations/my-chat/arc_state.json"},
		{"path characters stripped", "../../etc", "arc_state.json", "conversations/etc/arc_state.json"},
		{"empty id gets default", "!!!", "arc_state.json", "conversations/conversation/arc_state.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConversationKey(tt.conversationID, tt.record))
		})
	}
}
