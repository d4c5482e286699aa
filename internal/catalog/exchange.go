package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	schemagen "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/sync/errgroup"
)

// BundleVersion is the current interchange format version.
const BundleVersion = 1

// Bundle is the interchange document for sharing catalog entries
// between installations.
type Bundle struct {
	Version      int           `json:"version" jsonschema:"required"`
	StoryTypes   []StoryType   `json:"story_types,omitempty"`
	AuthorStyles []AuthorStyle `json:"author_styles,omitempty"`
}

// ImportStats reports what an import changed.
type ImportStats struct {
	Added   int
	Updated int
}

var (
	schemaOnce   sync.Once
	bundleSchema *jsonschema.Schema
	schemaErr    error
)

// compiledBundleSchema reflects the Bundle type into a JSON schema and
// compiles it once. Imports are validated against it before any entry
// touches the library.
func compiledBundleSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		reflector := schemagen.Reflector{
			AllowAdditionalProperties:  false,
			DoNotReference:             true,
			RequiredFromJSONSchemaTags: true,
		}
		raw, err := json.Marshal(reflector.Reflect(Bundle{}))
		if err != nil {
			schemaErr = fmt.Errorf("marshaling bundle schema: %w", err)
			return
		}

		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("bundle.schema.json", bytes.NewReader(raw)); err != nil {
			schemaErr = fmt.Errorf("adding bundle schema: %w", err)
			return
		}
		bundleSchema, schemaErr = compiler.Compile("bundle.schema.json")
	})
	return bundleSchema, schemaErr
}

// Export packages the whole library into a bundle document.
func (l *Library) Export(ctx context.Context) ([]byte, error) {
	bundle := Bundle{
		Version:      BundleVersion,
		StoryTypes:   l.StoryTypes(),
		AuthorStyles: l.AuthorStyles(),
	}

	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling bundle: %w", err)
	}
	return data, nil
}

// Import merges a bundle into the library. Entries are matched by ID:
// existing entries are replaced, unknown entries added. Nothing is
// written unless the document passes schema validation first.
func (l *Library) Import(ctx context.Context, data []byte) (ImportStats, error) {
	schema, err := compiledBundleSchema()
	if err != nil {
		return ImportStats{}, err
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return ImportStats{}, fmt.Errorf("parsing bundle: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return ImportStats{}, fmt.Errorf("bundle failed schema validation: %w", err)
	}

	var bundle Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return ImportStats{}, fmt.Errorf("parsing bundle: %w", err)
	}
	if bundle.Version > BundleVersion {
		return ImportStats{}, fmt.Errorf("bundle version %d is newer than supported version %d", bundle.Version, BundleVersion)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var stats ImportStats
	for _, st := range bundle.StoryTypes {
		if _, ok := l.storyTypes[st.ID]; ok {
			stats.Updated++
		} else {
			stats.Added++
		}
		l.storyTypes[st.ID] = st
	}
	for _, as := range bundle.AuthorStyles {
		if _, ok := l.styles[as.ID]; ok {
			stats.Updated++
		} else {
			stats.Added++
		}
		l.styles[as.ID] = as
	}
	l.rebuildIndex()

	if err := l.persistLocked(ctx); err != nil {
		return stats, err
	}

	l.logger.Info("imported catalog bundle",
		"added", stats.Added,
		"updated", stats.Updated)
	return stats, nil
}

// ImportDir imports every .json bundle in a directory. Files are read
// concurrently, then merged one at a time so later files win ties.
func (l *Library) ImportDir(ctx context.Context, dir string) (ImportStats, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ImportStats{}, fmt.Errorf("reading bundle directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}

	contents := make([][]byte, len(paths))
	var g errgroup.Group
	g.SetLimit(4)
	for i, path := range paths {
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			contents[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ImportStats{}, err
	}

	var total ImportStats
	for i, data := range contents {
		stats, err := l.Import(ctx, data)
		if err != nil {
			return total, fmt.Errorf("importing %s: %w", paths[i], err)
		}
		total.Added += stats.Added
		total.Updated += stats.Updated
	}
	return total, nil
}
