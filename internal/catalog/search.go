package catalog

import (
	"sort"
	"strings"
)

// EntryKind distinguishes search hits across the two collections.
type EntryKind string

const (
	entryStoryType   EntryKind = "story_type"
	entryAuthorStyle EntryKind = "author_style"
)

// Hit is a single search result, scored by how many query words
// matched the entry's name, categories or keywords.
type Hit struct {
	Kind  EntryKind
	ID    string
	Name  string
	Score int
}

type indexDoc struct {
	kind   EntryKind
	id     string
	name   string
	tokens map[string]struct{}
}

// index is a small keyword index over both collections. Exact token
// matches score double, prefix matches single, so "myst" still finds
// "mystery" but ranks below an exact hit.
type index struct {
	docs []indexDoc
}

func newIndex() *index {
	return &index{}
}

func (ix *index) add(kind EntryKind, id, name string, categories, keywords []string) {
	tokens := make(map[string]struct{})
	for _, tok := range tokenize(name) {
		tokens[tok] = struct{}{}
	}
	for _, tok := range tokenize(id) {
		tokens[tok] = struct{}{}
	}
	for _, cat := range categories {
		for _, tok := range tokenize(cat) {
			tokens[tok] = struct{}{}
		}
	}
	for _, kw := range keywords {
		for _, tok := range tokenize(kw) {
			tokens[tok] = struct{}{}
		}
	}

	ix.docs = append(ix.docs, indexDoc{kind: kind, id: id, name: name, tokens: tokens})
}

func (ix *index) search(query string) []Hit {
	words := tokenize(query)
	if len(words) == 0 {
		return nil
	}

	var hits []Hit
	for _, doc := range ix.docs {
		score := 0
		for _, word := range words {
			if _, ok := doc.tokens[word]; ok {
				score += 2
				continue
			}
			for tok := range doc.tokens {
				if strings.HasPrefix(tok, word) {
					score++
					break
				}
			}
		}
		if score > 0 {
			hits = append(hits, Hit{Kind: doc.kind, ID: doc.id, Name: doc.name, Score: score})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Name < hits[j].Name
	})
	return hits
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	var out []string
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Search finds story types and author styles matching the query.
func (l *Library) Search(query string) []Hit {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.index.search(query)
}
