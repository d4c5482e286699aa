package textgen

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Mock provides canned prose for testing and for running without
// credentials. Responses are keyed by substring match, tried against
// the system prompt before the prompt body so the instruction decides
// which canned text answers (prompts quote earlier output and would
// otherwise shadow later keys). Keys are checked in sorted order.
type Mock struct {
	mu        sync.Mutex
	responses map[string]string
	err       error
	requests  []Request
}

func NewMock() *Mock {
	return &Mock{
		responses: map[string]string{
			"epilogue": "**Epilogue**\n\nThe lanterns burned low over the harbor as the last of " +
				"the travelers turned for home. What they had carried between them was not " +
				"spoken of again, but it was not forgotten either; it showed in the way they " +
				"greeted strangers, and in the doors they no longer locked.",
			"summary": "**Story Arc Summary**\n\nA chance meeting pulled the narrator into a " +
				"search that grew from a missing letter into a missing person. Suspicion " +
				"settled on three households in turn before the truth surfaced in the oldest " +
				"of them, and the final confrontation traded accusation for confession. The " +
				"story closed with the household scattered and the narrator changed.",
		},
	}
}

// SetResponse installs or replaces the canned text for a key.
func (m *Mock) SetResponse(key, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[key] = text
}

// Fail makes every subsequent call return err. Pass nil to recover.
func (m *Mock) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Requests returns a copy of every request seen so far.
func (m *Mock) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *Mock) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)

	if m.err != nil {
		return "", m.err
	}

	keys := make([]string, 0, len(m.responses))
	for k := range m.responses {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, hay := range []string{req.SystemPrompt, req.Prompt} {
		hay = strings.ToLower(hay)
		for _, k := range keys {
			if strings.Contains(hay, k) {
				return m.responses[k], nil
			}
		}
	}

	return "The story continues.", nil
}
