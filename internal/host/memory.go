package host

import (
	"context"
	"sync"
)

// Injection is a stored injection slot's contents.
type Injection struct {
	Text     string
	Position Position
	Depth    int
	Role     Role
}

// MemoryHost is an in-process host implementation. The simulator and
// the engine tests run against it; a real frontend would adapt its
// own chat surface to the same interfaces.
type MemoryHost struct {
	mu            sync.RWMutex
	injections    map[string]Injection
	conversations map[string][]Message
	notices       []string
}

func NewMemoryHost() *MemoryHost {
	return &MemoryHost{
		injections:    make(map[string]Injection),
		conversations: make(map[string][]Message),
	}
}

func (h *MemoryHost) SetInjection(key, text string, position Position, depth int, role Role) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if text == "" || position == PositionNone {
		delete(h.injections, key)
		return
	}
	h.injections[key] = Injection{Text: text, Position: position, Depth: depth, Role: role}
}

// Injection returns the current contents of an injection slot.
func (h *MemoryHost) Injection(key string) (Injection, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	inj, ok := h.injections[key]
	return inj, ok
}

func (h *MemoryHost) Append(ctx context.Context, conversationID string, msg Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	msg.ConversationID = conversationID
	h.conversations[conversationID] = append(h.conversations[conversationID], msg)
	return nil
}

func (h *MemoryHost) History(conversationID string) []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	msgs := h.conversations[conversationID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// Notice records a user-visible notice. It satisfies the notice
// callback shape used by the state store.
func (h *MemoryHost) Notice(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notices = append(h.notices, text)
}

// Notices returns every notice recorded so far.
func (h *MemoryHost) Notices() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, len(h.notices))
	copy(out, h.notices)
	return out
}
