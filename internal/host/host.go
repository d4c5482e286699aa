// Package host defines the narrow surface the chat frontend must
// provide: prompt injection, message appending and history access.
// The engine depends only on these interfaces, never on a concrete
// frontend.
package host

import (
	"context"
	"time"
)

// Message is one chat entry as the host exposes it. Synthetic
// narrator messages produced by the arc engine carry IsUser=false and
// a DisplayName of the narrator persona.
type Message struct {
	ID             string
	ConversationID string
	IsUser         bool
	IsSystem       bool
	Text           string
	DisplayName    string
	Timestamp      time.Time
}

// Position says where injected text lands in the outgoing request.
type Position string

const (
	PositionInPrompt     Position = "in_prompt"
	PositionInChat       Position = "in_chat"
	PositionBeforePrompt Position = "before_prompt"
	PositionNone         Position = "none"
)

// Role is the chat role injected text is attributed to.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// InjectionSink receives composed arc text keyed by a stable slot
// name. Setting empty text clears the slot.
type InjectionSink interface {
	SetInjection(key, text string, position Position, depth int, role Role)
}

// MessageAppender adds a synthetic message to a conversation's
// transcript.
type MessageAppender interface {
	Append(ctx context.Context, conversationID string, msg Message) error
}

// HistoryProvider reads a conversation's transcript, oldest first.
type HistoryProvider interface {
	History(conversationID string) []Message
}
