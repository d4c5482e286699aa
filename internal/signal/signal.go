// Package signal carries chat lifecycle notifications from the host
// into the engine. Delivery is synchronous and in subscription order,
// so a handler observes every effect of the handlers registered before
// it, and a publish returns only after all handlers have run.
package signal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind categorizes a signal.
type Kind string

const (
	// GenerationStarting fires before the host asks the model for a
	// reply. The reason distinguishes normal turns from regenerations.
	GenerationStarting Kind = "generation.starting"

	// MessageReceived fires after a model reply lands in the chat.
	MessageReceived Kind = "message.received"

	// MessageSwiped fires when the user asks for an alternative take
	// on the latest reply.
	MessageSwiped Kind = "message.swiped"

	// ConversationChanged fires when the host switches to another
	// conversation, including the initial load.
	ConversationChanged Kind = "conversation.changed"
)

// Generation reasons carried on GenerationStarting.
const (
	ReasonNormal     = "normal"
	ReasonRegenerate = "regenerate"
	ReasonSwipe      = "swipe"
)

// Signal describes one chat lifecycle moment.
type Signal struct {
	ID             string    `json:"id"`
	Kind           Kind      `json:"kind"`
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id,omitempty"`
	IsUser         bool      `json:"is_user,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Handler processes one signal. A non-nil error is logged by the bus
// and does not stop delivery to later handlers.
type Handler func(ctx context.Context, sig Signal) error

type subscription struct {
	id      string
	kind    Kind
	handler Handler
}

// Bus fans signals out to subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   []*subscription
	logger *slog.Logger
}

type BusOption func(*Bus)

func WithBusLogger(logger *slog.Logger) BusOption {
	return func(b *Bus) {
		b.logger = logger
	}
}

func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		logger: slog.Default().With("component", "signal_bus"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a handler for one signal kind. The returned
// function removes the subscription.
func (b *Bus) Subscribe(kind Kind, handler Handler) (func(), error) {
	if kind == "" {
		return nil, fmt.Errorf("kind cannot be empty")
	}
	return b.add(kind, handler)
}

// SubscribeAll registers a handler for every signal kind.
func (b *Bus) SubscribeAll(handler Handler) (func(), error) {
	return b.add("", handler)
}

func (b *Bus) add(kind Kind, handler Handler) (func(), error) {
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}

	sub := &subscription{
		id:      uuid.NewString(),
		kind:    kind,
		handler: handler,
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	b.logger.Debug("signal subscription created",
		"subscription_id", sub.id,
		"kind", string(kind))

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == sub.id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
	return cancel, nil
}

// Publish delivers the signal to matching handlers on the caller's
// goroutine, in subscription order. Missing ID and Timestamp fields
// are filled in before delivery.
func (b *Bus) Publish(ctx context.Context, sig Signal) {
	if sig.ID == "" {
		sig.ID = uuid.NewString()
	}
	if sig.Timestamp.IsZero() {
		sig.Timestamp = time.Now()
	}

	b.mu.RLock()
	matching := make([]*subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.kind == "" || sub.kind == sig.Kind {
			matching = append(matching, sub)
		}
	}
	b.mu.RUnlock()

	b.logger.Debug("publishing signal",
		"signal_id", sig.ID,
		"kind", string(sig.Kind),
		"conversation_id", sig.ConversationID,
		"handlers", len(matching))

	for _, sub := range matching {
		if err := b.deliver(ctx, sig, sub); err != nil {
			b.logger.Error("signal handler failed",
				"signal_id", sig.ID,
				"subscription_id", sub.id,
				"kind", string(sig.Kind),
				"error", err)
		}
	}
}

// deliver runs one handler with panic recovery, so a broken handler
// cannot take down the publisher or starve later subscribers.
func (b *Bus) deliver(ctx context.Context, sig Signal, sub *subscription) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return sub.handler(ctx, sig)
}
