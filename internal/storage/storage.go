package storage

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by Get when no value exists for a key.
var ErrNotFound = errors.New("key not found")

// Store is an opaque key-value blob store. Keys are slash-separated
// logical paths; values are raw bytes owned by the caller.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// Watchable is implemented by stores that report successful writes.
// The callback fires after the write has landed, never before.
type Watchable interface {
	Watch(fn func(key string)) (cancel func())
}

// watcherSet fans a write notification out to registered callbacks.
type watcherSet struct {
	mu   sync.RWMutex
	next int
	fns  map[int]func(string)
}

func (w *watcherSet) add(fn func(string)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fns == nil {
		w.fns = make(map[int]func(string))
	}
	id := w.next
	w.next++
	w.fns[id] = fn

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.fns, id)
	}
}

func (w *watcherSet) notify(key string) {
	w.mu.RLock()
	fns := make([]func(string), 0, len(w.fns))
	for _, fn := range w.fns {
		fns = append(fns, fn)
	}
	w.mu.RUnlock()

	for _, fn := range fns {
		fn(key)
	}
}
