package feed

import (
	"context"
	"sync"
)

// MemoryFeed is an in-process Feed for single-instance deployments.
// Handlers run synchronously on the publishing goroutine and must not block.
type MemoryFeed struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[string]map[int]func(Event)
}

// NewMemoryFeed creates an empty in-process feed.
func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{handlers: make(map[string]map[int]func(Event))}
}

// Publish delivers ev to the current subscribers of its session.
func (f *MemoryFeed) Publish(_ context.Context, ev Event) error {
	f.mu.RLock()
	hs := make([]func(Event), 0, len(f.handlers[ev.SessionID]))
	for _, h := range f.handlers[ev.SessionID] {
		hs = append(hs, h)
	}
	f.mu.RUnlock()

	for _, h := range hs {
		h(ev)
	}
	return nil
}

// Subscribe registers handler for a session's events.
func (f *MemoryFeed) Subscribe(sessionID string, handler func(Event)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	if f.handlers[sessionID] == nil {
		f.handlers[sessionID] = make(map[int]func(Event))
	}
	f.handlers[sessionID][id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.handlers[sessionID], id)
			if len(f.handlers[sessionID]) == 0 {
				delete(f.handlers, sessionID)
			}
		})
	}, nil
}

// Subscribers returns the number of handlers registered for a session.
func (f *MemoryFeed) Subscribers(sessionID string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.handlers[sessionID])
}
