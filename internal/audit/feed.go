package audit

import (
	"context"
	"sync"
)

// Feed fans persisted entries out to live subscribers (SSE clients).
type Feed struct {
	mu   sync.RWMutex
	subs map[int]chan Entry
	next int
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[int]chan Entry)}
}

// Subscribe registers a subscriber and returns a channel which will receive entries.
// The channel is closed when the provided context ends.
func (f *Feed) Subscribe(ctx context.Context) <-chan Entry {
	ch := make(chan Entry, 16)

	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = ch
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs, id)
		close(ch)
		f.mu.Unlock()
	}()

	return ch
}

// Publish delivers the entry to every subscriber that has room for it.
func (f *Feed) Publish(e Entry) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, ch := range f.subs {
		select {
		case ch <- e:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

// Subscribers reports the number of active subscribers.
func (f *Feed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}
