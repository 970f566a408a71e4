// Package events is the in-process bus carrying usage lifecycle events from
// the session tracker to the notification dispatchers. The bus is an injected
// value, not a global; publishing never blocks the publisher.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	UsageStarted Kind = "usage.started"
	UsageEnded   Kind = "usage.ended"
)

type UsageEvent struct {
	Kind       Kind
	ResourceID uuid.UUID
	StartTime  time.Time
	// EndTime is set only for UsageEnded.
	EndTime time.Time
}

type Bus struct {
	mu   sync.RWMutex
	subs []func(UsageEvent)
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for all usage events. Handlers run on their
// own goroutine per event and must tolerate concurrent invocations.
func (b *Bus) Subscribe(fn func(UsageEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, fn)
}

func (b *Bus) Publish(ev UsageEvent) {
	b.mu.RLock()
	subs := make([]func(UsageEvent), len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()
	for _, fn := range subs {
		go fn(ev)
	}
}
