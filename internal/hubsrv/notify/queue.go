// Package notify delivers usage-event notifications to external MQTT brokers
// and webhook endpoints. Each transport has its own in-process queue with
// bounded retries: at-least-once until the attempt budget is spent, then the
// item is dropped with an error log. Queue state is process memory only and
// is lost on restart.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultTickInterval is used when a queue is built without an explicit
// interval.
const DefaultTickInterval = 5 * time.Second

// Sender performs one delivery attempt for an item.
type Sender interface {
	Send(ctx context.Context) error
	// Describe identifies the target in logs.
	Describe() string
}

// Item is one pending delivery. MaxAttempts zero means no retries: the item
// is dropped after its first failed attempt.
type Item struct {
	ResourceID  uuid.UUID
	Sender      Sender
	Attempts    int
	MaxAttempts int
	RetryDelay  time.Duration
	LastAttempt time.Time
}

// Queue is a timer-driven delivery queue keyed by resource. Tick is the only
// mechanism that attempts delivery; Run drives Tick on a fixed interval with
// ticks guaranteed not to overlap.
type Queue struct {
	name     string
	interval time.Duration

	mu    sync.Mutex
	items map[uuid.UUID][]*Item
}

func NewQueue(name string, interval time.Duration) *Queue {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Queue{
		name:     name,
		interval: interval,
		items:    make(map[uuid.UUID][]*Item),
	}
}

func (q *Queue) Enqueue(item *Item) {
	if item.RetryDelay <= 0 {
		item.RetryDelay = DefaultTickInterval
	}
	q.mu.Lock()
	q.items[item.ResourceID] = append(q.items[item.ResourceID], item)
	q.mu.Unlock()
}

// Len returns the number of pending items across all resources.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, items := range q.items {
		n += len(items)
	}
	return n
}

// Tick attempts every due item once. Items are taken off the queue for the
// duration of their attempt, so a concurrent Enqueue never collides with an
// in-flight delivery of the same item.
func (q *Queue) Tick(ctx context.Context, now time.Time) {
	due := q.takeDue(now)
	for _, item := range due {
		err := item.Sender.Send(ctx)
		item.Attempts++
		item.LastAttempt = now
		if err == nil {
			continue
		}
		if item.Attempts < item.MaxAttempts {
			log.Ctx(ctx).Warn().
				Str("queue", q.name).
				Str("target", item.Sender.Describe()).
				Int("attempts", item.Attempts).
				Err(err).
				Msg("delivery failed, will retry")
			q.Enqueue(item)
			continue
		}
		log.Ctx(ctx).Error().
			Str("queue", q.name).
			Str("target", item.Sender.Describe()).
			Int("attempts", item.Attempts).
			Err(err).
			Msg("delivery failed, dropping item")
	}
}

// takeDue removes and returns all items whose retry delay has elapsed, and
// prunes keys left empty.
func (q *Queue) takeDue(now time.Time) []*Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	var due []*Item
	for key, items := range q.items {
		var remaining []*Item
		for _, item := range items {
			if !item.LastAttempt.IsZero() && now.Sub(item.LastAttempt) < item.RetryDelay {
				remaining = append(remaining, item)
				continue
			}
			due = append(due, item)
		}
		if len(remaining) == 0 {
			delete(q.items, key)
		} else {
			q.items[key] = remaining
		}
	}
	return due
}

// Run drives Tick until the context is cancelled. Ticks are sequential by
// construction: a slow tick delays the next one rather than overlapping it.
func (q *Queue) Run(ctx context.Context) {
	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.Tick(ctx, time.Now())
		}
	}
}
