package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// fakeSender fails its first failures attempts, then succeeds.
type fakeSender struct {
	failures int
	calls    int
}

func (s *fakeSender) Send(ctx context.Context) error {
	s.calls++
	if s.calls <= s.failures {
		return errors.New("send failed")
	}
	return nil
}

func (s *fakeSender) Describe() string { return "fake" }

func TestQueueDeliversOnce(t *testing.T) {
	q := NewQueue("test", time.Second)
	sender := &fakeSender{}
	q.Enqueue(&Item{ResourceID: uuid.New(), Sender: sender, MaxAttempts: 3, RetryDelay: time.Second})

	q.Tick(context.Background(), time.Now())
	assert.Equal(t, 1, sender.calls)
	assert.Equal(t, 0, q.Len())

	// Nothing left to attempt.
	q.Tick(context.Background(), time.Now())
	assert.Equal(t, 1, sender.calls)
}

func TestQueueRetriesUntilSuccess(t *testing.T) {
	q := NewQueue("test", time.Second)
	sender := &fakeSender{failures: 2}
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	delay := 10 * time.Second
	q.Enqueue(&Item{ResourceID: uuid.New(), Sender: sender, MaxAttempts: 5, RetryDelay: delay})

	q.Tick(context.Background(), now)
	assert.Equal(t, 1, sender.calls)
	assert.Equal(t, 1, q.Len())

	// Not yet due.
	q.Tick(context.Background(), now.Add(delay/2))
	assert.Equal(t, 1, sender.calls)

	q.Tick(context.Background(), now.Add(delay))
	assert.Equal(t, 2, sender.calls)

	q.Tick(context.Background(), now.Add(2*delay))
	assert.Equal(t, 3, sender.calls)
	assert.Equal(t, 0, q.Len())
}

func TestQueueDropsAfterAttemptBudget(t *testing.T) {
	q := NewQueue("test", time.Second)
	sender := &fakeSender{failures: 100}
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	q.Enqueue(&Item{ResourceID: uuid.New(), Sender: sender, MaxAttempts: 3, RetryDelay: time.Second})

	for i := 0; i < 10; i++ {
		q.Tick(context.Background(), now.Add(time.Duration(i)*time.Minute))
	}
	assert.Equal(t, 3, sender.calls)
	assert.Equal(t, 0, q.Len())
}

func TestQueueNoRetriesWhenDisabled(t *testing.T) {
	q := NewQueue("test", time.Second)
	sender := &fakeSender{failures: 100}
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	// MaxAttempts zero: one attempt, then the item is dropped.
	q.Enqueue(&Item{ResourceID: uuid.New(), Sender: sender, MaxAttempts: 0, RetryDelay: time.Second})

	q.Tick(context.Background(), now)
	q.Tick(context.Background(), now.Add(time.Minute))
	assert.Equal(t, 1, sender.calls)
	assert.Equal(t, 0, q.Len())
}

func TestQueueKeepsPerResourceOrderIndependent(t *testing.T) {
	q := NewQueue("test", time.Second)
	a := &fakeSender{}
	b := &fakeSender{failures: 1}
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	q.Enqueue(&Item{ResourceID: uuid.New(), Sender: a, MaxAttempts: 3, RetryDelay: time.Second})
	q.Enqueue(&Item{ResourceID: uuid.New(), Sender: b, MaxAttempts: 3, RetryDelay: time.Second})

	q.Tick(context.Background(), now)
	// a delivered, b pending retry.
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, q.Len())

	q.Tick(context.Background(), now.Add(2*time.Second))
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 2, b.calls)
	assert.Equal(t, 0, q.Len())
}

func TestEnqueueDefaultsRetryDelay(t *testing.T) {
	q := NewQueue("test", time.Second)
	item := &Item{ResourceID: uuid.New(), Sender: &fakeSender{}}
	q.Enqueue(item)
	assert.Equal(t, DefaultTickInterval, item.RetryDelay)
}

func TestRetryBudget(t *testing.T) {
	maxAttempts, delay := retryBudget(false, 5, 30)
	assert.Equal(t, 0, maxAttempts)
	assert.Equal(t, 30*time.Second, delay)

	maxAttempts, delay = retryBudget(true, 5, 0)
	assert.Equal(t, 5, maxAttempts)
	assert.Equal(t, DefaultTickInterval, delay)
}

func TestQueueRunStopsOnContextCancel(t *testing.T) {
	q := NewQueue("test", 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		q.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
