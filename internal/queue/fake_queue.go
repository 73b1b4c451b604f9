package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/grapl-security/grapl-core/internal/errors"
)

// FakeQueue is an in-memory Queue for unit tests; it reproduces the same
// FIFO-by-creation-time-then-execution-key claim ordering and
// visibility-timeout reclaim semantics as PostgresQueue without a database.
type FakeQueue struct {
	mu       sync.Mutex
	messages map[string]*Message
	maxTries int
	now      func() time.Time
}

func NewFakeQueue() *FakeQueue {
	return &FakeQueue{
		messages: make(map[string]*Message),
		maxTries: DefaultMaxTries,
		now:      time.Now,
	}
}

func (q *FakeQueue) Put(_ context.Context, tenantID, pluginID, traceID, eventSourceID string, pipelineMessage []byte) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := uuid.NewString()
	now := q.now()
	q.messages[key] = &Message{
		ExecutionKey:    key,
		TenantID:        tenantID,
		PluginID:        pluginID,
		TraceID:         traceID,
		EventSourceID:   eventSourceID,
		PipelineMessage: pipelineMessage,
		Status:          StatusEnqueued,
		CreationTime:    now,
		LastUpdated:     now,
		VisibleAfter:    now,
	}
	return key, nil
}

func (q *FakeQueue) Get(_ context.Context, tenantID, pluginID string) (Message, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var candidates []*Message
	for _, m := range q.messages {
		if m.TenantID == tenantID && m.PluginID == pluginID && m.Status == StatusEnqueued && !m.VisibleAfter.After(now) {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return Message{}, false, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].CreationTime.Equal(candidates[j].CreationTime) {
			return candidates[i].CreationTime.Before(candidates[j].CreationTime)
		}
		return candidates[i].ExecutionKey < candidates[j].ExecutionKey
	})

	claimed := candidates[0]
	claimed.Status = StatusClaimed
	claimed.VisibleAfter = now.Add(DefaultVisibilityTimeout)
	claimed.TryCount++
	claimed.LastUpdated = now
	return *claimed, true, nil
}

func (q *FakeQueue) AckSuccess(_ context.Context, executionKey string, executionResult []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	m, ok := q.messages[executionKey]
	if !ok {
		return errors.Persistentf("queue: ack success for unknown execution_key %q", executionKey)
	}
	m.Status = StatusProcessed
	m.ExecutionResult = executionResult
	m.LastUpdated = q.now()
	return nil
}

func (q *FakeQueue) AckFailure(_ context.Context, executionKey string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	m, ok := q.messages[executionKey]
	if !ok {
		return errors.Persistentf("queue: ack failure for unknown execution_key %q", executionKey)
	}
	now := q.now()
	if m.TryCount < q.maxTries {
		m.Status = StatusEnqueued
		m.VisibleAfter = now.Add(Backoff(m.TryCount))
	} else {
		m.Status = StatusFailed
	}
	m.LastUpdated = now
	return nil
}

// advanceClockFor is a test hook that simulates visible_after elapsing
// without sleeping: it moves the queue's clock d past its current reading.
func (q *FakeQueue) advanceClockFor(d time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	base := q.now
	frozen := base()
	q.now = func() time.Time { return frozen.Add(d) }
}
