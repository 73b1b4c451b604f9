// Package queue implements Component G, the durable per-(tenant_id,
// plugin_id) work queue that feeds generator/analyzer plugins and is the
// sole re-enqueue path for transient pipeline failures (spec §4.G).
package queue

import (
	"time"
)

// Status is the lifecycle state of one queued message.
type Status string

const (
	StatusEnqueued  Status = "Enqueued"
	StatusClaimed   Status = "Claimed"
	StatusProcessed Status = "Processed"
	StatusFailed    Status = "Failed"
)

// DefaultVisibilityTimeout bounds how long a Claimed message stays invisible
// before it is treated as abandoned and becomes eligible for re-claim — the
// sole crash-recovery mechanism; there are no heartbeats (spec §4.G).
const DefaultVisibilityTimeout = 30 * time.Second

// DefaultMaxTries is how many times a message may be claimed before
// AckFailure gives up and marks it Failed permanently.
const DefaultMaxTries = 5

// Message is one row of the plugin work queue.
type Message struct {
	ExecutionKey    string
	PluginID        string
	TenantID        string
	TraceID         string
	EventSourceID   string
	PipelineMessage []byte
	Status          Status
	CreationTime    time.Time
	LastUpdated     time.Time
	VisibleAfter    time.Time
	TryCount        int
	ExecutionResult []byte
}

// Backoff computes the visibility delay before a failed claim's try_count-th
// retry becomes eligible again: exponential, capped at one minute, matching
// the retry posture the rest of the pipeline uses for transient errors
// (spec §7).
func Backoff(tryCount int) time.Duration {
	d := time.Duration(1<<uint(tryCount)) * 100 * time.Millisecond
	if d > time.Minute {
		return time.Minute
	}
	return d
}
