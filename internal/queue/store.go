package queue

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/grapl-security/grapl-core/internal/errors"
)

// Queue is the Component G operation set (spec §4.G).
type Queue interface {
	// Put enqueues message for pluginID/tenantID and returns the generated
	// execution_key.
	Put(ctx context.Context, tenantID, pluginID, traceID, eventSourceID string, pipelineMessage []byte) (string, error)
	// Get atomically claims one Enqueued, visible message for pluginID,
	// FIFO by creation_time with execution_key as a deterministic
	// tie-break, or ok=false if none are available.
	Get(ctx context.Context, tenantID, pluginID string) (Message, bool, error)
	AckSuccess(ctx context.Context, executionKey string, executionResult []byte) error
	AckFailure(ctx context.Context, executionKey string) error
}

// PostgresQueue is the production Queue, grounded on the same
// claim-one-row-atomically pattern the teacher uses for its commit
// processing locks, expressed here via sqlx against lib/pq.
type PostgresQueue struct {
	db       *sqlx.DB
	maxTries int
}

func NewPostgresQueue(db *sqlx.DB) *PostgresQueue {
	return &PostgresQueue{db: db, maxTries: DefaultMaxTries}
}

func (q *PostgresQueue) Put(ctx context.Context, tenantID, pluginID, traceID, eventSourceID string, pipelineMessage []byte) (string, error) {
	executionKey := uuid.NewString()
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO plugin_work_queue
			(execution_key, tenant_id, plugin_id, trace_id, event_source_id, pipeline_message, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, executionKey, tenantID, pluginID, traceID, eventSourceID, pipelineMessage, string(StatusEnqueued))
	if err != nil {
		return "", errors.WrapTransient(err, "queue: enqueueing message")
	}
	return executionKey, nil
}

// Get claims the oldest available message in one round trip: UPDATE ...
// WHERE execution_key = (SELECT ... FOR UPDATE SKIP LOCKED LIMIT 1)
// RETURNING *. SKIP LOCKED lets concurrent pollers for the same
// (tenant_id, plugin_id) make progress without contending on the same row.
func (q *PostgresQueue) Get(ctx context.Context, tenantID, pluginID string) (Message, bool, error) {
	var m pgMessage
	err := q.db.GetContext(ctx, &m, `
		UPDATE plugin_work_queue SET
			status = $1,
			visible_after = NOW() + ($2 || ' seconds')::interval,
			try_count = try_count + 1,
			last_updated = NOW()
		WHERE execution_key = (
			SELECT execution_key FROM plugin_work_queue
			WHERE tenant_id = $3 AND plugin_id = $4
				AND status = $5 AND visible_after <= NOW()
			ORDER BY creation_time ASC, execution_key ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *
	`, string(StatusClaimed), int(DefaultVisibilityTimeout.Seconds()), tenantID, pluginID, string(StatusEnqueued))
	if err != nil {
		if err == sql.ErrNoRows {
			return Message{}, false, nil
		}
		return Message{}, false, errors.WrapTransient(err, "queue: claiming message")
	}
	return m.toMessage(), true, nil
}

func (q *PostgresQueue) AckSuccess(ctx context.Context, executionKey string, executionResult []byte) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE plugin_work_queue SET
			status = $1, execution_result = $2, last_updated = NOW()
		WHERE execution_key = $3
	`, string(StatusProcessed), executionResult, executionKey)
	if err != nil {
		return errors.WrapTransient(err, "queue: acking success")
	}
	return nil
}

// AckFailure re-enqueues the message with a backoff delay if retries remain,
// otherwise marks it permanently Failed (spec §4.G).
func (q *PostgresQueue) AckFailure(ctx context.Context, executionKey string) error {
	var tryCount int
	err := q.db.GetContext(ctx, &tryCount, `SELECT try_count FROM plugin_work_queue WHERE execution_key = $1`, executionKey)
	if err != nil {
		if err == sql.ErrNoRows {
			return errors.Persistentf("queue: ack failure for unknown execution_key %q", executionKey)
		}
		return errors.WrapTransient(err, "queue: reading try_count")
	}

	if tryCount < q.maxTries {
		_, err = q.db.ExecContext(ctx, `
			UPDATE plugin_work_queue SET
				status = $1,
				visible_after = NOW() + ($2 || ' seconds')::interval,
				last_updated = NOW()
			WHERE execution_key = $3
		`, string(StatusEnqueued), int(Backoff(tryCount).Seconds()), executionKey)
	} else {
		_, err = q.db.ExecContext(ctx, `
			UPDATE plugin_work_queue SET status = $1, last_updated = NOW()
			WHERE execution_key = $2
		`, string(StatusFailed), executionKey)
	}
	if err != nil {
		return errors.WrapTransient(err, "queue: recording failure")
	}
	return nil
}

// pgMessage mirrors plugin_work_queue's column set for sqlx scanning; lib/pq
// needs BYTEA columns addressed directly as []byte, so this stays a
// dedicated scan target rather than scanning into Message itself.
type pgMessage struct {
	ExecutionKey    string       `db:"execution_key"`
	TenantID        string       `db:"tenant_id"`
	PluginID        string       `db:"plugin_id"`
	TraceID         string       `db:"trace_id"`
	EventSourceID   string       `db:"event_source_id"`
	PipelineMessage []byte       `db:"pipeline_message"`
	Status          string       `db:"status"`
	CreationTime    sql.NullTime `db:"creation_time"`
	LastUpdated     sql.NullTime `db:"last_updated"`
	VisibleAfter    sql.NullTime `db:"visible_after"`
	TryCount        int          `db:"try_count"`
	ExecutionResult []byte       `db:"execution_result"`
}

func (m pgMessage) toMessage() Message {
	return Message{
		ExecutionKey:    m.ExecutionKey,
		TenantID:        m.TenantID,
		PluginID:        m.PluginID,
		TraceID:         m.TraceID,
		EventSourceID:   m.EventSourceID,
		PipelineMessage: m.PipelineMessage,
		Status:          Status(m.Status),
		CreationTime:    m.CreationTime.Time,
		LastUpdated:     m.LastUpdated.Time,
		VisibleAfter:    m.VisibleAfter.Time,
		TryCount:        m.TryCount,
		ExecutionResult: m.ExecutionResult,
	}
}
