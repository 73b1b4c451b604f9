package main

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/grapl-security/grapl-core/internal/queue"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and requeue plugin work queue entries (Component G)",
}

func connectQueue(cmd *cobra.Command) (*sqlx.DB, *queue.PostgresQueue, error) {
	db, err := sqlx.ConnectContext(cmd.Context(), "postgres", cfg.PluginQueueDB.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to plugin queue db: %w", err)
	}
	return db, queue.NewPostgresQueue(db), nil
}

var queuePutCmd = &cobra.Command{
	Use:   "put TENANT_ID PLUGIN_ID TRACE_ID EVENT_SOURCE_ID",
	Short: "Enqueue an empty-payload message for manual pipeline testing",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID, pluginID, traceID, eventSourceID := args[0], args[1], args[2], args[3]

		db, q, err := connectQueue(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		executionKey, err := q.Put(cmd.Context(), tenantID, pluginID, traceID, eventSourceID, nil)
		if err != nil {
			return fmt.Errorf("enqueueing message: %w", err)
		}

		fmt.Printf("enqueued execution_key=%s\n", executionKey)
		return nil
	},
}

var queueGetCmd = &cobra.Command{
	Use:   "get TENANT_ID PLUGIN_ID",
	Short: "Claim the oldest eligible message for a (tenant, plugin) pair",
	Long: `get performs the same atomic FIFO claim the services use internally,
useful for manually draining a stuck queue or verifying visibility-timeout
behavior (spec §4.G).`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID, pluginID := args[0], args[1]

		db, q, err := connectQueue(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		msg, ok, err := q.Get(cmd.Context(), tenantID, pluginID)
		if err != nil {
			return fmt.Errorf("claiming message: %w", err)
		}
		if !ok {
			fmt.Println("no eligible message")
			return nil
		}

		fmt.Printf("execution_key=%s status=%s try_count=%d trace_id=%s event_source_id=%s\n",
			msg.ExecutionKey, msg.Status, msg.TryCount, msg.TraceID, msg.EventSourceID)
		return nil
	},
}

var queueRequeueCmd = &cobra.Command{
	Use:   "requeue EXECUTION_KEY",
	Short: "Force a claimed message back onto the queue with backoff",
	Long: `requeue calls AckFailure on a message an operator wants retried
sooner than its visibility timeout would otherwise allow. If the message has
already exhausted its retry budget, it is marked Failed instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		executionKey := args[0]

		db, q, err := connectQueue(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := q.AckFailure(cmd.Context(), executionKey); err != nil {
			return fmt.Errorf("requeueing message: %w", err)
		}

		fmt.Printf("requeued execution_key=%s\n", executionKey)
		return nil
	},
}

func init() {
	queueCmd.AddCommand(queuePutCmd)
	queueCmd.AddCommand(queueGetCmd)
	queueCmd.AddCommand(queueRequeueCmd)
}
