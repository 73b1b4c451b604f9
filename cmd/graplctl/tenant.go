package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grapl-security/grapl-core/internal/store"
	"github.com/grapl-security/grapl-core/internal/uidalloc"
)

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Manage tenant keyspaces",
}

var tenantCreateCmd = &cobra.Command{
	Use:   "create TENANT_ID",
	Short: "Provision a new tenant's counter and graph schema",
	Long: `create provisions a tenant: it inserts the counters row Component C
allocates uids from, and creates the graph, edge-schema, and plugin-queue
tables if they are absent. Those tables are shared by every tenant and keyed
by tenant_id; no per-tenant keyspace or schema is created.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID := args[0]
		ctx := cmd.Context()

		counterPool, err := store.Connect(ctx, "graplctl", cfg.CounterDB.DSN())
		if err != nil {
			return fmt.Errorf("connecting to counter db: %w", err)
		}
		defer counterPool.Close()

		if err := store.EnsureCounterSchema(ctx, counterPool); err != nil {
			return fmt.Errorf("provisioning counter schema: %w", err)
		}

		allocator := uidalloc.NewPostgresAllocator(counterPool.Raw())
		if err := allocator.CreateTenantKeyspace(ctx, tenantID); err != nil {
			return fmt.Errorf("creating tenant keyspace: %w", err)
		}

		graphPool, err := store.Connect(ctx, "graplctl", cfg.GraphDB.DSN())
		if err != nil {
			return fmt.Errorf("connecting to graph db: %w", err)
		}
		defer graphPool.Close()

		if err := store.EnsureGraphSchema(ctx, graphPool); err != nil {
			return fmt.Errorf("provisioning graph schema: %w", err)
		}
		if err := store.EnsureSchemaManagerSchema(ctx, graphPool); err != nil {
			return fmt.Errorf("provisioning schema-manager schema: %w", err)
		}

		queuePool, err := store.Connect(ctx, "graplctl", cfg.PluginQueueDB.DSN())
		if err != nil {
			return fmt.Errorf("connecting to plugin queue db: %w", err)
		}
		defer queuePool.Close()

		if err := store.EnsurePluginQueueSchema(ctx, queuePool); err != nil {
			return fmt.Errorf("provisioning plugin queue schema: %w", err)
		}

		fmt.Printf("tenant %q provisioned\n", tenantID)
		return nil
	},
}

func init() {
	tenantCmd.AddCommand(tenantCreateCmd)
}
