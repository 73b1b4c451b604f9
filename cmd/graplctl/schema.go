package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/grapl-security/grapl-core/internal/schema"
	"github.com/grapl-security/grapl-core/internal/store"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Deploy and inspect edge schemas (Component D)",
}

var schemaDeployCmd = &cobra.Command{
	Use:   "deploy TENANT_ID NODE_TYPE SCHEMA_VERSION EDGE_NAME REVERSE_EDGE_NAME CARDINALITY",
	Short: "Register one declared edge on a node type's schema version",
	Long: `deploy registers the forward/reverse edge pair the mutation service
(Component E) consults whenever it writes an edge of this name. CARDINALITY
must be "to_one" or "to_many".`,
	Args: cobra.ExactArgs(6),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		tenantID, nodeType, edgeName, reverseEdgeName := args[0], args[1], args[3], args[4]

		version, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid schema version %q: %w", args[2], err)
		}
		cardinality := schema.Cardinality(args[5])
		if cardinality != schema.CardinalityToOne && cardinality != schema.CardinalityToMany {
			return fmt.Errorf("invalid cardinality %q: must be to_one or to_many", args[5])
		}

		pool, err := store.Connect(ctx, "graplctl", cfg.GraphDB.DSN())
		if err != nil {
			return fmt.Errorf("connecting to graph db: %w", err)
		}
		defer pool.Close()

		if err := store.EnsureSchemaManagerSchema(ctx, pool); err != nil {
			return fmt.Errorf("provisioning schema-manager schema: %w", err)
		}

		manager := schema.NewPostgresManager(pool.Raw())
		edge := schema.EdgeSchema{
			TenantID:        tenantID,
			NodeType:        nodeType,
			SchemaVersion:   version,
			EdgeName:        edgeName,
			ReverseEdgeName: reverseEdgeName,
			Cardinality:     cardinality,
		}
		if err := manager.DeploySchema(ctx, []schema.EdgeSchema{edge}); err != nil {
			return fmt.Errorf("deploying schema: %w", err)
		}

		fmt.Printf("deployed edge %q (%s) on %s/%s v%d\n", edgeName, cardinality, tenantID, nodeType, version)
		return nil
	},
}

var schemaGetCmd = &cobra.Command{
	Use:   "get TENANT_ID NODE_TYPE SCHEMA_VERSION EDGE_NAME",
	Short: "Look up a declared edge's reverse name and cardinality",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		tenantID, nodeType, edgeName := args[0], args[1], args[3]

		version, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid schema version %q: %w", args[2], err)
		}

		pool, err := store.Connect(ctx, "graplctl", cfg.GraphDB.DSN())
		if err != nil {
			return fmt.Errorf("connecting to graph db: %w", err)
		}
		defer pool.Close()

		manager := schema.NewPostgresManager(pool.Raw())
		edge, err := manager.GetEdgeSchema(ctx, tenantID, nodeType, version, edgeName)
		if err != nil {
			return fmt.Errorf("looking up edge schema: %w", err)
		}

		fmt.Printf("%s.%s -> reverse=%s cardinality=%s\n", nodeType, edgeName, edge.ReverseEdgeName, edge.Cardinality)
		return nil
	},
}

func init() {
	schemaCmd.AddCommand(schemaDeployCmd)
	schemaCmd.AddCommand(schemaGetCmd)
}
