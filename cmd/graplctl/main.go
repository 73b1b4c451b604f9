// Command graplctl is the operator CLI for the ingestion-to-merge core:
// provisioning tenant keyspaces, deploying edge schemas, and inspecting the
// plugin work queue.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/grapl-security/grapl-core/internal/config"
	"github.com/grapl-security/grapl-core/internal/logging"
)

var (
	// Version information (set by build flags).
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	verbose bool
	cfg     *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "graplctl",
	Short: "graplctl - operator CLI for the Grapl ingestion-to-merge core",
	Long: `graplctl provisions tenant keyspaces, deploys edge schemas, and
inspects the plugin work queue against a running core deployment.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := logging.Default()
		if verbose {
			level = logging.Init(logging.Config{JSONFormat: false})
		}
		_ = level

		var err error
		cfg, err = config.Load("graplctl")
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.SetVersionTemplate(`graplctl {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(tenantCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(queueCmd)
}
