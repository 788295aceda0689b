package bootstrap

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumenboard/lumenboard/platform/go/persistence"
)

// Command groups bootstrap helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Bootstrap platform resources (catalog schema)",
		Long:  "Bootstrap platform resources such as the catalog schema the API server expects.",
	}

	cmd.AddCommand(catalogCommand())
	return cmd
}

// catalogCommand applies the catalog DDL to the control-plane database. The
// statements are idempotent, so re-running against an initialized database is
// safe.
func catalogCommand() *cobra.Command {
	var databaseURL string

	c := &cobra.Command{
		Use:   "catalog",
		Short: "Create the catalog schema and tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			if err := persistence.BootstrapCatalogSchema(ctx, pool); err != nil {
				return fmt.Errorf("bootstrap catalog schema: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "catalog schema ready")
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "control-plane postgres connection string")
	_ = c.MarkFlagRequired("database-url")

	return c
}
