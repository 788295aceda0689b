package workspace

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lumenboard/lumenboard/platform/go/persistence"
)

// Command groups workspace inspection helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Inspect provisioned workspaces",
	}

	cmd.AddCommand(listCommand())
	cmd.AddCommand(getCommand())
	return cmd
}

func listCommand() *cobra.Command {
	var (
		databaseURL string
		limit       int
		offset      int
	)

	c := &cobra.Command{
		Use:   "list",
		Short: "List catalog workspaces, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			store, cleanup, err := newStore(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer cleanup()

			records, err := store.List(ctx, limit, offset)
			if err != nil {
				return fmt.Errorf("list workspaces: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSLUG\tREGION\tSTATUS\tRESOURCE\tCREATED")
			for _, rec := range records {
				resource := "-"
				if rec.ExternalResourceID != nil {
					resource = *rec.ExternalResourceID
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					rec.ID, rec.Slug, rec.Region, rec.MigrationStatus, resource,
					rec.CreatedAt.Format("2006-01-02 15:04:05"),
				)
			}
			return w.Flush()
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "control-plane postgres connection string")
	c.Flags().IntVar(&limit, "limit", 50, "max rows to return")
	c.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	_ = c.MarkFlagRequired("database-url")

	return c
}

func getCommand() *cobra.Command {
	var databaseURL string

	c := &cobra.Command{
		Use:   "get <slug>",
		Short: "Show one workspace with its domains",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			store, cleanup, err := newStore(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer cleanup()

			rec, err := store.GetBySlug(ctx, args[0])
			if err != nil {
				return fmt.Errorf("get workspace: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:        %s\n", rec.ID)
			fmt.Fprintf(out, "name:      %s\n", rec.Name)
			fmt.Fprintf(out, "slug:      %s\n", rec.Slug)
			fmt.Fprintf(out, "region:    %s\n", rec.Region)
			fmt.Fprintf(out, "status:    %s\n", rec.MigrationStatus)
			if rec.ExternalResourceID != nil {
				fmt.Fprintf(out, "resource:  %s\n", *rec.ExternalResourceID)
			}
			fmt.Fprintf(out, "created:   %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))

			domains, err := store.ListDomains(ctx, rec.ID)
			if err != nil {
				return fmt.Errorf("list domains: %w", err)
			}
			for _, d := range domains {
				marker := ""
				if d.IsPrimary {
					marker = " (primary)"
				}
				fmt.Fprintf(out, "domain:    %s%s\n", d.Domain, marker)
			}
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "control-plane postgres connection string")
	_ = c.MarkFlagRequired("database-url")

	return c
}

func newStore(ctx context.Context, databaseURL string) (*persistence.WorkspaceStore, func(), error) {
	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
	if err != nil {
		return nil, nil, fmt.Errorf("init pool: %w", err)
	}

	store, err := persistence.NewWorkspaceStore(ctx, pool)
	if err != nil {
		persistence.ClosePool(pool)
		return nil, nil, fmt.Errorf("init workspace store: %w", err)
	}

	return store, func() { persistence.ClosePool(pool) }, nil
}
