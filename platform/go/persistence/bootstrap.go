package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sqlassets "github.com/lumenboard/lumenboard/database"
)

// BootstrapCatalogSchema creates the catalog schema and its tables in a single
// transaction. SQL is embedded at build time so binaries stay self-contained.
// The DDL uses IF NOT EXISTS throughout, so the helper is idempotent and
// intended for the CLI bootstrap command and tests.
func BootstrapCatalogSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("bootstrap catalog schema: pool is required")
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	for _, stmt := range splitStatements(sqlassets.CatalogSQL) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply catalog ddl: %w", err)
		}
	}

	return tx.Commit(ctx)
}
