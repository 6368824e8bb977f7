package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sqlassets "github.com/cdl-project/schema-registry/database"
)

// BootstrapSchema applies the registry's DDL (schemas, definitions) in a
// single transaction. SQL is embedded at build time so binaries stay
// self-contained. The helper is idempotent (every statement is
// IF NOT EXISTS) and intended for apps/api's startup path and tests.
func BootstrapSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("bootstrap schema: pool is required")
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	for _, ddl := range []string{sqlassets.SchemasSQL, sqlassets.DefinitionsSQL} {
		if _, err := tx.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("apply ddl: %w", err)
		}
	}

	return tx.Commit(ctx)
}
