// Package snapshot implements whole-registry import/export with the safety
// interlock described in spec.md §4.6: import is a no-op on a non-empty
// registry, and the empty check plus the bulk insert run in one
// transaction.
package snapshot

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cdl-project/schema-registry/internal/registry/regtypes"
)

// Exporter produces the full-enumeration data snapshot needs.
type Exporter interface {
	ListAllSchemasWithDefinitions(ctx context.Context) ([]regtypes.SchemaWithDefinitions, error)
}

// Export walks the registry ordered by id so two exports of the same state
// are byte-identical (spec §4.6).
func Export(ctx context.Context, store Exporter) (regtypes.DBExport, error) {
	schemas, err := store.ListAllSchemasWithDefinitions(ctx)
	if err != nil {
		return regtypes.DBExport{}, err
	}

	sort.Slice(schemas, func(i, j int) bool {
		return schemas[i].ID.String() < schemas[j].ID.String()
	})

	return regtypes.DBExport{Schemas: schemas}, nil
}

// Import takes the safety interlock (no-op if the registry already
// contains any schema) and the bulk insert in one transaction, preserving
// original ids and versions verbatim. It does not invoke the composer
// (definitions were already composed when first written) and does not
// publish change notifications — consumers are expected to bootstrap by
// full enumeration after a cold start (spec §4.6).
func Import(ctx context.Context, pool *pgxpool.Pool, export regtypes.DBExport) (imported bool, err error) {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, &regtypes.ConnectionError{Cause: err}
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var count int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM schemas`).Scan(&count); err != nil {
		return false, &regtypes.DBError{Cause: err}
	}
	if count > 0 {
		return false, nil
	}

	for _, s := range export.Schemas {
		if _, err := tx.Exec(ctx, `
			INSERT INTO schemas (id, name, type, topic_or_queue, query_address)
			VALUES ($1, $2, $3, $4, $5)
		`, s.ID, s.Name, s.Type.String(), s.TopicOrQueue, s.QueryAddress); err != nil {
			return false, &regtypes.DBError{Cause: err}
		}

		for _, d := range s.Definitions {
			if _, err := tx.Exec(ctx, `
				INSERT INTO definitions (schema, version, definition)
				VALUES ($1, $2, $3)
			`, s.ID, d.Version.String(), []byte(d.Definition)); err != nil {
				return false, &regtypes.DBError{Cause: err}
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, &regtypes.DBError{Cause: err}
	}
	return true, nil
}

// MarshalIndent is a small convenience used by the startup export path
// (apps/api/main.go EXPORT_DIR handling) to write a readable snapshot file.
func MarshalIndent(export regtypes.DBExport) ([]byte, error) {
	return json.MarshalIndent(export, "", "  ")
}
