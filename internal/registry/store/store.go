// Package store is the transactional relational storage engine backing the
// registry: two tables, schemas and definitions, per spec.md §6. Every
// mutating method runs inside a transaction and, as its last statement,
// publishes a change notification via notify.Publish (spec §4.3/§4.4,
// "notification is the last write").
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cdl-project/schema-registry/internal/registry/compose"
	"github.com/cdl-project/schema-registry/internal/registry/notify"
	"github.com/cdl-project/schema-registry/internal/registry/regtypes"
)

// Store provides pgxpool-backed access to the schemas/definitions tables,
// following the teacher's XxxTx(ctx, tx, ...) / Xxx(ctx, ...) method
// pairing (persistence.SchemaRepositoryStore), rebuilt against this spec's
// two-table layout instead of the teacher's single wide table.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an already-connected pool. Callers are responsible for applying
// DDL (database/schema/*.sql) before first use.
func New(pool *pgxpool.Pool) (*Store, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &Store{pool: pool}, nil
}

// txResolver lets compose.Compose resolve cross-schema $refs against the
// latest stored definition, using the same transaction as the write that
// triggered composition (spec §4.2: referenced definitions cannot
// disappear mid-compose).
type txResolver struct {
	ctx context.Context
	tx  pgx.Tx
}

func (r txResolver) LatestDefinition(ctx context.Context, id uuid.UUID) (json.RawMessage, error) {
	rows, err := r.tx.Query(ctx, `SELECT version, definition FROM definitions WHERE schema = $1`, id)
	if err != nil {
		return nil, &regtypes.DBError{Cause: err}
	}
	defer rows.Close()

	var best regtypes.SemVer
	var bestRaw []byte
	found := false
	for rows.Next() {
		var versionStr string
		var raw []byte
		if err := rows.Scan(&versionStr, &raw); err != nil {
			return nil, &regtypes.DBError{Cause: err}
		}
		v, err := regtypes.ParseSemVer(versionStr)
		if err != nil {
			return nil, &regtypes.DBError{Cause: err}
		}
		if !found || v.Compare(best) > 0 {
			best, bestRaw, found = v, raw, true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &regtypes.DBError{Cause: err}
	}
	if !found {
		return nil, &regtypes.NoSchemaWithIDError{ID: id}
	}
	return json.RawMessage(bestRaw), nil
}

// AddSchema generates an id, composes the definition, and writes the
// schemas + definitions rows (version 1.0.0) in one transaction, publishing
// a change notification as the last statement (spec §4.3 add_schema).
func (s *Store) AddSchema(ctx context.Context, in regtypes.NewSchema) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		newID := uuid.New()

		composed, err := compose.Compose(ctx, txResolver{ctx: ctx, tx: tx}, in.Definition)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO schemas (id, name, type, topic_or_queue, query_address)
			VALUES ($1, $2, $3, $4, $5)
		`, newID, in.Name, in.Type.String(), in.TopicOrQueue, in.QueryAddress); err != nil {
			return &regtypes.DBError{Cause: err}
		}

		v := regtypes.SemVer{Major: 1, Minor: 0, Patch: 0}
		if err := insertDefinition(ctx, tx, newID, v, composed); err != nil {
			return err
		}

		schema, err := getSchemaTx(ctx, tx, newID)
		if err != nil {
			return err
		}
		if err := notify.Publish(ctx, tx, schema); err != nil {
			return err
		}

		id = newID
		return nil
	})
	return id, err
}

// AddSchemaVersion appends a definition at a version strictly greater than
// the schema's current maximum (I4), composing it inside the same
// transaction (spec §4.3 add_new_version_of_schema).
func (s *Store) AddSchemaVersion(ctx context.Context, id uuid.UUID, def regtypes.NewSchemaDefinition) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		schema, err := getSchemaTx(ctx, tx, id)
		if err != nil {
			return err
		}

		max, hasAny, err := maxVersionTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if hasAny && def.Version.Compare(max) <= 0 {
			return &regtypes.NewVersionMustBeGreatestError{SchemaID: id, MaxVersion: max}
		}

		composed, err := compose.Compose(ctx, txResolver{ctx: ctx, tx: tx}, def.Definition)
		if err != nil {
			return err
		}

		if err := insertDefinition(ctx, tx, id, def.Version, composed); err != nil {
			return err
		}

		return notify.Publish(ctx, tx, schema)
	})
}

// UpdateSchema applies a partial patch as a single conditional UPDATE using
// COALESCE semantics (spec §4.3/§9 — never read-then-write). Always
// publishes a notification, even for a no-op patch (SPEC_FULL.md Open
// Question decision #2).
func (s *Store) UpdateSchema(ctx context.Context, id uuid.UUID, patch regtypes.SchemaUpdate) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		var typeStr *string
		if patch.Type != nil {
			s := patch.Type.String()
			typeStr = &s
		}

		tag, err := tx.Exec(ctx, `
			UPDATE schemas
			SET name = COALESCE($2, name),
			    type = COALESCE($3, type),
			    topic_or_queue = COALESCE($4, topic_or_queue),
			    query_address = COALESCE($5, query_address)
			WHERE id = $1
		`, id, patch.Name, typeStr, patch.TopicOrQueue, patch.QueryAddress)
		if err != nil {
			return &regtypes.DBError{Cause: err}
		}
		if tag.RowsAffected() == 0 {
			return &regtypes.NoSchemaWithIDError{ID: id}
		}

		schema, err := getSchemaTx(ctx, tx, id)
		if err != nil {
			return err
		}
		return notify.Publish(ctx, tx, schema)
	})
}

// GetSchema returns the schema's metadata row.
func (s *Store) GetSchema(ctx context.Context, id uuid.UUID) (regtypes.Schema, error) {
	var schema regtypes.Schema
	err := s.withConn(ctx, func(conn *pgxpool.Conn) error {
		var innerErr error
		schema, innerErr = getSchemaRow(ctx, conn, id)
		return innerErr
	})
	return schema, err
}

// GetSchemaWithDefinitions returns the schema joined with its full
// definition history.
func (s *Store) GetSchemaWithDefinitions(ctx context.Context, id uuid.UUID) (regtypes.SchemaWithDefinitions, error) {
	var result regtypes.SchemaWithDefinitions
	err := s.withConn(ctx, func(conn *pgxpool.Conn) error {
		schema, err := getSchemaRow(ctx, conn, id)
		if err != nil {
			return err
		}

		defs, err := listDefinitions(ctx, conn, id)
		if err != nil {
			return err
		}

		result = regtypes.SchemaWithDefinitions{Schema: schema, Definitions: defs}
		return nil
	})
	return result, err
}

// GetSchemaDefinition resolves the highest stored version satisfying req
// (spec §4.3 get_schema_definition).
func (s *Store) GetSchemaDefinition(ctx context.Context, vid regtypes.VersionedID) (regtypes.SchemaDefinition, error) {
	var result regtypes.SchemaDefinition
	err := s.withConn(ctx, func(conn *pgxpool.Conn) error {
		if _, err := getSchemaRow(ctx, conn, vid.ID); err != nil {
			return err
		}

		defs, err := listDefinitions(ctx, conn, vid.ID)
		if err != nil {
			return err
		}

		best, found := (regtypes.SchemaWithDefinitions{Definitions: defs}).Definition(vid.Requirement)
		if !found {
			return &regtypes.NoVersionMatchesRequirementError{SchemaID: vid.ID, Requirement: vid.Requirement.String()}
		}
		result = best
		return nil
	})
	return result, err
}

// ListVersions returns every stored version of a schema, parsed and sorted
// ascending (supplemented from original_source/db.rs::get_schema_versions).
func (s *Store) ListVersions(ctx context.Context, id uuid.UUID) ([]regtypes.SemVer, error) {
	var versions []regtypes.SemVer
	err := s.withConn(ctx, func(conn *pgxpool.Conn) error {
		if _, err := getSchemaRow(ctx, conn, id); err != nil {
			return err
		}
		defs, err := listDefinitions(ctx, conn, id)
		if err != nil {
			return err
		}
		for _, d := range defs {
			versions = append(versions, d.Version)
		}
		return nil
	})
	return versions, err
}

// ListAllSchemas returns every schema ordered by name ascending (spec
// §4.3 get_all_schemas).
func (s *Store) ListAllSchemas(ctx context.Context) ([]regtypes.Schema, error) {
	var schemas []regtypes.Schema
	err := s.withConn(ctx, func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, `SELECT id, name, type, topic_or_queue, query_address FROM schemas ORDER BY name ASC`)
		if err != nil {
			return &regtypes.DBError{Cause: err}
		}
		defer rows.Close()

		for rows.Next() {
			schema, err := scanSchema(rows)
			if err != nil {
				return err
			}
			schemas = append(schemas, schema)
		}
		return rows.Err()
	})
	return schemas, err
}

// ListAllSchemasWithDefinitions performs one query per table and joins in
// memory: two round-trips regardless of N (spec §4.3).
func (s *Store) ListAllSchemasWithDefinitions(ctx context.Context) ([]regtypes.SchemaWithDefinitions, error) {
	var result []regtypes.SchemaWithDefinitions
	err := s.withConn(ctx, func(conn *pgxpool.Conn) error {
		schemas, err := listAllSchemasRows(ctx, conn)
		if err != nil {
			return err
		}

		byID := make(map[uuid.UUID]*regtypes.SchemaWithDefinitions, len(schemas))
		result = make([]regtypes.SchemaWithDefinitions, len(schemas))
		for i, schema := range schemas {
			result[i] = regtypes.SchemaWithDefinitions{Schema: schema}
			byID[schema.ID] = &result[i]
		}

		rows, err := conn.Query(ctx, `SELECT schema, version, definition FROM definitions`)
		if err != nil {
			return &regtypes.DBError{Cause: err}
		}
		defer rows.Close()

		for rows.Next() {
			var schemaID uuid.UUID
			var versionStr string
			var raw []byte
			if err := rows.Scan(&schemaID, &versionStr, &raw); err != nil {
				return &regtypes.DBError{Cause: err}
			}
			entry, ok := byID[schemaID]
			if !ok {
				continue
			}
			v, err := regtypes.ParseSemVer(versionStr)
			if err != nil {
				return &regtypes.DBError{Cause: err}
			}
			entry.Definitions = append(entry.Definitions, regtypes.SchemaDefinition{Version: v, Definition: json.RawMessage(raw)})
		}
		return rows.Err()
	})
	return result, err
}

func insertDefinition(ctx context.Context, tx pgx.Tx, id uuid.UUID, v regtypes.SemVer, definition json.RawMessage) error {
	if _, err := tx.Exec(ctx, `
		INSERT INTO definitions (schema, version, definition)
		VALUES ($1, $2, $3)
	`, id, v.String(), []byte(definition)); err != nil {
		return &regtypes.DBError{Cause: err}
	}
	return nil
}

func maxVersionTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (regtypes.SemVer, bool, error) {
	rows, err := tx.Query(ctx, `SELECT version FROM definitions WHERE schema = $1`, id)
	if err != nil {
		return regtypes.SemVer{}, false, &regtypes.DBError{Cause: err}
	}
	defer rows.Close()

	var max regtypes.SemVer
	found := false
	for rows.Next() {
		var versionStr string
		if err := rows.Scan(&versionStr); err != nil {
			return regtypes.SemVer{}, false, &regtypes.DBError{Cause: err}
		}
		v, err := regtypes.ParseSemVer(versionStr)
		if err != nil {
			return regtypes.SemVer{}, false, &regtypes.DBError{Cause: err}
		}
		if !found || v.Compare(max) > 0 {
			max = v
			found = true
		}
	}
	return max, found, rows.Err()
}

func getSchemaTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (regtypes.Schema, error) {
	row := tx.QueryRow(ctx, `SELECT id, name, type, topic_or_queue, query_address FROM schemas WHERE id = $1`, id)
	return scanSchemaRow(row, id)
}

func getSchemaRow(ctx context.Context, conn *pgxpool.Conn, id uuid.UUID) (regtypes.Schema, error) {
	row := conn.QueryRow(ctx, `SELECT id, name, type, topic_or_queue, query_address FROM schemas WHERE id = $1`, id)
	return scanSchemaRow(row, id)
}

func scanSchemaRow(row pgx.Row, id uuid.UUID) (regtypes.Schema, error) {
	var schema regtypes.Schema
	var typeStr string
	if err := row.Scan(&schema.ID, &schema.Name, &typeStr, &schema.TopicOrQueue, &schema.QueryAddress); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return regtypes.Schema{}, &regtypes.NoSchemaWithIDError{ID: id}
		}
		return regtypes.Schema{}, &regtypes.DBError{Cause: err}
	}
	t, err := regtypes.ParseSchemaType(typeStr)
	if err != nil {
		return regtypes.Schema{}, err
	}
	schema.Type = t
	return schema, nil
}

func scanSchema(rows pgx.Rows) (regtypes.Schema, error) {
	var schema regtypes.Schema
	var typeStr string
	if err := rows.Scan(&schema.ID, &schema.Name, &typeStr, &schema.TopicOrQueue, &schema.QueryAddress); err != nil {
		return regtypes.Schema{}, &regtypes.DBError{Cause: err}
	}
	t, err := regtypes.ParseSchemaType(typeStr)
	if err != nil {
		return regtypes.Schema{}, err
	}
	schema.Type = t
	return schema, nil
}

func listAllSchemasRows(ctx context.Context, conn *pgxpool.Conn) ([]regtypes.Schema, error) {
	rows, err := conn.Query(ctx, `SELECT id, name, type, topic_or_queue, query_address FROM schemas ORDER BY name ASC`)
	if err != nil {
		return nil, &regtypes.DBError{Cause: err}
	}
	defer rows.Close()

	var schemas []regtypes.Schema
	for rows.Next() {
		schema, err := scanSchema(rows)
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, schema)
	}
	return schemas, rows.Err()
}

func listDefinitions(ctx context.Context, conn *pgxpool.Conn, id uuid.UUID) ([]regtypes.SchemaDefinition, error) {
	rows, err := conn.Query(ctx, `SELECT version, definition FROM definitions WHERE schema = $1`, id)
	if err != nil {
		return nil, &regtypes.DBError{Cause: err}
	}
	defer rows.Close()

	var defs []regtypes.SchemaDefinition
	for rows.Next() {
		var versionStr string
		var raw []byte
		if err := rows.Scan(&versionStr, &raw); err != nil {
			return nil, &regtypes.DBError{Cause: err}
		}
		v, err := regtypes.ParseSemVer(versionStr)
		if err != nil {
			return nil, &regtypes.DBError{Cause: err}
		}
		defs = append(defs, regtypes.SchemaDefinition{Version: v, Definition: json.RawMessage(raw)})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Version.Compare(defs[j].Version) < 0 })
	return defs, rows.Err()
}

func (s *Store) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return &regtypes.ConnectionError{Cause: err}
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return &regtypes.DBError{Cause: err}
	}
	return nil
}

func (s *Store) withConn(ctx context.Context, fn func(conn *pgxpool.Conn) error) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return &regtypes.ConnectionError{Cause: err}
	}
	defer conn.Release()

	return fn(conn)
}
