//go:build testcontainers

package store

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cdl-project/schema-registry/internal/registry/regtypes"
)

// TestStoreIntegrationAgainstRealPostgres mirrors the teacher's
// schema_repository_pg_test.go: a disposable postgres:16-alpine container
// in place of TEST_DATABASE_URL, exercised with `go test -tags testcontainers`.
func TestStoreIntegrationAgainstRealPostgres(t *testing.T) {
	t.Parallel()

	if testing.Short() {
		t.Skip("skipping testcontainers integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("registry"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp").WithStartupTimeout(2*time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(context.Background()) })

	connString, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	for _, path := range []string{"../../../database/schema/001_schemas.sql", "../../../database/schema/002_definitions.sql"} {
		ddl, err := os.ReadFile(path)
		require.NoError(t, err)
		_, err = pool.Exec(ctx, string(ddl))
		require.NoError(t, err)
	}

	s, err := New(pool)
	require.NoError(t, err)

	id, err := s.AddSchema(ctx, regtypes.NewSchema{
		Name:         "orders",
		Type:         regtypes.SchemaTypeDocumentStorage,
		TopicOrQueue: "orders",
		QueryAddress: "http://q:80",
		Definition:   json.RawMessage(`{"type":"object"}`),
	})
	require.NoError(t, err)

	got, err := s.GetSchemaWithDefinitions(ctx, id)
	require.NoError(t, err)
	require.Len(t, got.Definitions, 1)
	require.Equal(t, "1.0.0", got.Definitions[0].Version.String())

	all, err := s.ListAllSchemasWithDefinitions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "orders", all[0].Name)
}
