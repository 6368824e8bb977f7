package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdl-project/schema-registry/internal/registry/regtypes"
	"github.com/cdl-project/schema-registry/internal/registry/validate"
)

type fakeStore struct {
	schemas map[uuid.UUID]regtypes.SchemaWithDefinitions
}

func newFakeStore() *fakeStore {
	return &fakeStore{schemas: make(map[uuid.UUID]regtypes.SchemaWithDefinitions)}
}

func (f *fakeStore) AddSchema(_ context.Context, in regtypes.NewSchema) (uuid.UUID, error) {
	id := uuid.New()
	v, _ := regtypes.ParseSemVer("1.0.0")
	f.schemas[id] = regtypes.SchemaWithDefinitions{
		Schema: regtypes.Schema{ID: id, Name: in.Name, Type: in.Type, TopicOrQueue: in.TopicOrQueue, QueryAddress: in.QueryAddress},
		Definitions: []regtypes.SchemaDefinition{
			{Version: v, Definition: in.Definition},
		},
	}
	return id, nil
}

func (f *fakeStore) AddSchemaVersion(_ context.Context, id uuid.UUID, def regtypes.NewSchemaDefinition) error {
	entry, ok := f.schemas[id]
	if !ok {
		return &regtypes.NoSchemaWithIDError{ID: id}
	}
	entry.Definitions = append(entry.Definitions, regtypes.SchemaDefinition{Version: def.Version, Definition: def.Definition})
	f.schemas[id] = entry
	return nil
}

func (f *fakeStore) UpdateSchema(_ context.Context, id uuid.UUID, patch regtypes.SchemaUpdate) error {
	entry, ok := f.schemas[id]
	if !ok {
		return &regtypes.NoSchemaWithIDError{ID: id}
	}
	if patch.Name != nil {
		entry.Name = *patch.Name
	}
	f.schemas[id] = entry
	return nil
}

func (f *fakeStore) GetSchema(_ context.Context, id uuid.UUID) (regtypes.Schema, error) {
	entry, ok := f.schemas[id]
	if !ok {
		return regtypes.Schema{}, &regtypes.NoSchemaWithIDError{ID: id}
	}
	return entry.Schema, nil
}

func (f *fakeStore) GetSchemaWithDefinitions(_ context.Context, id uuid.UUID) (regtypes.SchemaWithDefinitions, error) {
	entry, ok := f.schemas[id]
	if !ok {
		return regtypes.SchemaWithDefinitions{}, &regtypes.NoSchemaWithIDError{ID: id}
	}
	return entry, nil
}

func (f *fakeStore) GetSchemaDefinition(_ context.Context, vid regtypes.VersionedID) (regtypes.SchemaDefinition, error) {
	entry, ok := f.schemas[vid.ID]
	if !ok {
		return regtypes.SchemaDefinition{}, &regtypes.NoSchemaWithIDError{ID: vid.ID}
	}
	def, found := entry.Definition(vid.Requirement)
	if !found {
		return regtypes.SchemaDefinition{}, &regtypes.NoVersionMatchesRequirementError{SchemaID: vid.ID, Requirement: vid.Requirement.String()}
	}
	return def, nil
}

func (f *fakeStore) ListVersions(_ context.Context, id uuid.UUID) ([]regtypes.SemVer, error) {
	entry, ok := f.schemas[id]
	if !ok {
		return nil, &regtypes.NoSchemaWithIDError{ID: id}
	}
	versions := make([]regtypes.SemVer, len(entry.Definitions))
	for i, d := range entry.Definitions {
		versions[i] = d.Version
	}
	return versions, nil
}

func (f *fakeStore) ListAllSchemas(_ context.Context) ([]regtypes.Schema, error) {
	out := make([]regtypes.Schema, 0, len(f.schemas))
	for _, e := range f.schemas {
		out = append(out, e.Schema)
	}
	return out, nil
}

func (f *fakeStore) ListAllSchemasWithDefinitions(_ context.Context) ([]regtypes.SchemaWithDefinitions, error) {
	out := make([]regtypes.SchemaWithDefinitions, 0, len(f.schemas))
	for _, e := range f.schemas {
		out = append(out, e)
	}
	return out, nil
}

func TestServiceAddAndGetSchema(t *testing.T) {
	st := newFakeStore()
	svc := New(st, validate.New(), nil)

	id, err := svc.AddSchema(context.Background(), regtypes.NewSchema{
		Name: "orders", Type: regtypes.SchemaTypeDocumentStorage,
		TopicOrQueue: "orders", QueryAddress: "http://q:80",
		Definition: json.RawMessage(`{"type":"object"}`),
	})
	require.NoError(t, err)

	got, err := svc.GetSchema(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "orders", got.Name)
}

func TestServiceValidateValueDelegatesToValidator(t *testing.T) {
	st := newFakeStore()
	svc := New(st, validate.New(), nil)

	id, err := svc.AddSchema(context.Background(), regtypes.NewSchema{
		Name: "orders", Type: regtypes.SchemaTypeDocumentStorage,
		TopicOrQueue: "orders", QueryAddress: "http://q:80",
		Definition: json.RawMessage(`{"type":"object","required":["total"]}`),
	})
	require.NoError(t, err)

	errs, err := svc.ValidateValue(context.Background(), id, regtypes.AnyVersionRequirement(), json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.NotEmpty(t, errs)
}

func TestServiceExportIncludesStoredSchemas(t *testing.T) {
	st := newFakeStore()
	svc := New(st, validate.New(), nil)

	_, err := svc.AddSchema(context.Background(), regtypes.NewSchema{
		Name: "a", Type: regtypes.SchemaTypeDocumentStorage,
		TopicOrQueue: "t", QueryAddress: "http://q:80",
		Definition: json.RawMessage(`{"type":"object"}`),
	})
	require.NoError(t, err)

	export, err := svc.Export(context.Background())
	require.NoError(t, err)
	assert.Len(t, export.Schemas, 1)
}
