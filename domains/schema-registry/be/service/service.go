// Package service orchestrates the registry's storage, validation, and
// notification components into the operations the RPC surface exposes
// (spec.md §4.7). Grounded on the teacher's domains/schema-repository/be/service
// Service interface shape.
package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/cdl-project/schema-registry/internal/registry/notify"
	"github.com/cdl-project/schema-registry/internal/registry/regtypes"
	"github.com/cdl-project/schema-registry/internal/registry/snapshot"
	"github.com/cdl-project/schema-registry/internal/registry/validate"
)

// Store is the subset of store.Store the service depends on.
type Store interface {
	AddSchema(ctx context.Context, in regtypes.NewSchema) (uuid.UUID, error)
	AddSchemaVersion(ctx context.Context, id uuid.UUID, def regtypes.NewSchemaDefinition) error
	UpdateSchema(ctx context.Context, id uuid.UUID, patch regtypes.SchemaUpdate) error
	GetSchema(ctx context.Context, id uuid.UUID) (regtypes.Schema, error)
	GetSchemaWithDefinitions(ctx context.Context, id uuid.UUID) (regtypes.SchemaWithDefinitions, error)
	GetSchemaDefinition(ctx context.Context, vid regtypes.VersionedID) (regtypes.SchemaDefinition, error)
	ListVersions(ctx context.Context, id uuid.UUID) ([]regtypes.SemVer, error)
	ListAllSchemas(ctx context.Context) ([]regtypes.Schema, error)
	ListAllSchemasWithDefinitions(ctx context.Context) ([]regtypes.SchemaWithDefinitions, error)
}

// Service is the full set of registry operations the RPC surface exposes.
type Service interface {
	AddSchema(ctx context.Context, in regtypes.NewSchema) (uuid.UUID, error)
	AddSchemaVersion(ctx context.Context, id uuid.UUID, def regtypes.NewSchemaDefinition) error
	UpdateSchema(ctx context.Context, id uuid.UUID, patch regtypes.SchemaUpdate) error
	GetSchema(ctx context.Context, id uuid.UUID) (regtypes.Schema, error)
	GetSchemaWithDefinitions(ctx context.Context, id uuid.UUID) (regtypes.SchemaWithDefinitions, error)
	GetSchemaDefinition(ctx context.Context, vid regtypes.VersionedID) (regtypes.SchemaDefinition, error)
	GetSchemaVersions(ctx context.Context, id uuid.UUID) ([]regtypes.SemVer, error)
	GetAllSchemas(ctx context.Context) ([]regtypes.Schema, error)
	GetAllSchemasWithDefinitions(ctx context.Context) ([]regtypes.SchemaWithDefinitions, error)
	ValidateValue(ctx context.Context, schemaID uuid.UUID, req regtypes.VersionRequirement, value json.RawMessage) ([]string, error)
	Export(ctx context.Context) (regtypes.DBExport, error)
	Subscribe() (<-chan notify.Event, func())
}

type service struct {
	store     Store
	validator *validate.Validator
	listener  *notify.Listener
}

// New wires a Store, a Validator, and a notify.Listener into a Service.
func New(store Store, validator *validate.Validator, listener *notify.Listener) Service {
	return &service{store: store, validator: validator, listener: listener}
}

func (s *service) AddSchema(ctx context.Context, in regtypes.NewSchema) (uuid.UUID, error) {
	return s.store.AddSchema(ctx, in)
}

func (s *service) AddSchemaVersion(ctx context.Context, id uuid.UUID, def regtypes.NewSchemaDefinition) error {
	return s.store.AddSchemaVersion(ctx, id, def)
}

func (s *service) UpdateSchema(ctx context.Context, id uuid.UUID, patch regtypes.SchemaUpdate) error {
	return s.store.UpdateSchema(ctx, id, patch)
}

func (s *service) GetSchema(ctx context.Context, id uuid.UUID) (regtypes.Schema, error) {
	return s.store.GetSchema(ctx, id)
}

func (s *service) GetSchemaWithDefinitions(ctx context.Context, id uuid.UUID) (regtypes.SchemaWithDefinitions, error) {
	return s.store.GetSchemaWithDefinitions(ctx, id)
}

func (s *service) GetSchemaDefinition(ctx context.Context, vid regtypes.VersionedID) (regtypes.SchemaDefinition, error) {
	return s.store.GetSchemaDefinition(ctx, vid)
}

func (s *service) GetSchemaVersions(ctx context.Context, id uuid.UUID) ([]regtypes.SemVer, error) {
	return s.store.ListVersions(ctx, id)
}

func (s *service) GetAllSchemas(ctx context.Context) ([]regtypes.Schema, error) {
	return s.store.ListAllSchemas(ctx)
}

func (s *service) GetAllSchemasWithDefinitions(ctx context.Context) ([]regtypes.SchemaWithDefinitions, error) {
	return s.store.ListAllSchemasWithDefinitions(ctx)
}

func (s *service) ValidateValue(ctx context.Context, schemaID uuid.UUID, req regtypes.VersionRequirement, value json.RawMessage) ([]string, error) {
	return s.validator.Validate(ctx, s.store, schemaID, req, value)
}

func (s *service) Export(ctx context.Context) (regtypes.DBExport, error) {
	return snapshot.Export(ctx, s.store)
}

// Subscribe opens a watch subscription, backing C7's WatchAllSchemaUpdates
// and C8's cache client.
func (s *service) Subscribe() (<-chan notify.Event, func()) {
	return s.listener.Subscribe()
}
