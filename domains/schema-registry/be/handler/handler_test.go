package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdl-project/schema-registry/internal/registry/notify"
	"github.com/cdl-project/schema-registry/internal/registry/regtypes"
)

type fakeService struct {
	addSchemaErr error
	schema       regtypes.Schema
	getSchemaErr error
}

func (f *fakeService) AddSchema(context.Context, regtypes.NewSchema) (uuid.UUID, error) {
	return uuid.New(), f.addSchemaErr
}
func (f *fakeService) AddSchemaVersion(context.Context, uuid.UUID, regtypes.NewSchemaDefinition) error {
	return nil
}
func (f *fakeService) UpdateSchema(context.Context, uuid.UUID, regtypes.SchemaUpdate) error { return nil }
func (f *fakeService) GetSchema(context.Context, uuid.UUID) (regtypes.Schema, error) {
	return f.schema, f.getSchemaErr
}
func (f *fakeService) GetSchemaWithDefinitions(context.Context, uuid.UUID) (regtypes.SchemaWithDefinitions, error) {
	return regtypes.SchemaWithDefinitions{}, nil
}
func (f *fakeService) GetSchemaDefinition(context.Context, regtypes.VersionedID) (regtypes.SchemaDefinition, error) {
	return regtypes.SchemaDefinition{}, nil
}
func (f *fakeService) GetSchemaVersions(context.Context, uuid.UUID) ([]regtypes.SemVer, error) {
	return nil, nil
}
func (f *fakeService) GetAllSchemas(context.Context) ([]regtypes.Schema, error) { return nil, nil }
func (f *fakeService) GetAllSchemasWithDefinitions(context.Context) ([]regtypes.SchemaWithDefinitions, error) {
	return nil, nil
}
func (f *fakeService) ValidateValue(context.Context, uuid.UUID, regtypes.VersionRequirement, json.RawMessage) ([]string, error) {
	return nil, nil
}
func (f *fakeService) Export(context.Context) (regtypes.DBExport, error) { return regtypes.DBExport{}, nil }
func (f *fakeService) Subscribe() (<-chan notify.Event, func())         { return nil, func() {} }

func newTestRouter(svc *fakeService) http.Handler {
	h := New(svc, nil)
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func TestAddSchemaReturnsID(t *testing.T) {
	r := newTestRouter(&fakeService{})

	body := bytes.NewBufferString(`{"name":"orders","type":"DocumentStorage","topicOrQueue":"orders","queryAddress":"http://q:80","definition":{"type":"object"}}`)
	req := httptest.NewRequest(http.MethodPost, "/schemas", body)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	_, err := uuid.Parse(resp.ID)
	assert.NoError(t, err)
}

func TestAddSchemaInvalidTypeIsBadRequest(t *testing.T) {
	r := newTestRouter(&fakeService{})

	body := bytes.NewBufferString(`{"name":"orders","type":"NotAType","definition":{}}`)
	req := httptest.NewRequest(http.MethodPost, "/schemas", body)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSchemaNotFound(t *testing.T) {
	id := uuid.New()
	r := newTestRouter(&fakeService{getSchemaErr: &regtypes.NoSchemaWithIDError{ID: id}})

	req := httptest.NewRequest(http.MethodGet, "/schemas/"+id.String(), nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
