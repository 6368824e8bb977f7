package validate

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdl-project/schema-registry/internal/registry/regtypes"
)

type fakeResolver struct {
	def regtypes.SchemaDefinition
	err error
}

func (f *fakeResolver) GetSchemaDefinition(context.Context, regtypes.VersionedID) (regtypes.SchemaDefinition, error) {
	return f.def, f.err
}

func mustVersion(t *testing.T, s string) regtypes.SemVer {
	t.Helper()
	v, err := regtypes.ParseSemVer(s)
	require.NoError(t, err)
	return v
}

func TestValidatePassesForMatchingDocument(t *testing.T) {
	resolver := &fakeResolver{def: regtypes.SchemaDefinition{
		Version:    mustVersion(t, "1.0.0"),
		Definition: json.RawMessage(`{"type":"object","required":["name"],"properties":{"name":{"type":"string"}}}`),
	}}

	v := New()
	errs, err := v.Validate(context.Background(), resolver, uuid.New(), regtypes.AnyVersionRequirement(), json.RawMessage(`{"name":"orders"}`))
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestValidateReportsViolation(t *testing.T) {
	resolver := &fakeResolver{def: regtypes.SchemaDefinition{
		Version:    mustVersion(t, "1.0.0"),
		Definition: json.RawMessage(`{"type":"object","required":["name"]}`),
	}}

	v := New()
	errs, err := v.Validate(context.Background(), resolver, uuid.New(), regtypes.AnyVersionRequirement(), json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.NotEmpty(t, errs)
}

func TestValidateMalformedDocumentIsReportedNotFatal(t *testing.T) {
	resolver := &fakeResolver{def: regtypes.SchemaDefinition{
		Version:    mustVersion(t, "1.0.0"),
		Definition: json.RawMessage(`{"type":"object"}`),
	}}

	v := New()
	errs, err := v.Validate(context.Background(), resolver, uuid.New(), regtypes.AnyVersionRequirement(), json.RawMessage(`not json`))
	require.NoError(t, err)
	require.Len(t, errs, 1)
}

func TestValidateReusesCompiledSchema(t *testing.T) {
	id := uuid.New()
	resolver := &fakeResolver{def: regtypes.SchemaDefinition{
		Version:    mustVersion(t, "1.0.0"),
		Definition: json.RawMessage(`{"type":"object"}`),
	}}

	v := New()
	_, err := v.Validate(context.Background(), resolver, id, regtypes.AnyVersionRequirement(), json.RawMessage(`{}`))
	require.NoError(t, err)

	v.mu.RLock()
	_, cached := v.cache[cacheKey(id, resolver.def.Version)]
	v.mu.RUnlock()
	assert.True(t, cached)
}
