// Package validate compiles composed definitions into JSON Schemas and
// validates candidate documents against them (spec.md §4.5). Generalizes
// the teacher's persistence.SchemaValidator (RWMutex + compiled-schema
// cache keyed by schema_id@version) to validate against a definition
// already resolved through store+compose.
package validate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/cdl-project/schema-registry/internal/registry/regtypes"
)

// DefinitionResolver resolves a VersionedID to the stored (composed)
// definition, e.g. store.Store.GetSchemaDefinition.
type DefinitionResolver interface {
	GetSchemaDefinition(ctx context.Context, vid regtypes.VersionedID) (regtypes.SchemaDefinition, error)
}

// Validator compiles and caches JSON Schemas, keyed by schema id + version,
// mirroring the teacher's memory:// cache-key scheme.
type Validator struct {
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

// New returns a validator with an empty compile cache.
func New() *Validator {
	return &Validator{cache: make(map[string]*jsonschema.Schema)}
}

// Validate resolves schemaID/req through resolver, compiles (or reuses a
// cached compile of) the resulting definition, and validates document
// against it. A failing document is reported as a one-element message list
// with a nil error: the message describes the first failed assertion, and
// further failed assertions are not listed separately. A document that is
// not valid JSON is reported the same way. Compilation failure returns
// InvalidJSONSchemaError — which spec.md §4.5 calls "a registry bug" since
// definitions are composed and validated on ingress, but the path must
// still be handled.
func (v *Validator) Validate(ctx context.Context, resolver DefinitionResolver, schemaID uuid.UUID, req regtypes.VersionRequirement, document json.RawMessage) ([]string, error) {
	def, err := resolver.GetSchemaDefinition(ctx, regtypes.VersionedID{ID: schemaID, Requirement: req})
	if err != nil {
		return nil, err
	}

	compiled, err := v.getOrCompile(schemaID, def)
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(document, &doc); err != nil {
		return []string{fmt.Sprintf("document is not valid JSON: %v", err)}, nil
	}

	if err := compiled.Validate(doc); err != nil {
		return []string{err.Error()}, nil
	}
	return nil, nil
}

func (v *Validator) getOrCompile(schemaID uuid.UUID, def regtypes.SchemaDefinition) (*jsonschema.Schema, error) {
	key := cacheKey(schemaID, def.Version)

	v.mu.RLock()
	compiled, ok := v.cache[key]
	v.mu.RUnlock()
	if ok {
		return compiled, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	// another goroutine may have populated the cache while we were waiting
	if compiled, ok = v.cache[key]; ok {
		return compiled, nil
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(key, bytes.NewReader(def.Definition)); err != nil {
		return nil, &regtypes.InvalidJSONSchemaError{Reason: err.Error()}
	}

	newCompiled, err := compiler.Compile(key)
	if err != nil {
		return nil, &regtypes.InvalidJSONSchemaError{Reason: err.Error()}
	}

	v.cache[key] = newCompiled
	return newCompiled, nil
}

func cacheKey(schemaID uuid.UUID, v regtypes.SemVer) string {
	return fmt.Sprintf("memory://schemas/%s/%s", schemaID, v)
}
