// Package regtypes defines the registry's domain entities and error
// taxonomy. The store, compose, notify, validate, snapshot and cache
// packages import this one; it imports nothing from internal/registry.
package regtypes

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// SchemaType is the storage/query backend discriminator a Schema carries.
type SchemaType int

const (
	// SchemaTypeUnknown is the zero value; never valid on the wire or in storage.
	SchemaTypeUnknown SchemaType = iota
	SchemaTypeDocumentStorage
	SchemaTypeTimeseries
)

func (t SchemaType) String() string {
	switch t {
	case SchemaTypeDocumentStorage:
		return "DocumentStorage"
	case SchemaTypeTimeseries:
		return "Timeseries"
	default:
		return "Unknown"
	}
}

// ParseSchemaType converts the wire discriminator into a SchemaType.
func ParseSchemaType(s string) (SchemaType, error) {
	switch s {
	case "DocumentStorage":
		return SchemaTypeDocumentStorage, nil
	case "Timeseries":
		return SchemaTypeTimeseries, nil
	default:
		return SchemaTypeUnknown, &InvalidSchemaTypeError{Value: s}
	}
}

// MarshalJSON renders the type using its wire name.
func (t SchemaType) MarshalJSON() ([]byte, error) {
	if t != SchemaTypeDocumentStorage && t != SchemaTypeTimeseries {
		return nil, fmt.Errorf("marshal schema type: %w", &InvalidSchemaTypeError{Value: t.String()})
	}
	return json.Marshal(t.String())
}

// UnmarshalJSON parses the wire discriminator.
func (t *SchemaType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseSchemaType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Schema is the registry's primary entity: catalog metadata for a class of
// records. IDs are immutable once assigned; metadata fields are mutable via
// UpdateSchema; the entity itself is never deleted (spec §3).
type Schema struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Type         SchemaType `json:"type"`
	TopicOrQueue string     `json:"topicOrQueue"`
	QueryAddress string     `json:"queryAddress"`
}

// NewSchema is the payload for AddSchema: metadata plus the first definition
// body, stored atomically at version 1.0.0.
type NewSchema struct {
	Name         string          `json:"name"`
	Type         SchemaType      `json:"type"`
	TopicOrQueue string          `json:"topicOrQueue"`
	QueryAddress string          `json:"queryAddress"`
	Definition   json.RawMessage `json:"definition"`
}

// SchemaUpdate is a partial patch: nil fields leave the stored value
// unchanged (COALESCE semantics, spec §4.3/§9 — never read-then-write).
type SchemaUpdate struct {
	Name         *string     `json:"name,omitempty"`
	Type         *SchemaType `json:"type,omitempty"`
	TopicOrQueue *string     `json:"topicOrQueue,omitempty"`
	QueryAddress *string     `json:"queryAddress,omitempty"`
}

// SchemaDefinition is a single versioned JSON Schema body attached to a
// Schema. Definitions are append-only: never mutated in place, never
// deleted (spec §3).
type SchemaDefinition struct {
	Version    SemVer          `json:"version"`
	Definition json.RawMessage `json:"definition"`
}

// NewSchemaDefinition is the payload for AddSchemaVersion.
type NewSchemaDefinition struct {
	Version    SemVer          `json:"version"`
	Definition json.RawMessage `json:"definition"`
}

// SchemaWithDefinitions joins a Schema with its full definition history,
// newest-last is not guaranteed; callers needing ordering sort explicitly.
type SchemaWithDefinitions struct {
	Schema
	Definitions []SchemaDefinition `json:"definitions"`
}

// Definition returns the stored definition whose version is the maximum
// version satisfying req, or false if none matches (spec §3 VersionedId,
// §4.3 get_schema_definition tie-break).
func (s SchemaWithDefinitions) Definition(req VersionRequirement) (SchemaDefinition, bool) {
	var best SchemaDefinition
	found := false
	for _, d := range s.Definitions {
		if !req.Matches(d.Version) {
			continue
		}
		if !found || d.Version.Compare(best.Version) > 0 {
			best = d
			found = true
		}
	}
	return best, found
}

// VersionedID is a read-side query handle: a schema id paired with a
// version requirement (spec §3).
type VersionedID struct {
	ID          uuid.UUID
	Requirement VersionRequirement
}

// DBExport is the whole-registry snapshot shape produced by Export and
// consumed by Import (spec §4.6).
type DBExport struct {
	Schemas []SchemaWithDefinitions `json:"schemas"`
}
